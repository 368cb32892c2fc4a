package memory

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Retrieval stages; each stage restricts which kinds are eligible.
const (
	StageManagerRoute    = "manager_route"
	StageWorkflowPlan    = "workflow_plan"
	StageInsightGenerate = "insight_generate"
)

// Hybrid ranking weights and bounds.
const (
	WeightFTS        = 0.55
	WeightRecency    = 0.25
	WeightImportance = 0.15
	WeightUse        = 0.05

	DefaultTopK        = 6
	DefaultMaxCardLen  = 600
	retrievalSearchCap = 30
	recencyHalfWindow  = 14 // days
	maxQueryTokens     = 12
)

var stageKinds = map[string][]Kind{
	StageManagerRoute:    {KindDomainRule, KindQueryPattern, KindUserPreference},
	StageWorkflowPlan:    {KindToolTemplate, KindQueryPattern, KindDomainRule, KindFailureCase, KindUserPreference},
	StageInsightGenerate: {KindInsightPattern, KindUserPreference, KindDomainRule, KindFailureCase, KindQueryPattern},
}

var queryStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "show": {}, "what": {},
	"were": {}, "last": {}, "this": {}, "that": {}, "those": {},
	"month": {}, "week": {}, "products": {}, "product": {}, "top": {},
}

var phraseHints = []string{"last month", "last week", "top products"}

var tokenRe = regexp.MustCompile(`[a-z0-9_]+`)

// Card is a bounded rendering of a ranked memory item.
type Card struct {
	ItemID string  `json:"itemId"`
	Kind   Kind    `json:"kind"`
	Scope  string  `json:"scope"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

// Leverager retrieves memory for a stage and renders it as prompt cards.
type Leverager struct {
	store      *Store
	TopK       int
	MaxCardLen int
}

// NewLeverager creates a Leverager with the contract defaults.
func NewLeverager(store *Store) *Leverager {
	return &Leverager{store: store, TopK: DefaultTopK, MaxCardLen: DefaultMaxCardLen}
}

// BuildQuery turns free text into an FTS OR-query: phrase hints first,
// then up to 12 unique informative tokens.
func (l *Leverager) BuildQuery(input string) string {
	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(input), " "))
	if cleaned == "" {
		return ""
	}

	var terms []string
	for _, hint := range phraseHints {
		if strings.Contains(cleaned, hint) {
			terms = append(terms, `"`+hint+`"`)
		}
	}

	seen := map[string]struct{}{}
	count := 0
	for _, tok := range tokenRe.FindAllString(cleaned, -1) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := queryStopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
		count++
		if count >= maxQueryTokens {
			break
		}
	}

	if len(terms) == 0 {
		return `"` + strings.ReplaceAll(cleaned, `"`, "") + `"`
	}
	return strings.Join(terms, " OR ")
}

// Retrieve searches the given scopes for stage-appropriate items, ranks
// them with the hybrid score, marks winners used, and renders cards.
func (l *Leverager) Retrieve(stage, query string, scopes []string, nowIso string) ([]Card, error) {
	kinds, ok := stageKinds[stage]
	if !ok {
		return nil, fmt.Errorf("leverager: unknown stage %q", stage)
	}
	ftsQuery := l.BuildQuery(query)
	if ftsQuery == "" {
		return nil, nil
	}

	hits, err := l.store.SearchMemory(SearchParams{
		Query:  ftsQuery,
		Scopes: scopes,
		Kinds:  kinds,
		Limit:  retrievalSearchCap,
		NowIso: nowIso,
	})
	if err != nil {
		return nil, fmt.Errorf("leverager: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	if nowIso != "" {
		if t, err := time.Parse(time.RFC3339, nowIso); err == nil {
			now = t
		}
	}

	type scored struct {
		Hit
		score float64
	}
	ranked := make([]scored, 0, len(hits))
	for _, h := range hits {
		ranked = append(ranked, scored{Hit: h, score: Score(h, now)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	k := l.TopK
	if k <= 0 {
		k = DefaultTopK
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.ID)
	}
	// Usage is bumped before the cards reach the next stage, so useCount
	// reflects intent-to-use rather than downstream success.
	if err := l.store.MarkMemoryUsed(ids, nowIso); err != nil {
		return nil, fmt.Errorf("leverager: %w", err)
	}

	cards := make([]Card, 0, len(ranked))
	for _, r := range ranked {
		cards = append(cards, Card{
			ItemID: r.ID,
			Kind:   r.Kind,
			Scope:  r.Scope,
			Score:  r.score,
			Text:   l.renderCard(r.Hit),
		})
	}
	return cards, nil
}

// Score combines FTS rank, recency, importance, and usage into one value.
func Score(h Hit, now time.Time) float64 {
	ageDays := float64(recencyHalfWindow)
	if h.LastUsedAt != "" {
		if t, err := time.Parse(time.RFC3339, h.LastUsedAt); err == nil {
			ageDays = now.Sub(t).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
		}
	}
	recency := math.Exp(-ageDays / recencyHalfWindow)
	return WeightFTS*h.FTSRank +
		WeightRecency*recency +
		WeightImportance*h.Importance +
		WeightUse*math.Log1p(float64(h.UseCount))
}

// renderCard produces the three-line card layout, truncated to the budget.
func (l *Leverager) renderCard(h Hit) string {
	last := "never"
	if len(h.LastUsedAt) >= 10 {
		last = h.LastUsedAt[:10]
	}
	body := strings.TrimSpace(whitespaceRe.ReplaceAllString(h.Text, " "))
	card := fmt.Sprintf("MEMORY CARD [%s] (%s)\n%s\nSignals: q=%.2f imp=%.2f used=%d last=%s",
		h.Kind, h.Scope, body, h.Quality, h.Importance, h.UseCount, last)

	max := l.MaxCardLen
	if max <= 0 {
		max = DefaultMaxCardLen
	}
	runes := []rune(card)
	if len(runes) > max {
		card = string(runes[:max-1]) + "…"
	}
	return card
}

// KindsForStage exposes the stage kind restriction.
func KindsForStage(stage string) []Kind {
	return append([]Kind(nil), stageKinds[stage]...)
}
