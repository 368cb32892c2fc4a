package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/memory"
)

// analyticsVocab marks a query as in-domain when any term appears.
var analyticsVocab = []string{
	"sales", "revenue", "units", "sessions", "traffic", "conversion",
	"benchmark", "month", "week", "yoy", "mom", "wow",
}

// blacklist forces out-of-domain regardless of other vocabulary.
var blacklist = []string{
	"weather", "recipe", "love", "movie", "music", "politics", "medical",
}

// insightCues route to the insight generator instead of the presenter.
var insightCues = []string{
	"why", "perform", "benchmark", "recommend", "improve",
	"diagnostic", "compare", "insight",
}

var managerTopNRe = regexp.MustCompile(`\btop\s+\d+\b`)

// Manager gates queries and classifies the worker route. The heuristic is
// always confident in this design; the LLM branch exists for future routers
// that may declare non-confidence.
type Manager struct {
	llm    adapter.LLMClient
	logger *log.Logger
}

// NewManager creates a Manager. llm may be nil.
func NewManager(llm adapter.LLMClient) *Manager {
	return &Manager{
		llm:    llm,
		logger: log.New(os.Stderr, "[MANAGER] ", log.LstdFlags),
	}
}

// Decide routes a query. Memory cards give the heuristic and the LLM extra
// context; the current heuristic does not need them but receives them so
// card injection is uniform across stages.
func (m *Manager) Decide(ctx context.Context, query string, cards []memory.Card) RouteDecision {
	decision, confident := m.heuristic(query)
	if confident || m.llm == nil {
		return decision
	}
	if llmDecision, err := m.classifyWithLLM(ctx, query, cards); err == nil {
		return llmDecision
	}
	return decision
}

func (m *Manager) heuristic(query string) (RouteDecision, bool) {
	q := strings.ToLower(query)

	for _, banned := range blacklist {
		if strings.Contains(q, banned) {
			return RouteDecision{OOD: true, Reason: "matches out-of-domain topic: " + banned}, true
		}
	}

	inDomain := managerTopNRe.MatchString(q)
	if !inDomain {
		for _, term := range analyticsVocab {
			if strings.Contains(q, term) {
				inDomain = true
				break
			}
		}
	}
	if !inDomain {
		return RouteDecision{OOD: true, Reason: "no seller-analytics vocabulary"}, true
	}

	for _, cue := range insightCues {
		if strings.Contains(q, cue) {
			return RouteDecision{Route: RouteInsightGenerator, Reason: "diagnostic cue: " + cue}, true
		}
	}
	return RouteDecision{Route: RouteDataPresenter, Reason: "presentational query"}, true
}

func (m *Manager) classifyWithLLM(ctx context.Context, query string, cards []memory.Card) (RouteDecision, error) {
	var sb strings.Builder
	sb.WriteString("Classify the query for a seller-analytics assistant.\n")
	sb.WriteString(`Reply with one JSON object: {"ood": bool, "route": "data_presenter"|"insight_generator", "reason": string}.` + "\n")
	for _, c := range cards {
		sb.WriteString(c.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("QUERY: " + query)

	completion, err := m.llm.Complete(ctx, adapter.CompletionRequest{
		Messages:        []adapter.Message{{Role: "user", Content: sb.String()}},
		Temperature:     0,
		MaxOutputTokens: 200,
	})
	if err != nil {
		return RouteDecision{}, fmt.Errorf("manager: %w", err)
	}

	for _, candidate := range ExtractJSONObjects(completion.Text) {
		var d RouteDecision
		if err := json.Unmarshal([]byte(StripTrailingCommas(candidate)), &d); err != nil {
			continue
		}
		if !d.OOD && d.Route != RouteDataPresenter && d.Route != RouteInsightGenerator {
			continue
		}
		return d, nil
	}
	return RouteDecision{}, fmt.Errorf("manager: no valid classification in LLM output")
}
