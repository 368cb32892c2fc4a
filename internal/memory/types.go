// Package memory defines the scoped, kind-tagged memory store, the
// retrieval path that turns stored items into prompt cards, and the
// tool-result cache shared with the executor.
package memory

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Kind classifies a stored memory item.
type Kind string

const (
	KindToolTemplate   Kind = "tool_template"
	KindQueryPattern   Kind = "query_pattern"
	KindDomainRule     Kind = "domain_rule"
	KindInsightPattern Kind = "insight_pattern"
	KindFailureCase    Kind = "failure_case"
	KindUserPreference Kind = "user_preference"
)

// ValidKind returns true if k is a recognised memory kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindToolTemplate, KindQueryPattern, KindDomainRule,
		KindInsightPattern, KindFailureCase, KindUserPreference:
		return true
	}
	return false
}

// GlobalScope is the namespace for seed rules visible to every user.
const GlobalScope = "global"

// UserScope returns the memory namespace for one user.
func UserScope(userID string) string {
	return "user:" + userID
}

// Item is a single stored memory record.
type Item struct {
	ID         string            `json:"id"`
	Scope      string            `json:"scope"`
	Kind       Kind              `json:"kind"`
	Text       string            `json:"text"`
	Meta       map[string]string `json:"meta,omitempty"`
	DedupeKey  string            `json:"dedupeKey"`
	CreatedAt  string            `json:"createdAt"`
	LastUsedAt string            `json:"lastUsedAt,omitempty"`
	UseCount   int               `json:"useCount"`
	Importance float64           `json:"importance"`
	Quality    float64           `json:"quality"`
	ExpiresAt  string            `json:"expiresAt,omitempty"`
}

// UpsertInput describes one memory write. DedupeKey is derived from
// (kind, normalized text) when empty.
type UpsertInput struct {
	Scope      string
	Kind       Kind
	Text       string
	Meta       map[string]string
	DedupeKey  string
	Importance float64
	Quality    float64
	ExpiresAt  string
}

// Hit is one FTS search result with its raw and normalized rank.
type Hit struct {
	Item
	BM25 float64
	// FTSRank is 1/(1+|bm25|), in (0,1].
	FTSRank float64
}

// SearchParams filters an FTS search over memory items.
type SearchParams struct {
	Query  string
	Scopes []string
	Kinds  []Kind
	Limit  int
	NowIso string
}

// ScopeKindCount is one row of the memory stats summary.
type ScopeKindCount struct {
	Scope string `json:"scope"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// RunRecord is the persisted form of one orchestrated run. JSON columns
// arrive pre-marshaled so the store stays ignorant of agent types.
type RunRecord struct {
	ID                 string
	CreatedAt          string
	UserID             string
	ConfigJSON         string
	Query              string
	AugmentedQuery     string
	Route              string
	OOD                bool
	PlanJSON           string
	ToolCallsJSON      string
	Response           string
	EvalJSON           string
	LatenciesJSON      string
	MemoryInjectedJSON string
}

const dedupeTextCap = 400

// NormalizeForDedupe lowercases, collapses whitespace, and caps the text
// used to derive a dedupe key.
func NormalizeForDedupe(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = whitespaceRe.ReplaceAllString(t, " ")
	if len(t) > dedupeTextCap {
		t = t[:dedupeTextCap]
	}
	return t
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// DedupeKey hashes (kind, normalized text) into the uniqueness key.
func DedupeKey(kind Kind, text string) string {
	sum := sha256.Sum256([]byte(string(kind) + NormalizeForDedupe(text)))
	return hex.EncodeToString(sum[:])
}

// NewID returns a time-sortable identifier with the given prefix.
func NewID(prefix string) string {
	now := time.Now().UTC().Format("20060102T150405.000000000")
	randBytes := make([]byte, 3)
	_, _ = rand.Read(randBytes)
	return fmt.Sprintf("%s-%s-%s", prefix, now, hex.EncodeToString(randBytes))
}
