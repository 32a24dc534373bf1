package evidence

import (
	"github.com/google/cel-go/cel"
)

// Kind classifies what a pack claims.
type Kind string

const (
	KindRisk     Kind = "risk"
	KindFix      Kind = "fix"
	KindPositive Kind = "positive"
)

// Severity of a pack's claim.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Confidence in a pack's claim.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SourceType says where an evidence item comes from.
type SourceType string

const (
	SourceDocs      SourceType = "docs"
	SourceRepo      SourceType = "repo"
	SourceIssue     SourceType = "issue"
	SourceChangelog SourceType = "changelog"
	SourceBenchmark SourceType = "benchmark"
	SourceArticle   SourceType = "article"
	// SourceCommunity is the lowest-trust source type.
	SourceCommunity SourceType = "community"
)

// MaxExcerptWords bounds an item's excerpt; longer excerpts mark the item invalid.
const MaxExcerptWords = 25

var knownSourceTypes = map[SourceType]bool{
	SourceDocs:      true,
	SourceRepo:      true,
	SourceIssue:     true,
	SourceChangelog: true,
	SourceBenchmark: true,
	SourceArticle:   true,
	SourceCommunity: true,
}

var knownSeverities = map[Severity]bool{
	SeverityCritical: true,
	SeverityHigh:     true,
	SeverityMedium:   true,
	SeverityLow:      true,
	SeverityInfo:     true,
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Rank orders severities from most (0) to least severe. Unknown values sort last.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Downgrade returns the next lower confidence level. Low stays low.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func (c Confidence) valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// Item is one source backing or countering a pack's claim.
type Item struct {
	URL          string     `yaml:"url" json:"url"`
	CanonicalURL string     `yaml:"-" json:"canonicalUrl"`
	SourceType   SourceType `yaml:"sourceType" json:"sourceType"`
	Excerpt      string     `yaml:"excerpt" json:"excerpt"`
	ValidityNote string     `yaml:"validityNote,omitempty" json:"validityNote,omitempty"`
	RetrievedAt  string     `yaml:"retrievedAt,omitempty" json:"retrievedAt,omitempty"`

	// Invalid is set by validation; invalid items are retained.
	Invalid bool `yaml:"-" json:"invalid,omitempty"`
}

// Pack is a sourced claim backing a risk, fix or positive finding.
type Pack struct {
	RuleID            string     `yaml:"ruleId" json:"ruleId"`
	Kind              Kind       `yaml:"kind" json:"kind"`
	Claim             string     `yaml:"claim" json:"claim"`
	Scope             string     `yaml:"scope" json:"scope"`
	Severity          Severity   `yaml:"severity" json:"severity"`
	Confidence        Confidence `yaml:"confidence" json:"confidence"`
	Tags              []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Evidence          []Item     `yaml:"evidence" json:"evidence"`
	CounterEvidence   []Item     `yaml:"counterEvidence,omitempty" json:"counterEvidence,omitempty"`
	FixRuleIDs        []string   `yaml:"fixRuleIds,omitempty" json:"fixRuleIds,omitempty"`
	NeedsVerification bool       `yaml:"needsVerification" json:"needsVerification"`

	// Requires lists tool ids that must all be present for the pack to match.
	Requires []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	// When is a CEL boolean expression over tools: list(string).
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// Source names the document the pack was loaded from.
	Source string `yaml:"-" json:"source,omitempty"`

	program cel.Program
}

// HasPredicate reports whether the pack declares any matching condition.
func (p *Pack) HasPredicate() bool {
	return len(p.Requires) > 0 || p.When != ""
}

// URLs returns the canonical URL of every item, counter items included,
// falling back to the raw URL.
func (p *Pack) URLs() []string {
	out := make([]string, 0, len(p.Evidence)+len(p.CounterEvidence))
	for _, items := range [][]Item{p.Evidence, p.CounterEvidence} {
		for _, it := range items {
			if k := it.sortKey(); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

func (it Item) sortKey() string {
	if it.CanonicalURL != "" {
		return it.CanonicalURL
	}
	return it.URL
}
