package report

import (
	"stackaudit/internal/config"
	"stackaudit/internal/evidence"
	"stackaudit/internal/graph"
	"stackaudit/internal/scoring"
)

// SchemaVersion is written into every report and manifest.
const SchemaVersion = "1"

// FindingType classifies a finding.
type FindingType string

const (
	FindingCollision FindingType = "collision"
	FindingRisk      FindingType = "risk"
	FindingFix       FindingType = "fix"
	FindingPositive  FindingType = "positive"
	FindingLowScore  FindingType = "low-score"
)

// Finding is one line item of a report.
type Finding struct {
	Type              FindingType         `json:"type"`
	Severity          evidence.Severity   `json:"severity"`
	Confidence        evidence.Confidence `json:"confidence,omitempty"`
	RuleID            string              `json:"ruleId,omitempty"`
	What              string              `json:"what"`
	Why               string              `json:"why"`
	Evidence          []string            `json:"evidence,omitempty"`
	SuggestedFix      string              `json:"suggestedFix,omitempty"`
	NodeIDs           []string            `json:"nodeIds,omitempty"`
	EdgeID            string              `json:"edgeId,omitempty"`
	PackRef           string              `json:"packRef,omitempty"`
	NeedsVerification bool                `json:"needsVerification,omitempty"`

	// Pack is the originating evidence pack, if any.
	Pack *evidence.Pack `json:"-"`
}

// Candidate is an alternative tool offered by a swap.
type Candidate struct {
	ToolID    string `json:"toolId"`
	Name      string `json:"name"`
	BaseScore int    `json:"baseScore"`
	Mutual    bool   `json:"mutual"`
	Install   string `json:"install,omitempty"`
}

// Swap suggests replacing the tool on one endpoint of a collision edge.
type Swap struct {
	EdgeID     string      `json:"edgeId"`
	NodeID     string      `json:"nodeId"`
	Category   string      `json:"category"`
	Current    string      `json:"current"`
	Against    string      `json:"against"`
	Candidates []Candidate `json:"candidates"`
}

// ManifestTool is one selected tool in the manifest.
type ManifestTool struct {
	NodeID   string       `json:"nodeId"`
	Category string       `json:"category"`
	ToolID   string       `json:"toolId"`
	Name     string       `json:"name"`
	Install  string       `json:"install,omitempty"`
	Score    int          `json:"score"`
	Tier     scoring.Tier `json:"tier"`
}

// Manifest is the exportable description of a stack.
type Manifest struct {
	Version     string         `json:"version"`
	GeneratedAt string         `json:"generatedAt"`
	GlobalScore int            `json:"globalScore"`
	Tools       []ManifestTool `json:"tools"`
	Nodes       []graph.Node   `json:"nodes"`
	Edges       []graph.Edge   `json:"edges"`
}

// ReportData is the full structured report.
type ReportData struct {
	Version     string    `json:"version"`
	GeneratedAt string    `json:"generatedAt"`
	GlobalScore int       `json:"globalScore"`
	Findings    []Finding `json:"findings"`
	FiredRules  []string  `json:"firedRules"`
	Swaps       []Swap    `json:"swaps"`
	Sources     []string  `json:"sources"`
	Manifest    Manifest  `json:"manifest"`

	// TopFindings is how many findings the Top Findings section shows.
	TopFindings int `json:"-"`
}

// Options tunes report generation.
type Options struct {
	MaxSwaps    int
	TopFindings int
}

// DefaultOptions returns the standard limits.
func DefaultOptions() Options {
	return Options{MaxSwaps: 3, TopFindings: 5}
}

// OptionsFromConfig maps report config onto Options.
func OptionsFromConfig(c config.ReportConfig) Options {
	return Options{MaxSwaps: c.MaxSwaps, TopFindings: c.TopFindings}
}

// CountByType tallies findings per type.
func (r *ReportData) CountByType() map[FindingType]int {
	out := make(map[FindingType]int)
	for _, f := range r.Findings {
		out[f.Type]++
	}
	return out
}
