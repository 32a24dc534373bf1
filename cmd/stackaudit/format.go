package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stackaudit/internal/evidence"
	"stackaudit/internal/registry"
	"stackaudit/internal/scoring"
	"stackaudit/internal/storage"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	tierExcellent = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	tierSolid     = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	tierRisky     = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	tierBroken    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)

	statusCollision = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusNative    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func tierStyle(t scoring.Tier) lipgloss.Style {
	switch t {
	case scoring.TierExcellent:
		return tierExcellent
	case scoring.TierSolid:
		return tierSolid
	case scoring.TierRisky:
		return tierRisky
	default:
		return tierBroken
	}
}

func edgeStyle(s scoring.EdgeStatus) lipgloss.Style {
	switch s {
	case scoring.StatusCollision:
		return statusCollision
	case scoring.StatusNative:
		return statusNative
	default:
		return dimStyle
	}
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *ScoreResponseCLI:
		return formatScoreHuman(v), nil
	case *ToolsResponseCLI:
		return formatToolsHuman(v), nil
	case *LintResponseCLI:
		return formatLintHuman(v), nil
	case *StackListResponseCLI:
		return formatStackListHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

// ScoreResponseCLI is the output of the score command
type ScoreResponseCLI struct {
	GlobalScore int                 `json:"globalScore"`
	GlobalTier  scoring.Tier        `json:"globalTier"`
	Nodes       []NodeScoreCLI      `json:"nodes"`
	Edges       []EdgeScoreCLI      `json:"edges"`
	Components  int                 `json:"components"`
	Audit       *scoring.AuditStats `json:"audit,omitempty"`
}

// NodeScoreCLI is one scored node
type NodeScoreCLI struct {
	ID           string       `json:"id"`
	Category     string       `json:"category"`
	ToolID       string       `json:"toolId,omitempty"`
	Score        int          `json:"score"`
	Tier         scoring.Tier `json:"tier"`
	Notes        []string     `json:"notes,omitempty"`
	UnknownCount int          `json:"unknownCount,omitempty"`
}

// EdgeScoreCLI is one scored edge
type EdgeScoreCLI struct {
	ID     string             `json:"id"`
	Source string             `json:"source"`
	Target string             `json:"target"`
	Status scoring.EdgeStatus `json:"status"`
	Reason string             `json:"reason,omitempty"`
}

func convertSnapshot(snap scoring.Snapshot, components int) *ScoreResponseCLI {
	resp := &ScoreResponseCLI{
		GlobalScore: snap.GlobalScore,
		GlobalTier:  scoring.TierFor(snap.GlobalScore),
		Nodes:       make([]NodeScoreCLI, 0, len(snap.Nodes)),
		Edges:       make([]EdgeScoreCLI, 0, len(snap.Edges)),
		Components:  components,
	}
	for _, n := range snap.Nodes {
		s := snap.NodeScores[n.ID]
		resp.Nodes = append(resp.Nodes, NodeScoreCLI{
			ID:           n.ID,
			Category:     n.Data.Category,
			ToolID:       n.Data.ToolID,
			Score:        s.Score,
			Tier:         s.Tier,
			Notes:        s.Notes,
			UnknownCount: s.UnknownCount,
		})
	}
	for _, e := range snap.Edges {
		r := snap.EdgeStatus[e.ID]
		resp.Edges = append(resp.Edges, EdgeScoreCLI{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Status: r.Status,
			Reason: r.Reason,
		})
	}
	return resp
}

func formatScoreHuman(resp *ScoreResponseCLI) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Global score: %d", resp.GlobalScore)))
	b.WriteString(" " + tierStyle(resp.GlobalTier).Render(string(resp.GlobalTier)) + "\n")
	b.WriteString(fmt.Sprintf("%d nodes, %d edges, %d components\n\n", len(resp.Nodes), len(resp.Edges), resp.Components))

	if len(resp.Nodes) == 0 {
		b.WriteString("No nodes.\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-12s %-14s %-20s %5s  %s\n", "NODE", "CATEGORY", "TOOL", "SCORE", "TIER"))
	for _, n := range resp.Nodes {
		tool := n.ToolID
		if tool == "" {
			tool = "-"
		}
		b.WriteString(fmt.Sprintf("  %-12s %-14s %-20s %5d  %s\n",
			n.ID, n.Category, tool, n.Score, tierStyle(n.Tier).Render(string(n.Tier))))
		for _, note := range n.Notes {
			b.WriteString(dimStyle.Render("      ! "+note) + "\n")
		}
	}

	if len(resp.Edges) > 0 {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %-12s %-27s %s\n", "EDGE", "ENDPOINTS", "STATUS"))
		for _, e := range resp.Edges {
			line := fmt.Sprintf("  %-12s %-27s %s", e.ID, e.Source+" <-> "+e.Target, edgeStyle(e.Status).Render(string(e.Status)))
			if e.Reason != "" {
				line += "  " + e.Reason
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

// ToolsResponseCLI lists catalog tools
type ToolsResponseCLI struct {
	Tools []*registry.Tool `json:"tools"`
}

func formatToolsHuman(resp *ToolsResponseCLI) string {
	if len(resp.Tools) == 0 {
		return "No tools found.\n"
	}

	grouped := make(map[string][]*registry.Tool)
	for _, t := range resp.Tools {
		grouped[t.Category] = append(grouped[t.Category], t)
	}
	categories := make([]string, 0, len(grouped))
	for c := range grouped {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	for i, c := range categories {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(fmt.Sprintf("== %s (%d) ==", c, len(grouped[c]))) + "\n")
		for _, t := range grouped[c] {
			b.WriteString(fmt.Sprintf("  %-20s %-24s %3d  %s\n",
				t.ID, t.Name, t.BaseScore, tierStyle(scoring.TierFor(t.BaseScore)).Render(string(scoring.TierFor(t.BaseScore)))))
		}
	}
	return b.String()
}

// LintResponseCLI is the output of evidence lint
type LintResponseCLI struct {
	Packs        int                    `json:"packs"`
	ByKind       map[evidence.Kind]int  `json:"byKind"`
	Problems     []evidence.Problem     `json:"problems"`
	Degradations []evidence.Degradation `json:"degradations"`
}

// OK reports whether no pack was rejected.
func (r *LintResponseCLI) OK() bool {
	return len(r.Problems) == 0
}

func convertIndex(idx *evidence.Index) *LintResponseCLI {
	resp := &LintResponseCLI{
		Packs:        idx.Len(),
		ByKind:       make(map[evidence.Kind]int),
		Problems:     idx.Problems(),
		Degradations: idx.Degradations(),
	}
	for _, k := range []evidence.Kind{evidence.KindRisk, evidence.KindFix, evidence.KindPositive} {
		resp.ByKind[k] = len(idx.ByKind(k))
	}
	if resp.Problems == nil {
		resp.Problems = []evidence.Problem{}
	}
	if resp.Degradations == nil {
		resp.Degradations = []evidence.Degradation{}
	}
	return resp
}

func formatLintHuman(resp *LintResponseCLI) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d packs loaded (%d risk, %d fix, %d positive)\n",
		resp.Packs, resp.ByKind[evidence.KindRisk], resp.ByKind[evidence.KindFix], resp.ByKind[evidence.KindPositive]))

	if len(resp.Degradations) > 0 {
		b.WriteString("\nDegraded:\n")
		for _, d := range resp.Degradations {
			b.WriteString(fmt.Sprintf("  ~ %s: %s\n", d.RuleID, d.Note))
		}
	}
	if len(resp.Problems) > 0 {
		b.WriteString("\nRejected:\n")
		for _, p := range resp.Problems {
			b.WriteString(tierBroken.Render("  x "+p.String()) + "\n")
		}
	} else {
		b.WriteString(tierExcellent.Render("All packs valid.") + "\n")
	}
	return b.String()
}

// StackListResponseCLI lists saved stacks
type StackListResponseCLI struct {
	Stacks []storage.StackSummary `json:"stacks"`
}

func formatStackListHuman(resp *StackListResponseCLI) string {
	if len(resp.Stacks) == 0 {
		return "No saved stacks.\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %-24s %5s %5s  %s\n", "NAME", "NODES", "EDGES", "SAVED"))
	for _, s := range resp.Stacks {
		b.WriteString(fmt.Sprintf("  %-24s %5d %5d  %s\n",
			s.Name, s.NodeCount, s.EdgeCount, s.SavedAt.UTC().Format("2006-01-02 15:04:05")))
	}
	return b.String()
}
