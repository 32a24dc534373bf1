// Package report turns a scored stack snapshot into ordered findings, swap
// suggestions and a manifest, and renders them as JSON, Markdown or HTML.
//
// Build is a pure function: the same snapshot, registry, evidence index and
// timestamp always produce the same ReportData, and every renderer is
// byte-stable over it.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stackaudit/internal/evidence"
	"stackaudit/internal/graph"
	"stackaudit/internal/registry"
	"stackaudit/internal/scoring"
)

// Build produces the report for snap. idx may be nil, in which case only
// collision and low-score findings are generated.
func Build(snap scoring.Snapshot, reg *registry.Registry, idx *evidence.Index, ts time.Time, opts Options) ReportData {
	generatedAt := ts.UTC().Format(time.RFC3339)
	tools := snap.ToolIDs()

	b := &builder{snap: snap, reg: reg, opts: opts}

	collisions := b.collisionFindings()
	risks, fired := b.riskFindings(idx, tools)
	fixes := b.fixFindings(idx, fired)
	positives := b.positiveFindings(idx, tools)
	lows := b.lowScoreFindings()

	findings := make([]Finding, 0, len(collisions)+len(risks)+len(fixes)+len(positives)+len(lows))
	findings = append(findings, collisions...)
	findings = append(findings, risks...)
	findings = append(findings, fixes...)
	findings = append(findings, positives...)
	findings = append(findings, lows...)

	firedIDs := make([]string, 0, len(fired))
	for _, p := range fired {
		firedIDs = append(firedIDs, p.RuleID)
	}

	return ReportData{
		Version:     SchemaVersion,
		GeneratedAt: generatedAt,
		GlobalScore: snap.GlobalScore,
		Findings:    findings,
		FiredRules:  firedIDs,
		Swaps:       b.swaps(),
		Sources:     sources(findings),
		Manifest:    buildManifest(snap, reg, generatedAt),
		TopFindings: opts.TopFindings,
	}
}

type builder struct {
	snap scoring.Snapshot
	reg  *registry.Registry
	opts Options
}

func (b *builder) toolName(id string) string {
	if t, ok := b.reg.Lookup(id); ok {
		return t.Name
	}
	if id == "" {
		return "(none)"
	}
	return id
}

// collisionRuleID names a collision by its two tools, sorted.
func collisionRuleID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "collision:" + a + "+" + b
}

// collisionFindings emits one finding per COLLISION edge, ordered by rule id
// with edge-encounter order breaking ties.
func (b *builder) collisionFindings() []Finding {
	var out []Finding
	for _, e := range b.snap.Edges {
		res, ok := b.snap.EdgeStatus[e.ID]
		if !ok || res.Status != scoring.StatusCollision {
			continue
		}
		src, _ := b.snap.NodeByID(e.Source)
		dst, _ := b.snap.NodeByID(e.Target)
		a, c := src.Data.ToolID, dst.Data.ToolID

		out = append(out, Finding{
			Type:         FindingCollision,
			Severity:     evidence.SeverityHigh,
			RuleID:       collisionRuleID(a, c),
			What:         fmt.Sprintf("%s collides with %s", b.toolName(a), b.toolName(c)),
			Why:          res.Reason,
			SuggestedFix: b.collisionFix(e, src, dst),
			NodeIDs:      []string{e.Source, e.Target},
			EdgeID:       e.ID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

func (b *builder) collisionFix(e graph.Edge, src, dst graph.Node) string {
	var parts []string
	for _, pair := range [][2]graph.Node{{src, dst}, {dst, src}} {
		cands := b.candidates(pair[0], pair[1])
		if len(cands) == 0 {
			continue
		}
		names := make([]string, len(cands))
		for i, c := range cands {
			names[i] = c.Name
		}
		parts = append(parts, fmt.Sprintf("replace %s with %s", b.toolName(pair[0].Data.ToolID), strings.Join(names, " or ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Remove the connection %s or pick a different tool on either side", e.ID)
	}
	s := strings.Join(parts, "; ")
	return strings.ToUpper(s[:1]) + s[1:]
}

// riskFindings evaluates every risk pack in rule id order against tools.
func (b *builder) riskFindings(idx *evidence.Index, tools []string) ([]Finding, []*evidence.Pack) {
	var out []Finding
	var fired []*evidence.Pack
	for _, p := range idx.ByKind(evidence.KindRisk) {
		if !p.Matches(tools) {
			continue
		}
		fired = append(fired, p)
		f := packFinding(FindingRisk, p)
		if fix := fixSummary(idx, p); fix != "" {
			f.SuggestedFix = fix
		}
		out = append(out, f)
	}
	return out, fired
}

// fixFindings emits a fix only when a fired risk names it.
func (b *builder) fixFindings(idx *evidence.Index, fired []*evidence.Pack) []Finding {
	referencedBy := make(map[string][]string)
	for _, risk := range fired {
		for _, id := range risk.FixRuleIDs {
			referencedBy[id] = append(referencedBy[id], risk.RuleID)
		}
	}

	var out []Finding
	for _, p := range idx.ByKind(evidence.KindFix) {
		risks, ok := referencedBy[p.RuleID]
		if !ok {
			continue
		}
		f := packFinding(FindingFix, p)
		f.Why = fmt.Sprintf("Addresses %s", strings.Join(risks, ", "))
		if p.Scope != "" {
			f.Why += ". " + p.Scope
		}
		out = append(out, f)
	}
	return out
}

func (b *builder) positiveFindings(idx *evidence.Index, tools []string) []Finding {
	var out []Finding
	for _, p := range idx.ByKind(evidence.KindPositive) {
		if !p.Matches(tools) {
			continue
		}
		f := packFinding(FindingPositive, p)
		f.Severity = evidence.SeverityInfo
		out = append(out, f)
	}
	return out
}

// lowScoreFindings reports risky and broken nodes, worst first.
func (b *builder) lowScoreFindings() []Finding {
	type low struct {
		node  graph.Node
		score scoring.NodeScore
	}
	var lows []low
	for _, n := range b.snap.Nodes {
		s, ok := b.snap.NodeScores[n.ID]
		if !ok || !s.Tier.IsLow() {
			continue
		}
		lows = append(lows, low{n, s})
	}
	sort.Slice(lows, func(i, j int) bool {
		if lows[i].score.Score != lows[j].score.Score {
			return lows[i].score.Score < lows[j].score.Score
		}
		return lows[i].node.ID < lows[j].node.ID
	})

	out := make([]Finding, 0, len(lows))
	for _, l := range lows {
		sev := evidence.SeverityMedium
		if l.score.Tier == scoring.TierBroken {
			sev = evidence.SeverityHigh
		}
		label := nodeLabel(l.node)

		f := Finding{
			Type:     FindingLowScore,
			Severity: sev,
			RuleID:   "low-score:" + l.node.ID,
			NodeIDs:  []string{l.node.ID},
		}
		if !l.node.HasTool() {
			f.What = fmt.Sprintf("%s has no tool selected", label)
			f.Why = "Nodes without a tool score 0"
			f.SuggestedFix = fmt.Sprintf("Pick a %s tool", label)
		} else {
			f.What = fmt.Sprintf("%s (%s) scores %d, %s", label, b.toolName(l.node.Data.ToolID), l.score.Score, l.score.Tier)
			f.Why = lowScoreWhy(l.score)
			f.SuggestedFix = "Resolve the collisions on this node or connect it to tools it integrates with"
		}
		out = append(out, f)
	}
	return out
}

func lowScoreWhy(s scoring.NodeScore) string {
	parts := append([]string(nil), s.Notes...)
	if s.UnknownCount > 0 {
		parts = append(parts, fmt.Sprintf("%d neighbor(s) with no known relation", s.UnknownCount))
	}
	if len(parts) == 0 {
		return "Low base score"
	}
	return strings.Join(parts, "; ")
}

func nodeLabel(n graph.Node) string {
	if n.Data.Category != "" {
		return n.Data.Category
	}
	return n.ID
}

func packFinding(t FindingType, p *evidence.Pack) Finding {
	var urls []string
	for _, it := range p.Evidence {
		if it.CanonicalURL != "" {
			urls = append(urls, it.CanonicalURL)
		}
	}
	return Finding{
		Type:              t,
		Severity:          p.Severity,
		Confidence:        p.Confidence,
		RuleID:            p.RuleID,
		What:              p.Claim,
		Why:               p.Scope,
		Evidence:          urls,
		PackRef:           p.RuleID,
		NeedsVerification: p.NeedsVerification,
		Pack:              p,
	}
}

func fixSummary(idx *evidence.Index, risk *evidence.Pack) string {
	var claims []string
	for _, id := range risk.FixRuleIDs {
		if fix, ok := idx.Get(id); ok {
			claims = append(claims, fix.Claim)
		}
	}
	return strings.Join(claims, " ")
}

// sources lists the canonical URLs of every pack behind a finding,
// deduplicated and sorted.
func sources(findings []Finding) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, f := range findings {
		if f.Pack == nil {
			continue
		}
		for _, u := range f.Pack.URLs() {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

func buildManifest(snap scoring.Snapshot, reg *registry.Registry, generatedAt string) Manifest {
	tools := []ManifestTool{}
	for _, n := range snap.Nodes {
		if !n.HasTool() {
			continue
		}
		mt := ManifestTool{
			NodeID:   n.ID,
			Category: n.Data.Category,
			ToolID:   n.Data.ToolID,
			Name:     n.Data.ToolID,
		}
		if t, ok := reg.Lookup(n.Data.ToolID); ok {
			mt.Name = t.Name
			mt.Install = t.Install
		}
		if s, ok := snap.NodeScores[n.ID]; ok {
			mt.Score = s.Score
			mt.Tier = s.Tier
		}
		tools = append(tools, mt)
	}
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].Category != tools[j].Category {
			return tools[i].Category < tools[j].Category
		}
		if tools[i].ToolID != tools[j].ToolID {
			return tools[i].ToolID < tools[j].ToolID
		}
		return tools[i].NodeID < tools[j].NodeID
	})

	nodes := snap.Nodes
	if nodes == nil {
		nodes = []graph.Node{}
	}
	edges := snap.Edges
	if edges == nil {
		edges = []graph.Edge{}
	}
	return Manifest{
		Version:     SchemaVersion,
		GeneratedAt: generatedAt,
		GlobalScore: snap.GlobalScore,
		Tools:       tools,
		Nodes:       nodes,
		Edges:       edges,
	}
}
