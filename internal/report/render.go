package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"stackaudit/internal/evidence"
)

// ReportJSON encodes the full report as indented JSON with a trailing newline.
func ReportJSON(r ReportData) ([]byte, error) {
	return encodeJSON(r)
}

// ManifestJSON encodes the manifest on its own.
func ManifestJSON(m Manifest) ([]byte, error) {
	return encodeJSON(m)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderMarkdown renders the report. Sections always appear in the same order;
// Sources is emitted only when some finding cites evidence.
func RenderMarkdown(r ReportData) string {
	var b strings.Builder

	b.WriteString("# Stack Audit Report\n\n")
	fmt.Fprintf(&b, "- Generated: %s\n", r.GeneratedAt)
	fmt.Fprintf(&b, "- Global score: **%d/100**\n", r.GlobalScore)
	fmt.Fprintf(&b, "- Findings: %d\n\n", len(r.Findings))

	writeTopFindings(&b, r)
	writeRisks(&b, r.Findings)
	writePackSection(&b, "Fixes", filterFindings(r.Findings, FindingFix))
	writePackSection(&b, "Greenlights", filterFindings(r.Findings, FindingPositive))
	writeSwaps(&b, r.Swaps)
	writeTools(&b, r.Manifest)

	if len(r.Sources) > 0 {
		b.WriteString("## Sources\n\n")
		for i, u := range r.Sources {
			fmt.Fprintf(&b, "%d. <%s>\n", i+1, u)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// topFindings returns the first n findings after a stable sort by severity.
func topFindings(findings []Finding, n int) []Finding {
	sorted := append([]Finding(nil), findings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() < sorted[j].Severity.Rank()
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func writeTopFindings(b *strings.Builder, r ReportData) {
	b.WriteString("## Top Findings\n\n")
	n := r.TopFindings
	if n <= 0 {
		n = DefaultOptions().TopFindings
	}
	top := topFindings(r.Findings, n)
	if len(top) == 0 {
		b.WriteString("No findings.\n\n")
		return
	}
	for i, f := range top {
		fmt.Fprintf(b, "%d. **[%s] %s**: %s\n", i+1, strings.ToUpper(string(f.Severity)), f.Type, escape(f.What))
	}
	b.WriteString("\n")
}

// writeRisks lists every negative finding: collisions, fired risks and low
// scores.
func writeRisks(b *strings.Builder, findings []Finding) {
	b.WriteString("## Risks\n\n")
	found := false
	for _, f := range findings {
		switch f.Type {
		case FindingCollision, FindingRisk, FindingLowScore:
		default:
			continue
		}
		found = true
		writeFinding(b, f)
	}
	if !found {
		b.WriteString("No risks detected.\n\n")
	}
}

func writePackSection(b *strings.Builder, title string, findings []Finding) {
	fmt.Fprintf(b, "## %s\n\n", title)
	if len(findings) == 0 {
		fmt.Fprintf(b, "No %s.\n\n", strings.ToLower(title))
		return
	}
	for _, f := range findings {
		writeFinding(b, f)
	}
}

func writeFinding(b *strings.Builder, f Finding) {
	fmt.Fprintf(b, "### %s\n\n", escape(f.RuleID))
	fmt.Fprintf(b, "%s\n\n", escape(f.What))

	fmt.Fprintf(b, "- Type: %s\n", f.Type)
	fmt.Fprintf(b, "- Severity: %s\n", f.Severity)
	if f.Confidence != "" {
		fmt.Fprintf(b, "- Confidence: %s\n", f.Confidence)
	}
	if f.Why != "" {
		fmt.Fprintf(b, "- Why: %s\n", escape(f.Why))
	}
	if f.SuggestedFix != "" {
		fmt.Fprintf(b, "- Suggested fix: %s\n", escape(f.SuggestedFix))
	}
	if len(f.Evidence) > 0 {
		refs := make([]string, len(f.Evidence))
		for i, u := range f.Evidence {
			refs[i] = "<" + u + ">"
		}
		fmt.Fprintf(b, "- Evidence: %s\n", strings.Join(refs, ", "))
	}
	if f.NeedsVerification {
		b.WriteString("- Needs verification\n")
	}
	b.WriteString("\n")
}

func writeSwaps(b *strings.Builder, swaps []Swap) {
	b.WriteString("## Recommended Swaps\n\n")
	if len(swaps) == 0 {
		b.WriteString("No swaps suggested.\n\n")
		return
	}
	b.WriteString("| Edge | Replace | Conflicts with | Alternatives |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, s := range swaps {
		alts := make([]string, len(s.Candidates))
		for i, c := range s.Candidates {
			alts[i] = fmt.Sprintf("%s (%d)", c.Name, c.BaseScore)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n",
			cell(s.EdgeID), cell(s.Current), cell(s.Against), cell(strings.Join(alts, ", ")))
	}
	b.WriteString("\n")
}

func writeTools(b *strings.Builder, m Manifest) {
	b.WriteString("## Stack Tools\n\n")
	if len(m.Tools) == 0 {
		b.WriteString("No tools selected.\n\n")
		return
	}
	b.WriteString("| Category | Tool | Score | Tier | Install |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, t := range m.Tools {
		install := ""
		if t.Install != "" {
			install = "`" + t.Install + "`"
		}
		fmt.Fprintf(b, "| %s | %s | %d | %s | %s |\n",
			cell(t.Category), cell(t.Name), t.Score, t.Tier, cell(install))
	}
	b.WriteString("\n")
}

func filterFindings(findings []Finding, t FindingType) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

var mdEscaper = strings.NewReplacer("\n", " ", "*", `\*`, "_", `\_`, "`", "\\`")

func escape(s string) string {
	return mdEscaper.Replace(s)
}

func cell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", `\|`)
}

// RenderHTML renders the Markdown report to a standalone HTML page.
func RenderHTML(r ReportData) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(r)), &body); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Stack Audit Report</title>\n</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

// SeverityCount is the number of findings at one severity.
type SeverityCount struct {
	Severity evidence.Severity `json:"severity"`
	Count    int               `json:"count"`
}

// SeverityCounts tallies findings per severity, most severe first, omitting
// severities with no findings.
func SeverityCounts(findings []Finding) []SeverityCount {
	order := []evidence.Severity{
		evidence.SeverityCritical, evidence.SeverityHigh, evidence.SeverityMedium,
		evidence.SeverityLow, evidence.SeverityInfo,
	}
	counts := make(map[evidence.Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	var out []SeverityCount
	for _, s := range order {
		if counts[s] > 0 {
			out = append(out, SeverityCount{Severity: s, Count: counts[s]})
		}
	}
	return out
}
