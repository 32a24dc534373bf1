package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stackaudit/internal/report"
	"stackaudit/internal/stackfile"
)

var (
	reportFormat string
	reportOut    string
	reportAt     string
)

var reportCmd = &cobra.Command{
	Use:   "report <stackfile>",
	Short: "Build an audit report for a stack",
	Long: `Build a deterministic audit report: collisions, evidence-backed risks
and fixes, greenlights, swap suggestions and the tool manifest.

Formats:
  markdown  Human-readable report (default)
  html      The markdown report rendered to a standalone page
  json      Full report data
  manifest  Selected tools with install hints

Examples:
  stackaudit report stack.json
  stackaudit report stack.json --format html --out report.html
  stackaudit report stack.json --format json --at 2025-01-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "markdown", "Output format (markdown, html, json, manifest)")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Write to file instead of stdout")
	reportCmd.Flags().StringVar(&reportAt, "at", "", "Report timestamp in RFC 3339 (default: now)")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ts := time.Now()
	if reportAt != "" {
		parsed, err := time.Parse(time.RFC3339, reportAt)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
		ts = parsed
	}

	st, err := stackfile.Load(args[0])
	if err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	policy, err := configuredPolicy()
	if err != nil {
		return err
	}
	idx, err := loadEvidence("", policy)
	if err != nil {
		return err
	}
	engine, err := loadEngine(reg, st)
	if err != nil {
		return err
	}

	data := report.Build(engine.Snapshot(), reg, idx, ts, report.OptionsFromConfig(cfg.Report))
	logger.Debug("Built report",
		"findings", len(data.Findings),
		"swaps", len(data.Swaps),
		"globalScore", data.GlobalScore,
	)

	out, err := renderReport(data, reportFormat)
	if err != nil {
		return err
	}
	return writeFileOrStdout(cmd, reportOut, out)
}

func renderReport(data report.ReportData, format string) ([]byte, error) {
	switch format {
	case "markdown", "md":
		return []byte(report.RenderMarkdown(data)), nil
	case "html":
		return report.RenderHTML(data)
	case "json":
		return report.ReportJSON(data)
	case "manifest":
		return report.ManifestJSON(data.Manifest)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
