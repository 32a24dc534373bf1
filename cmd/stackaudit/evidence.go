package main

import (
	"github.com/spf13/cobra"

	"stackaudit/internal/errors"
	"stackaudit/internal/evidence"
)

var (
	evidenceDir    string
	evidenceFormat string
)

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect evidence packs",
}

var evidenceLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Validate evidence packs",
	Long: `Load every evidence pack, report structural problems and list packs
whose confidence or evidence was degraded by the quality gate.

Exits non-zero when any pack is rejected.

Examples:
  stackaudit evidence lint
  stackaudit evidence lint --dir ./packs --format json`,
	Args: cobra.NoArgs,
	RunE: runEvidenceLint,
}

func init() {
	evidenceLintCmd.Flags().StringVar(&evidenceDir, "dir", "", "Directory of .yaml packs (default: configured or built-in packs)")
	evidenceLintCmd.Flags().StringVar(&evidenceFormat, "format", "human", "Output format (json, human)")
	evidenceCmd.AddCommand(evidenceLintCmd)
	rootCmd.AddCommand(evidenceCmd)
}

func runEvidenceLint(cmd *cobra.Command, args []string) error {
	// Skip collects every problem instead of stopping at the first failing load.
	idx, err := loadEvidence(evidenceDir, evidence.PolicySkip)
	if err != nil {
		return err
	}

	resp := convertIndex(idx)
	output, err := FormatResponse(resp, OutputFormat(evidenceFormat))
	if err != nil {
		return err
	}
	writeOutput(cmd, output)

	if !resp.OK() {
		return errors.Newf(errors.PackInvalid, "%d evidence pack problem(s)", len(resp.Problems)).
			WithDetails(resp.Problems)
	}
	return nil
}

