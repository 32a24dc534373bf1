package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stackaudit/internal/registry"
	"stackaudit/internal/scoring"
	"stackaudit/internal/stackfile"
)

var (
	scoreFormat string
)

var scoreCmd = &cobra.Command{
	Use:   "score <stackfile>",
	Short: "Score a stack's compatibility",
	Long: `Score every edge, node and the stack as a whole.

Examples:
  stackaudit score stack.json
  stackaudit score stack.toml --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	st, err := stackfile.Load(args[0])
	if err != nil {
		return err
	}
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	engine, err := loadEngine(reg, st)
	if err != nil {
		return err
	}

	resp := convertSnapshot(engine.Snapshot(), len(engine.Components()))
	audit := engine.LastAudit()
	resp.Audit = &audit

	output, err := FormatResponse(resp, OutputFormat(scoreFormat))
	if err != nil {
		return err
	}
	writeOutput(cmd, output)
	return nil
}

// loadEngine builds a scoring engine over a saved stack.
func loadEngine(reg *registry.Registry, st stackfile.State) (*scoring.Engine, error) {
	engine := scoring.NewEngine(reg,
		scoring.WithWeights(weights()),
		scoring.WithLogger(logger),
	)
	if err := engine.Load(st.Nodes, st.Edges); err != nil {
		return nil, fmt.Errorf("failed to load stack: %w", err)
	}
	return engine, nil
}
