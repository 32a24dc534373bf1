package main

import (
	"github.com/spf13/cobra"
)

var (
	toolsCategory string
	toolsFormat   string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tools in the catalog",
	Long: `List catalog tools grouped by category with their base scores.

Examples:
  stackaudit tools
  stackaudit tools --category Database
  stackaudit tools --format json`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsCategory, "category", "", "Only list tools in this category")
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	resp := &ToolsResponseCLI{Tools: reg.Tools()}
	if toolsCategory != "" {
		resp.Tools = reg.ByCategory(toolsCategory)
	}

	output, err := FormatResponse(resp, OutputFormat(toolsFormat))
	if err != nil {
		return err
	}
	writeOutput(cmd, output)
	return nil
}
