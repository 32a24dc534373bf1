package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stackaudit/internal/share"
	"stackaudit/internal/stackfile"
)

var (
	shareURL    bool
	shareStrict bool
	shareOut    string
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Encode stacks into share links and back",
}

var shareEncodeCmd = &cobra.Command{
	Use:   "encode <stackfile>",
	Short: "Encode a stack into a compact URL-safe string",
	Long: `Encode a stack into a compact URL-safe string. Node and edge order
does not affect the result.

Examples:
  stackaudit share encode stack.json
  stackaudit share encode stack.json --url`,
	Args: cobra.ExactArgs(1),
	RunE: runShareEncode,
}

var shareDecodeCmd = &cobra.Command{
	Use:   "decode <data|link>",
	Short: "Decode a share string or link into a stack",
	Long: `Decode a share string or a full share link. The decoded stack is
printed as JSON, or saved as a stack file with --out.

Examples:
  stackaudit share decode 'https://stackaudit.dev/demo?data=...'
  stackaudit share decode <data> --out stack.toml`,
	Args: cobra.ExactArgs(1),
	RunE: runShareDecode,
}

func init() {
	shareEncodeCmd.Flags().BoolVar(&shareURL, "url", false, "Print a full share link instead of the bare string")
	shareCmd.PersistentFlags().BoolVar(&shareStrict, "strict", false, "Reject tools missing from the catalog")
	shareDecodeCmd.Flags().StringVarP(&shareOut, "out", "o", "", "Save the decoded stack to a .json or .toml file")

	shareCmd.AddCommand(shareEncodeCmd)
	shareCmd.AddCommand(shareDecodeCmd)
	rootCmd.AddCommand(shareCmd)
}

func shareOptions() ([]share.Option, error) {
	if !shareStrict {
		return nil, nil
	}
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return []share.Option{share.WithRegistry(reg)}, nil
}

func runShareEncode(cmd *cobra.Command, args []string) error {
	st, err := stackfile.Load(args[0])
	if err != nil {
		return err
	}
	opts, err := shareOptions()
	if err != nil {
		return err
	}

	encoded, err := share.Encode(st.Nodes, st.Edges, opts...)
	if err != nil {
		return err
	}
	logger.Debug("Encoded stack", "nodes", len(st.Nodes), "edges", len(st.Edges), "length", len(encoded))

	if shareURL {
		link, err := share.BuildURL(cfg.Share.BaseURL, encoded)
		if err != nil {
			return err
		}
		writeOutput(cmd, link)
		return nil
	}
	writeOutput(cmd, encoded)
	return nil
}

func runShareDecode(cmd *cobra.Command, args []string) error {
	opts, err := shareOptions()
	if err != nil {
		return err
	}

	input := strings.TrimSpace(args[0])
	var g share.Graph
	if strings.Contains(input, "://") {
		g, err = share.DecodeURL(input, opts...)
	} else {
		g, err = share.Decode(input, opts...)
	}
	if err != nil {
		return err
	}

	st := stackfile.New(g.Nodes, g.Edges, time.Now())
	if shareOut != "" {
		if err := stackfile.Save(shareOut, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %d nodes and %d edges to %s\n", len(st.Nodes), len(st.Edges), shareOut)
		return nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	writeOutput(cmd, string(data))
	return nil
}
