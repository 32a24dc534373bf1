package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stackaudit/internal/stackfile"
)

var (
	loadOut    string
	listFormat string
)

var saveCmd = &cobra.Command{
	Use:   "save <name> <stackfile>",
	Short: "Save a stack under a name",
	Long: `Save a stack file into the project's stack database, replacing any
stack already saved under the same name.`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Load a saved stack",
	Long: `Print a saved stack as JSON, or write it to a .json or .toml file with --out.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved stacks",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a saved stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	loadCmd.Flags().StringVarP(&loadOut, "out", "o", "", "Write the stack to a .json or .toml file")
	listCmd.Flags().StringVar(&listFormat, "format", "human", "Output format (json, human)")

	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]
	st, err := stackfile.Load(path)
	if err != nil {
		return err
	}
	st.SavedAt = time.Now().UTC()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Save(context.Background(), name, st); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %q (%d nodes, %d edges)\n", name, len(st.Nodes), len(st.Edges))
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	st, err := store.Load(context.Background(), args[0])
	if err != nil {
		return err
	}

	if loadOut != "" {
		if err := stackfile.Save(loadOut, st); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %q to %s\n", args[0], loadOut)
		return nil
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stack: %w", err)
	}
	writeOutput(cmd, string(data))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stacks, err := store.List(context.Background())
	if err != nil {
		return err
	}

	output, err := FormatResponse(&StackListResponseCLI{Stacks: stacks}, OutputFormat(listFormat))
	if err != nil {
		return err
	}
	writeOutput(cmd, output)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
	return nil
}
