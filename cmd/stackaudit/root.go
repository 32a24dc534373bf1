package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stackaudit/internal/config"
	"stackaudit/internal/evidence"
	"stackaudit/internal/registry"
	"stackaudit/internal/scoring"
	"stackaudit/internal/slogutil"
	"stackaudit/internal/storage"
	"stackaudit/internal/version"
)

var (
	// rootDir is the project directory holding .stackaudit/
	rootDir     string
	catalogPath string
	verbosity   int
	quiet       bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "stackaudit",
	Short: "stackaudit - tech stack compatibility auditor",
	Long: `stackaudit scores how well the tools in a tech stack fit together,
explains each risk with cited evidence, and shares stacks as compact links.

A stack is a graph of category slots (Frontend, Database, Hosting...) each
holding at most one tool, connected by edges. Stacks are read from .json or
.toml stack files.`,
	Version:           version.Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.SetVersionTemplate("stackaudit version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Project directory containing .stackaudit/config.json")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "Tool catalog TOML file (default: built-in catalog)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all logs")
}

// setup loads configuration and builds the logger before any command runs.
// Logs go to stderr so they never mix with command output.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	level := slogutil.LevelFromString(cfg.Logging.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	logger = slogutil.New(cmd.ErrOrStderr(), cfg.Logging.Format, level.String())
	if quiet {
		logger = slogutil.NewDiscardLogger()
	}
	return nil
}

// loadRegistry returns the catalog named by --catalog or the built-in one.
func loadRegistry() (*registry.Registry, error) {
	if catalogPath != "" {
		reg, err := registry.LoadFile(catalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", catalogPath, err)
		}
		logger.Debug("Loaded catalog", "path", catalogPath, "tools", reg.Len())
		return reg, nil
	}
	return registry.Default()
}

// loadEvidence loads packs from dir, the configured directory, or the
// embedded defaults, in that order of preference.
func loadEvidence(dir string, policy evidence.LoadPolicy) (*evidence.Index, error) {
	if dir == "" {
		dir = cfg.Evidence.Dir
	}

	var sources []evidence.Source
	var err error
	if dir != "" {
		sources, err = evidence.DirSources(resolvePath(dir))
	} else {
		sources, err = evidence.DefaultSources()
	}
	if err != nil {
		return nil, err
	}
	return evidence.Load(sources, evidence.Options{Policy: policy, Logger: logger})
}

// configuredPolicy parses the evidence load policy from config.
func configuredPolicy() (evidence.LoadPolicy, error) {
	return evidence.ParsePolicy(cfg.Evidence.LoadPolicy)
}

func weights() scoring.Weights {
	return scoring.WeightsFromConfig(cfg.Scoring)
}

// openStore opens the saved-stack database configured for the project.
func openStore() (*storage.Store, error) {
	return storage.OpenStore(resolvePath(cfg.Storage.Path), logger)
}

// resolvePath makes relative config paths relative to --root.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}

func writeOutput(cmd *cobra.Command, out string) {
	fmt.Fprint(cmd.OutOrStdout(), out)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		fmt.Fprintln(cmd.OutOrStdout())
	}
}

// writeFileOrStdout writes data to path, or to the command output when path is empty.
func writeFileOrStdout(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		writeOutput(cmd, string(data))
		return nil
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logger.Info("Wrote output", "path", path, "bytes", len(data))
	return nil
}
