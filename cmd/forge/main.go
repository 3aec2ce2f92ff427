package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/completion"
	"specforge/internal/config"
	"specforge/internal/journal"
	"specforge/internal/logging"
	"specforge/internal/metrics"
	"specforge/internal/session"
)

var (
	// Global flags
	verbose    bool
	configPath string
	outputRoot string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger

	// clientFactory builds the completion client; tests replace it.
	clientFactory = completion.New
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "specforge - iterative code generation with build repair",
	Long: `specforge turns a natural-language specification into source files.

Each cycle asks the model for a TOML document of files, writes them under the
output root, runs the declared build command and feeds failures back to the
model until the build passes. Files generated earlier are summarized in every
prompt so later increments stay consistent with them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if outputRoot != "" {
			loaded.Generation.OutputRoot = outputRoot
		}
		cfg = loaded

		logger, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "forge.yaml", "Config file (missing file = defaults)")
	rootCmd.PersistentFlags().StringVarP(&outputRoot, "output", "o", "", "Output root (overrides generation.output_root)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything a generating command needs, plus its teardown.
type app struct {
	session  *session.Session
	journal  *journal.Journal
	recorder *metrics.Prometheus
}

func openApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	rt := &app{recorder: metrics.NewPrometheus()}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.JournalPath(), logging.Named(logger, logging.CategoryJournal))
		if err != nil {
			return nil, err
		}
		rt.journal = j
	}

	client, err := clientFactory(ctx, cfg.LLM)
	if err != nil {
		rt.close()
		return nil, err
	}

	s, err := session.New(ctx, session.Options{
		Config:   cfg,
		Client:   client,
		Journal:  rt.journal,
		Recorder: rt.recorder,
		Logger:   logger,
	})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.session = s
	return rt, nil
}

// close flushes metrics and closes the journal.
func (rt *app) close() {
	if path := cfg.Metrics.Textfile; path != "" {
		if err := rt.recorder.WriteTextfile(path); err != nil {
			logger.Warn("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			logger.Warn("Failed to close journal", zap.Error(err))
		}
	}
}
