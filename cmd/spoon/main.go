package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	verbose    bool
	repoURL    string
	docPath    string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "spoon",
	Short: "spoon - grounded Q&A over a repository or document",
	Long: `spoon answers natural-language questions about a GitHub repository or a
text document without ever holding the whole corpus in a prompt.

Each question runs a two-stage pipeline: a planner reads only the corpus
listing and picks the few units worth reading, an assembler fetches them into
a bounded context window, and the responder answers strictly from that
context, citing the units it used.

Load a corpus with --repo (GitHub URL or owner/repo) or --doc (a text file).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
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
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "spoon.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&repoURL, "repo", "", "GitHub repository to load (URL or owner/repo)")
	rootCmd.PersistentFlags().StringVar(&docPath, "doc", "", "path to a text document to load")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(manifestCmd)
	rootCmd.AddCommand(chatCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
