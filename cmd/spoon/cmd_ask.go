package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// askCmd answers a single question and exits.
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question about the loaded corpus",
	Long: `Loads the corpus, runs the question through the plan/assemble/respond
pipeline once, prints the grounded answer with its sources, and exits.

Example:
  spoon ask --repo pallets/flask "where are requests routed to view functions?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, summary, err := app.loadCorpus(ctx)
	if err != nil {
		return err
	}
	logger.Info("corpus loaded",
		zap.String("source", summary.SourceRef),
		zap.Int("units", summary.Units),
		zap.Int("selectable", summary.Selectable))

	result, err := app.engine.Ask(ctx, sess.ID, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	printResult(result)
	return nil
}
