package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// manifestCmd prints the normalized corpus listing, exactly as the planner
// sees it.
var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Show the normalized unit listing for a corpus",
	Long: `Loads the corpus and prints its manifest: one line per unit with kind and
approximate token size. Units marked [unselectable] are visible to the
planner but can never be picked (binary files, oversized files, collapsed
directories).`,
	RunE: runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, summary, err := app.loadCorpus(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s: %d units, %d selectable\n\n",
		summary.SourceKind, summary.SourceRef, summary.Units, summary.Selectable)
	for _, u := range sess.Manifest.Units {
		marker := ""
		if !u.Selectable() {
			marker = "  [unselectable]"
		}
		fmt.Printf("%-8s %8d  %s%s\n", u.Kind, u.SizeHint, u.ID, marker)
	}
	return nil
}
