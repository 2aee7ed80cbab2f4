package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"spoon/internal/llm"
)

// chatCmd runs an interactive session over one loaded corpus.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive question session over the loaded corpus",
	Long: `Loads the corpus once, then answers questions in a loop. The session keeps
turn history, so follow-up questions can lean on earlier answers.

Type "exit" or "quit" (or press Ctrl-D) to leave.`,
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
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
	fmt.Printf("Loaded %s %s (%d units, %d selectable). Ask away.\n\n",
		summary.SourceKind, summary.SourceRef, summary.Units, summary.Selectable)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result, err := app.engine.Ask(ctx, sess.ID, question)
		if err != nil {
			if errors.Is(err, llm.ErrModelUnavailable) {
				fmt.Println("The model is unavailable right now; try again in a moment.")
				continue
			}
			return err
		}

		fmt.Println()
		printResult(result)
		fmt.Println()
	}
}
