package responder

import (
	"context"
	"strings"

	"spoon/internal/logging"
	"spoon/internal/session"
)

// Intent labels what a question is asking for.
type Intent int

const (
	// IntentTechnical questions run the full plan/assemble/respond
	// pipeline over the corpus.
	IntentTechnical Intent = iota
	// IntentChat is small talk; it gets a short conversational reply
	// without touching the corpus.
	IntentChat
)

func (i Intent) String() string {
	if i == IntentChat {
		return "chat"
	}
	return "technical"
}

const classifierSystemPrompt = `Classify the user's message. Reply with exactly one word:
TECHNICAL - a question about the loaded codebase or document, its behavior, structure, or content.
CHAT - a greeting, pleasantry, or question about you rather than the corpus.`

const smallTalkSystemPrompt = `You are Spoon, a friendly assistant that answers questions about a loaded codebase or document. Reply briefly and conversationally. If it fits, remind the user you can answer questions about what they loaded.`

// Classify labels the question with one cheap model call. It fails open:
// any model or parse failure returns IntentTechnical, so the grounded path
// is never lost to a flaky classifier.
func (r *Responder) Classify(ctx context.Context, question string) Intent {
	raw, err := r.client.CompleteWithSystem(ctx, classifierSystemPrompt, question)
	if err != nil {
		logging.ResponderDebug("classify failed (%v), defaulting to technical", err)
		return IntentTechnical
	}

	switch {
	case strings.Contains(strings.ToUpper(raw), "CHAT"):
		return IntentChat
	case strings.Contains(strings.ToUpper(raw), "TECHNICAL"):
		return IntentTechnical
	default:
		logging.ResponderDebug("classify returned %q, defaulting to technical", firstWords(raw, 8))
		return IntentTechnical
	}
}

// SmallTalk produces the conversational reply for chat intents. Model
// failures surface like the responder's own.
func (r *Responder) SmallTalk(ctx context.Context, question string, history []session.Turn) (string, error) {
	var b strings.Builder
	if window := r.cfg.HistoryWindow; len(history) > 0 {
		if len(history) > window {
			history = history[len(history)-window:]
		}
		for _, t := range history {
			b.WriteString("User: ")
			b.WriteString(t.Question)
			b.WriteString("\nSpoon: ")
			b.WriteString(t.Answer)
			b.WriteString("\n")
		}
	}
	b.WriteString("User: ")
	b.WriteString(question)

	reply, err := r.client.CompleteWithSystem(ctx, smallTalkSystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
