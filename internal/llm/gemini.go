package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"spoon/internal/logging"
)

// =============================================================================
// GEMINI CLIENT
// =============================================================================

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int32
	MaxRetries      int
}

// DefaultGeminiConfig returns sensible defaults for grounded Q&A.
// Temperature stays at zero: the planner output must be parseable and the
// responder must not improvise beyond its context.
func DefaultGeminiConfig(apiKey string) GeminiConfig {
	return GeminiConfig{
		APIKey:          apiKey,
		Model:           "gemini-2.5-flash",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
		MaxRetries:      3,
	}
}

// Gemini implements Client on top of google.golang.org/genai.
type Gemini struct {
	client *genai.Client
	cfg    GeminiConfig

	mu          sync.Mutex
	lastRequest time.Time
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, &ModelError{Op: "init", Err: errMissingAPIKey}
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ModelError{Op: "init", Err: err}
	}
	return &Gemini{client: client, cfg: cfg}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string {
	return g.cfg.Model
}

// Complete sends a prompt and returns the completion.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	return g.CompleteWithSystem(ctx, "", prompt)
}

// CompleteWithSystem sends a prompt with a system instruction. Transient
// failures are retried with exponential backoff; after the retry budget is
// exhausted the error matches ErrModelUnavailable.
func (g *Gemini) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	// Apply the configured timeout when the caller brought no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	logging.APIDebug("[gemini] model=%s system_len=%d user_len=%d",
		g.cfg.Model, len(systemPrompt), len(userPrompt))

	g.throttle()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	var lastErr error
	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", &ModelError{Op: "complete", Err: ctx.Err()}
			}
		}

		resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(userPrompt), config)
		if err != nil {
			if ctx.Err() != nil {
				logging.Get(logging.CategoryAPI).Error("[gemini] cancelled/timed out after %v: %v", time.Since(start), ctx.Err())
				return "", &ModelError{Op: "complete", Err: ctx.Err()}
			}
			lastErr = err
			continue
		}

		text := strings.TrimSpace(resp.Text())
		if text == "" {
			lastErr = errEmptyCompletion
			continue
		}

		logging.API("[gemini] completed in %v response_len=%d", time.Since(start), len(text))
		return text, nil
	}

	logging.Get(logging.CategoryAPI).Error("[gemini] retries exhausted after %v: %v", time.Since(start), lastErr)
	return "", &ModelError{Op: "complete", Err: lastErr}
}

// throttle enforces a minimum spacing between requests.
func (g *Gemini) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if elapsed := time.Since(g.lastRequest); elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	g.lastRequest = time.Now()
}
