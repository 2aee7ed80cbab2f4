package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"spoon/internal/config"
	"spoon/internal/corpus"
	"spoon/internal/llm"
	"spoon/internal/session"
)

func TestMain(m *testing.M) {
	// go.opencensus.io starts a background worker in package init (pulled in
	// transitively); it is not a leak in the code under test.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// routedClient answers each pipeline stage from its system prompt: the
// classifier, planner, responder, and small-talk prompts are distinct
// enough to route on. It also tracks in-flight call concurrency.
type routedClient struct {
	classify string
	plan     string
	respond  string
	chat     string

	respondErr error

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (c *routedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.CompleteWithSystem(ctx, "", prompt)
}

func (c *routedClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	c.calls.Add(1)

	switch {
	case strings.Contains(system, "Classify"):
		return c.classify, nil
	case strings.Contains(system, "query planner"):
		return c.plan, nil
	case strings.Contains(system, "conversationally"):
		return c.chat, nil
	default:
		return c.respond, c.respondErr
	}
}

// mapProvider is a fixed in-memory corpus.
type mapProvider struct {
	mu      sync.Mutex
	files   map[string]string
	order   []string
	failing map[string]bool
}

func (p *mapProvider) List(ctx context.Context) ([]corpus.RawUnit, error) {
	var raw []corpus.RawUnit
	for _, path := range p.order {
		raw = append(raw, corpus.RawUnit{Path: path, Size: len(p.files[path])})
	}
	return raw, nil
}

func (p *mapProvider) Fetch(ctx context.Context, unitID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failing[unitID] {
		return "", &corpus.FetchError{UnitID: unitID, Err: errors.New("unreachable")}
	}
	text, ok := p.files[unitID]
	if !ok {
		return "", &corpus.FetchError{UnitID: unitID, Err: errors.New("not found")}
	}
	return text, nil
}

func testProvider() *mapProvider {
	return &mapProvider{
		files: map[string]string{
			"a.py":      "def handler():\n    return serve()\n",
			"b.py":      "def serve():\n    return 'ok'\n",
			"README.md": "# demo\nA tiny demo service.\n",
		},
		order: []string{"a.py", "b.py", "README.md"},
	}
}

func newTestEngine(client llm.Client) (*Engine, *session.MemoryStore) {
	store := session.NewMemoryStore()
	return New(config.Default(), client, store), store
}

func TestAskFullTurn(t *testing.T) {
	client := &routedClient{
		classify: "TECHNICAL",
		plan:     "a.py — defines the handler\nb.py — called by it",
		respond:  "handler calls serve [unit: a.py] which returns ok [unit: b.py]",
	}
	engine, store := newTestEngine(client)

	sess, summary, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)
	require.Equal(t, 3, summary.Units)
	require.Equal(t, 3, summary.Selectable)

	result, err := engine.Ask(context.Background(), sess.ID, "what does the handler do")
	require.NoError(t, err)
	require.Contains(t, result.Answer, "handler calls serve")
	require.Equal(t, []string{"a.py", "b.py"}, result.UsedUnitIDs)
	require.False(t, result.Diagnostics.Fallback)
	require.Equal(t, []string{"a.py", "b.py"}, result.Plan.IDs())

	turns, err := store.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Equal(t, "what does the handler do", turns[0].Question)
	require.Equal(t, "a.py,b.py", turns[0].PlanSummary)
}

func TestAskUnknownSession(t *testing.T) {
	engine, _ := newTestEngine(&routedClient{})
	_, err := engine.Ask(context.Background(), "no-such-id", "q")
	require.ErrorIs(t, err, ErrUnknownSession)
}

func TestAskChatIntentSkipsPipeline(t *testing.T) {
	client := &routedClient{
		classify: "CHAT",
		chat:     "Hello! Ask me about the repo you loaded.",
	}
	engine, store := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)

	result, err := engine.Ask(context.Background(), sess.ID, "hi there")
	require.NoError(t, err)
	require.Equal(t, "Hello! Ask me about the repo you loaded.", result.Answer)
	require.Nil(t, result.Plan)
	require.Empty(t, result.UsedUnitIDs)

	// Chat turns still land in history; only the pipeline is skipped.
	turns, err := store.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	require.Empty(t, turns[0].PlanSummary)
	// Exactly two model calls: classify + small talk.
	require.EqualValues(t, 2, client.calls.Load())
}

func TestAskResponderFailureAppendsNoTurn(t *testing.T) {
	client := &routedClient{
		classify:   "TECHNICAL",
		plan:       "a.py — relevant",
		respondErr: &llm.ModelError{Op: "respond", Err: errors.New("deadline")},
	}
	engine, store := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)

	_, err = engine.Ask(context.Background(), sess.ID, "what does the handler do")
	require.ErrorIs(t, err, llm.ErrModelUnavailable)

	turns, err := store.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestAskCancelledAppendsNoTurn(t *testing.T) {
	client := &routedClient{
		classify: "TECHNICAL",
		plan:     "a.py — relevant",
		respond:  "answer",
	}
	engine, store := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Ask(ctx, sess.ID, "what does the handler do")
	require.Error(t, err)

	turns, err := store.RecentTurns(sess.ID, 10)
	require.NoError(t, err)
	require.Empty(t, turns)
}

func TestAskFetchFailureIsDiagnosticNotFatal(t *testing.T) {
	provider := testProvider()
	provider.failing = map[string]bool{"b.py": true}
	client := &routedClient{
		classify: "TECHNICAL",
		plan:     "a.py — defines handler\nb.py — called by it",
		respond:  "handler calls serve [unit: a.py]",
	}
	engine, _ := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", provider)
	require.NoError(t, err)

	result, err := engine.Ask(context.Background(), sess.ID, "what does the handler do")
	require.NoError(t, err)
	require.Len(t, result.Diagnostics.Skipped, 1)
	require.Equal(t, "b.py", result.Diagnostics.Skipped[0].UnitID)
	require.Equal(t, []string{"a.py"}, result.UsedUnitIDs)
}

func TestAskModelDownStillPlansViaFallback(t *testing.T) {
	// Planner and classifier calls fail; the responder call succeeds so the
	// turn can complete over the fallback plan.
	client := &failThenRespondClient{respond: "a.py defines handler [unit: a.py]"}
	engine, _ := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)

	result, err := engine.Ask(context.Background(), sess.ID, "what does a.py do")
	require.NoError(t, err)
	require.True(t, result.Diagnostics.Fallback)
	require.Equal(t, "a.py", result.Plan.IDs()[0])
}

// failThenRespondClient fails every call except the responder's.
type failThenRespondClient struct {
	respond string
}

func (c *failThenRespondClient) Complete(ctx context.Context, prompt string) (string, error) {
	return "", &llm.ModelError{Op: "complete", Err: errors.New("down")}
}

func (c *failThenRespondClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	if strings.Contains(system, "ONLY from the context") {
		return c.respond, nil
	}
	return "", &llm.ModelError{Op: "call", Err: errors.New("down")}
}

func TestAskTurnsSerializePerSession(t *testing.T) {
	client := &routedClient{
		classify: "TECHNICAL",
		plan:     "a.py — relevant",
		respond:  "answer [unit: a.py]",
	}
	engine, store := newTestEngine(client)

	sess, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "demo/repo", testProvider())
	require.NoError(t, err)

	const turns = 8
	errs := make(chan error, turns)
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Ask(context.Background(), sess.ID, fmt.Sprintf("question %d", i))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.EqualValues(t, 1, client.maxSeen.Load(), "turns on one session must not overlap")

	recorded, err := store.RecentTurns(sess.ID, turns)
	require.NoError(t, err)
	require.Len(t, recorded, turns)
}

func TestLoadDocument(t *testing.T) {
	engine, _ := newTestEngine(&routedClient{})
	sess, summary, err := engine.LoadDocument(context.Background(), "notes.txt", "a short note about nothing much")
	require.NoError(t, err)
	require.Equal(t, corpus.SourceDocument, summary.SourceKind)
	require.Equal(t, 1, summary.Units)
	require.True(t, sess.Manifest.Contains("notes.txt#000"))
}

func TestLoadDocumentWithBinarySourceName(t *testing.T) {
	// Uploaded documents arrive as extracted text; the source file's
	// extension must not make the sections unselectable.
	engine, _ := newTestEngine(&routedClient{})
	sess, summary, err := engine.LoadDocument(context.Background(), "report.pdf", "extracted text of the report")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Selectable, "PDF-named document sections must stay selectable")

	u, ok := sess.Manifest.Unit("report.pdf#000")
	require.True(t, ok)
	require.True(t, u.Selectable())
}

func TestLoadRepositoryBadURL(t *testing.T) {
	engine, _ := newTestEngine(&routedClient{})
	_, _, err := engine.LoadRepository(context.Background(), "not a repo url")
	require.Error(t, err)
}

func TestLoadEmptyCorpusFails(t *testing.T) {
	engine, _ := newTestEngine(&routedClient{})
	_, _, err := engine.LoadCorpus(context.Background(), corpus.SourceRepository, "empty/repo", &mapProvider{})
	var me *corpus.ManifestError
	require.ErrorAs(t, err, &me)
}
