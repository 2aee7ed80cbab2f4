// Package service is the boundary the front ends call: load a corpus into a
// session, then ask questions against it. It owns session registration,
// per-session serialization, and the plan → assemble → respond sequencing.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"spoon/internal/assembler"
	"spoon/internal/config"
	"spoon/internal/corpus"
	"spoon/internal/llm"
	"spoon/internal/logging"
	"spoon/internal/planner"
	"spoon/internal/provider/github"
	"spoon/internal/provider/upload"
	"spoon/internal/responder"
	"spoon/internal/session"
)

// ErrUnknownSession is returned for ids that were never loaded (or belong
// to a previous process).
var ErrUnknownSession = errors.New("unknown session")

// ManifestSummary is what a front end shows right after loading a corpus.
type ManifestSummary struct {
	SourceKind corpus.SourceKind
	SourceRef  string
	Units      int
	Selectable int
}

// Diagnostics exposes what the pipeline did for one turn, for transparency
// rather than control flow.
type Diagnostics struct {
	Intent      responder.Intent
	Fallback    bool
	Skipped     []assembler.SkippedUnit
	NotIncluded []string
}

// Result is one answered turn.
type Result struct {
	Answer      string
	UsedUnitIDs []string
	Plan        *planner.Plan
	Diagnostics Diagnostics
}

// liveSession is one registered corpus plus its single-writer lock. The
// lock serializes turns: history reads, the pipeline, and the history
// append act as one unit.
type liveSession struct {
	mu   sync.Mutex
	sess *session.Session
	asm  *assembler.Assembler
}

// Engine wires the pipeline. Safe for concurrent use across sessions;
// turns within one session are strictly serialized.
type Engine struct {
	cfg       config.Config
	planner   *planner.Planner
	responder *responder.Responder
	store     session.Store

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

// New builds an engine over one model client and one history store.
func New(cfg config.Config, client llm.Client, store session.Store) *Engine {
	return &Engine{
		cfg: cfg,
		planner: planner.New(client, planner.Config{
			K:             cfg.K,
			BPlan:         cfg.BPlan,
			HistoryWindow: cfg.HistoryWindow,
		}),
		responder: responder.New(client, responder.Config{HistoryWindow: cfg.HistoryWindow}),
		store:     store,
		sessions:  make(map[string]*liveSession),
	}
}

// LoadRepository registers a session over a GitHub repository.
func (e *Engine) LoadRepository(ctx context.Context, repoURL string) (*session.Session, ManifestSummary, error) {
	provider, err := github.New(repoURL, e.cfg.GitHubToken, e.cfg.MaxUnitBytes)
	if err != nil {
		return nil, ManifestSummary{}, err
	}
	return e.load(ctx, corpus.SourceRepository, repoURL, provider)
}

// LoadDocument registers a session over one uploaded document's extracted
// text.
func (e *Engine) LoadDocument(ctx context.Context, name, text string) (*session.Session, ManifestSummary, error) {
	provider, err := upload.New(name, text, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
	if err != nil {
		return nil, ManifestSummary{}, err
	}
	return e.load(ctx, corpus.SourceDocument, name, provider)
}

// LoadCorpus registers a session over a caller-supplied provider. The two
// Load helpers above cover the built-in providers.
func (e *Engine) LoadCorpus(ctx context.Context, kind corpus.SourceKind, ref string, provider corpus.Provider) (*session.Session, ManifestSummary, error) {
	return e.load(ctx, kind, ref, provider)
}

func (e *Engine) load(ctx context.Context, kind corpus.SourceKind, ref string, provider corpus.Provider) (*session.Session, ManifestSummary, error) {
	timer := logging.StartTimer(logging.CategorySession, "load")
	defer timer.Stop()

	raw, err := provider.List(ctx)
	if err != nil {
		return nil, ManifestSummary{}, err
	}

	m, err := corpus.Normalize(kind, ref, raw, corpus.Options{
		MaxUnits:     e.cfg.MaxUnits,
		MaxUnitBytes: e.cfg.MaxUnitBytes,
	})
	if err != nil {
		// ManifestError is fatal for a load; there is no session to
		// degrade into.
		return nil, ManifestSummary{}, err
	}

	asm, err := assembler.New(provider, assembler.Config{
		BContext:     e.cfg.BContext,
		FetchWorkers: e.cfg.FetchWorkers,
		CacheSize:    e.cfg.CacheSize,
	})
	if err != nil {
		return nil, ManifestSummary{}, err
	}

	sess := session.New(m)
	e.mu.Lock()
	e.sessions[sess.ID] = &liveSession{sess: sess, asm: asm}
	e.mu.Unlock()

	summary := ManifestSummary{
		SourceKind: kind,
		SourceRef:  ref,
		Units:      m.Len(),
		Selectable: len(m.Selectable()),
	}
	logging.Session("loaded %s %q as session %s (%d units)", kind, ref, sess.ID, m.Len())
	return sess, summary, nil
}

// Ask runs one full turn. Turns on the same session never interleave; the
// history append is skipped when the request was cancelled, so abandoned
// turns leave no trace.
func (e *Engine) Ask(ctx context.Context, sessionID, question string) (*Result, error) {
	e.mu.RLock()
	ls, ok := e.sessions[sessionID]
	e.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	history, err := e.store.RecentTurns(sessionID, e.cfg.HistoryWindow)
	if err != nil {
		logging.Get(logging.CategorySession).Warn("history read failed, continuing without: %v", err)
		history = nil
	}

	cctx, cancel := stageCtx(ctx, e.cfg.PlannerTimeout.Std())
	intent := e.responder.Classify(cctx, question)
	cancel()
	if intent == responder.IntentChat {
		return e.chatTurn(ctx, sessionID, question, history)
	}

	pctx, cancel := stageCtx(ctx, e.cfg.PlannerTimeout.Std())
	plan, err := e.planner.Plan(pctx, question, ls.sess.Manifest, history)
	cancel()
	if err != nil {
		return nil, err
	}

	bundle, err := ls.asm.Assemble(ctx, plan)
	if err != nil {
		return nil, err
	}

	rctx, cancel := stageCtx(ctx, e.cfg.ResponderTimeout.Std())
	answer, err := e.responder.Respond(rctx, question, bundle, history)
	cancel()
	if err != nil {
		// Typically ErrModelUnavailable; the caller decides how to
		// present it.
		return nil, err
	}

	result := &Result{
		Answer:      answer.Text,
		UsedUnitIDs: answer.UsedUnitIDs,
		Plan:        plan,
		Diagnostics: Diagnostics{
			Intent:      intent,
			Fallback:    plan.Fallback,
			Skipped:     bundle.Skipped,
			NotIncluded: bundle.NotIncluded,
		},
	}

	e.appendTurn(ctx, sessionID, session.Turn{
		Question:    question,
		Answer:      answer.Text,
		UsedUnitIDs: answer.UsedUnitIDs,
		PlanSummary: plan.Summary(),
	})
	return result, nil
}

func (e *Engine) chatTurn(ctx context.Context, sessionID, question string, history []session.Turn) (*Result, error) {
	rctx, cancel := stageCtx(ctx, e.cfg.ResponderTimeout.Std())
	reply, err := e.responder.SmallTalk(rctx, question, history)
	cancel()
	if err != nil {
		return nil, err
	}
	result := &Result{
		Answer:      reply,
		Diagnostics: Diagnostics{Intent: responder.IntentChat},
	}
	e.appendTurn(ctx, sessionID, session.Turn{Question: question, Answer: reply})
	return result, nil
}

func (e *Engine) appendTurn(ctx context.Context, sessionID string, t session.Turn) {
	if ctx.Err() != nil {
		logging.SessionDebug("request cancelled, turn not recorded for session %s", sessionID)
		return
	}
	if err := e.store.AppendTurn(sessionID, t); err != nil {
		logging.Get(logging.CategorySession).Error("append turn failed for session %s: %v", sessionID, err)
	}
}

// stageCtx bounds one pipeline stage. A zero duration leaves the caller's
// context alone.
func stageCtx(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
