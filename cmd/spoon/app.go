package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"spoon/internal/config"
	"spoon/internal/llm"
	"spoon/internal/logging"
	"spoon/internal/service"
	"spoon/internal/session"
)

// app bundles what every command needs: the loaded config, the engine, and
// whatever has to be closed on the way out.
type app struct {
	cfg    config.Config
	engine *service.Engine

	sqlite *session.SQLiteStore
}

// newApp loads config, wires the model client and the history store, and
// builds the engine.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.StateDir, cfg.Debug); err != nil {
		return nil, err
	}

	client, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.Model,
		Timeout: cfg.ResponderTimeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("set GEMINI_API_KEY or gemini_api_key in %s: %w", configPath, err)
	}

	a := &app{cfg: cfg}
	var store session.Store = session.NewMemoryStore()
	if cfg.DBPath != "" {
		s, err := session.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.sqlite = s
		store = s
		logger.Debug("using sqlite history store")
	}

	a.engine = service.New(cfg, client, store)
	return a, nil
}

func (a *app) Close() {
	if a.sqlite != nil {
		_ = a.sqlite.Close()
	}
	logging.Close()
}

// loadCorpus resolves the --repo/--doc flags into a live session.
func (a *app) loadCorpus(ctx context.Context) (*session.Session, service.ManifestSummary, error) {
	switch {
	case repoURL != "" && docPath != "":
		return nil, service.ManifestSummary{}, fmt.Errorf("--repo and --doc are mutually exclusive")
	case repoURL != "":
		return a.engine.LoadRepository(ctx, repoURL)
	case docPath != "":
		data, err := os.ReadFile(docPath)
		if err != nil {
			return nil, service.ManifestSummary{}, fmt.Errorf("read document: %w", err)
		}
		return a.engine.LoadDocument(ctx, filepath.Base(docPath), string(data))
	default:
		return nil, service.ManifestSummary{}, fmt.Errorf("load a corpus with --repo or --doc")
	}
}

// printResult renders one answered turn.
func printResult(result *service.Result) {
	fmt.Println(result.Answer)

	if len(result.UsedUnitIDs) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, id := range result.UsedUnitIDs {
			fmt.Printf("  - %s\n", id)
		}
	}

	if verbose {
		d := result.Diagnostics
		if d.Fallback {
			fmt.Println("\n(planned by the lexical fallback; model planning was unavailable)")
		}
		for _, s := range d.Skipped {
			fmt.Printf("(skipped %s: %v)\n", s.UnitID, s.Err)
		}
		if len(d.NotIncluded) > 0 {
			fmt.Printf("(over context budget, not included: %v)\n", d.NotIncluded)
		}
	}
}
