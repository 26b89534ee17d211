package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joelkehle/kontrata/internal/analysis"
	"github.com/joelkehle/kontrata/internal/archive"
	"github.com/joelkehle/kontrata/internal/clauses"
	"github.com/joelkehle/kontrata/internal/config"
	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/joelkehle/kontrata/internal/export"
	"github.com/joelkehle/kontrata/internal/llm"
	"github.com/joelkehle/kontrata/internal/logging"
	"github.com/joelkehle/kontrata/internal/records"
	"github.com/joelkehle/kontrata/internal/render"
	"github.com/joelkehle/kontrata/internal/rules"
	"github.com/joelkehle/kontrata/internal/schema"
	"github.com/joelkehle/kontrata/internal/slots"
	"github.com/joelkehle/kontrata/internal/store"
	"github.com/joelkehle/kontrata/internal/telemetry"
)

type app struct {
	cfg       *config.Config
	book      *rules.Book
	completer *llm.Service
	tracker   *dialogue.Tracker
	pdf       *export.PDFRenderer
	closers   []func(context.Context) error
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	return cfg, nil
}

func loadBook(cfg *config.Config) (*rules.Book, error) {
	if cfg.Rules.Dir == "" {
		return rules.Builtin()
	}
	book, err := rules.LoadDir(cfg.Rules.Dir)
	if err != nil {
		return nil, fmt.Errorf("load rules from %s: %w", cfg.Rules.Dir, err)
	}
	return book, nil
}

func newCaller(cfg config.LLMConfig) (llm.Caller, error) {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return llm.NewAnthropicCaller(cfg.APIKey, cfg.Model)
	case "ollama":
		return llm.NewOllamaCaller(cfg.Endpoint, cfg.Model, &http.Client{}), nil
	default:
		return nil, nil
	}
}

// buildApp wires the engine from configuration. Optional integrations that
// fail to start are logged and left out.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	shutdown, err := telemetry.Setup(ctx, telemetry.Config{Endpoint: cfg.Telemetry.Endpoint, ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	if a.book, err = loadBook(cfg); err != nil {
		return nil, err
	}

	var sources []schema.Source
	if cfg.Schema.File != "" {
		src, err := schema.LoadFile(cfg.Schema.File)
		if err != nil {
			return nil, fmt.Errorf("load schema file: %w", err)
		}
		sources = append(sources, src)
	}
	resolver := schema.NewResolver(sources...)

	caller, err := newCaller(cfg.LLM)
	if err != nil {
		slog.Warn("completion_disabled", "provider", cfg.LLM.Provider, "error", err)
		caller = nil
	}
	a.completer = llm.NewService(ctx, caller, cfg.LLM.Timeout)
	a.completer.LimitTokens(cfg.LLM.MaxTokens)
	slog.Info("completion_service", "provider", cfg.LLM.Provider, "available", a.completer.Available())

	var tagger slots.Tagger
	if cfg.Tagger.Enabled {
		if a.completer.Available() {
			tagger = slots.CompletionTagger{Completer: a.completer}
		} else {
			tagger = slots.PatternTagger{}
		}
	}

	var (
		sessions dialogue.SessionStore
		recs     records.Store
	)
	switch strings.ToLower(cfg.Store.Backend) {
	case "sqlite":
		db, err := store.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store (%s): %w", cfg.Store.Path, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		sessions, recs = db.Sessions(), db.Records()
		slog.Info("using sqlite store", "path", cfg.Store.Path)
	default:
		sessions = dialogue.NewMemorySessionStore()
		recs = records.NewMemoryStore(cfg.Store.MaxContracts)
	}

	var archiver dialogue.Archiver
	if cfg.Archive.Enabled {
		ma, err := archive.NewMinioArchiver(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			Prefix:    cfg.Archive.Prefix,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err == nil {
			err = ma.EnsureBucket(ctx)
		}
		if err != nil {
			slog.Warn("archive_disabled", "endpoint", cfg.Archive.Endpoint, "error", err)
		} else {
			archiver = ma
		}
	}

	renderer, err := render.New(resolver)
	if err != nil {
		return nil, err
	}
	a.tracker, err = dialogue.NewTracker(dialogue.Config{
		Resolver:  resolver,
		Book:      a.book,
		Extractor: slots.NewExtractor(a.completer, tagger),
		Validator: rules.NewValidator(a.book),
		Drafter:   clauses.NewDrafter(a.completer),
		Advisor:   rules.NewAdvisor(a.book, a.completer),
		Renderer:  renderer,
		Analyzer:  analysis.NewAnalyzer(a.book, a.completer),
		Archiver:  archiver,
		Sessions:  sessions,
		Records:   recs,
	})
	if err != nil {
		return nil, err
	}
	a.pdf = export.NewPDFRenderer(cfg.Export.ChromePath)
	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
