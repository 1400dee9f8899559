// Command veriscribe is the transcript validation server. It accepts diarized
// medical transcripts over a WebSocket bridge, flags low-confidence words and
// medical terms for review, and persists confirmed corrections.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/veriscribe-io/veriscribe/internal/app"
	"github.com/veriscribe-io/veriscribe/internal/audit"
	"github.com/veriscribe-io/veriscribe/internal/bridge"
	"github.com/veriscribe-io/veriscribe/internal/config"
	"github.com/veriscribe-io/veriscribe/internal/health"
	"github.com/veriscribe-io/veriscribe/internal/lexicon"
	"github.com/veriscribe-io/veriscribe/internal/medterm"
	"github.com/veriscribe-io/veriscribe/internal/medterm/llmclass"
	"github.com/veriscribe-io/veriscribe/internal/observe"
	"github.com/veriscribe-io/veriscribe/internal/resilience"
	"github.com/veriscribe-io/veriscribe/pkg/provider/llm"
	"github.com/veriscribe-io/veriscribe/pkg/provider/llm/anyllm"
	"github.com/veriscribe-io/veriscribe/pkg/provider/llm/openai"
)

const shutdownTimeout = 15 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "veriscribe: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "veriscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("veriscribe starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "veriscribe",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Medical-term classifier ───────────────────────────────────────────────
	classifier, err := buildClassifier(cfg)
	if err != nil {
		slog.Error("failed to build classifier", "err", err)
		return 1
	}

	// ── Lexicon ───────────────────────────────────────────────────────────────
	terms, err := cfg.LexiconTerms()
	if err != nil {
		slog.Error("failed to load lexicon", "err", err)
		return 1
	}
	var lex *lexicon.Lexicon
	if len(terms) > 0 {
		lex = lexicon.New(terms)
		slog.Info("lexicon loaded", "terms", len(terms))
	}

	// ── Audit store ───────────────────────────────────────────────────────────
	var recorder audit.Recorder
	var pgRecorder *audit.PostgresRecorder
	if cfg.Audit.PostgresDSN != "" {
		pgRecorder, err = audit.NewPostgresRecorder(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect audit store", "err", err)
			return 1
		}
		defer pgRecorder.Close()
		recorder = pgRecorder
		slog.Info("audit store connected")
	}

	// ── Session manager and bridge ────────────────────────────────────────────
	manager := app.NewManager(app.ManagerConfig{
		Thresholds: cfg.Review.Thresholds,
		Classifier: classifier,
		Recorder:   recorder,
	})
	wsBridge := bridge.New(manager, lex)

	// ── HTTP server ───────────────────────────────────────────────────────────
	checkers := []health.Checker{}
	if pgRecorder != nil {
		checkers = append(checkers, health.Checker{Name: "database", Check: pgRecorder.Ping})
	}
	healthHandler := health.New(checkers...).WithSessionReporter(manager.IsActive)

	mux := http.NewServeMux()
	healthHandler.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /session", wsBridge)

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// buildClassifier assembles the medical-term classifier chain from config:
// the primary LLM backend wrapped in [llmclass.Classifier], plus any
// configured fallbacks behind per-backend circuit breakers. Returns nil when
// no primary is configured; sessions then run without medical-term detection.
func buildClassifier(cfg *config.Config) (medterm.Classifier, error) {
	if cfg.Classifier.Primary.Name == "" {
		return nil, nil
	}

	var opts []llmclass.Option
	if cfg.Classifier.Temperature > 0 {
		opts = append(opts, llmclass.WithTemperature(cfg.Classifier.Temperature))
	}

	primaryLLM, err := buildLLMProvider(cfg.Classifier.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary %q: %w", cfg.Classifier.Primary.Name, err)
	}
	primary := llmclass.New(primaryLLM, classifierOpts(opts, cfg.Classifier.Primary.Name)...)

	if len(cfg.Classifier.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewClassifierFallback(primary, cfg.Classifier.Primary.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Classifier.Fallbacks {
		p, err := buildLLMProvider(entry)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		chain.AddFallback(entry.Name, llmclass.New(p, classifierOpts(opts, entry.Name)...))
		slog.Info("classifier fallback registered", "name", entry.Name, "model", entry.Model)
	}
	return chain, nil
}

// classifierOpts copies the shared options and labels the backend for
// request metrics.
func classifierOpts(shared []llmclass.Option, provider string) []llmclass.Option {
	return append(append([]llmclass.Option{}, shared...), llmclass.WithProvider(provider))
}

// buildLLMProvider constructs an LLM backend from a provider entry. The
// "openai" name uses the official client; every other name goes through the
// any-llm multiplexer (anthropic, gemini, ollama, mistral, groq, …).
func buildLLMProvider(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
