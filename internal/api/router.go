package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/live-neon/neon-soul-sub008/internal/api/handlers"
	mw "github.com/live-neon/neon-soul-sub008/internal/api/middleware"
	"github.com/live-neon/neon-soul-sub008/internal/buildconfig"
	"github.com/live-neon/neon-soul-sub008/internal/config"
	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"github.com/live-neon/neon-soul-sub008/internal/embedding"
	"github.com/live-neon/neon-soul-sub008/internal/llm"
	"github.com/live-neon/neon-soul-sub008/internal/oracle"
	"github.com/live-neon/neon-soul-sub008/internal/service"
	"github.com/live-neon/neon-soul-sub008/internal/store"
	"go.uber.org/zap"
)

// App holds the router and run-level metrics for lifecycle management.
type App struct {
	Router       *chi.Mux
	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

// NewApp wires clients, the synthesizer and the optional Postgres archive
// into the HTTP surface. db may be nil; archive endpoints then report
// themselves unconfigured.
func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))

	llmClient, err := llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		return nil, err
	}
	logger.Info("llm client initialized", zap.String("provider", config.LLMProvider()))

	semanticOracle, err := oracle.NewEmbeddingOracle(embeddingClient)
	if err != nil {
		return nil, err
	}

	synthesizer, err := service.NewSynthesizer(semanticOracle, llmClient, llmClient, config.SoulRoot(), logger)
	if err != nil {
		return nil, err
	}
	synthesizer.SetMatchThreshold(config.MatchThreshold())
	synthesizer.SetResynthesisRatio(config.ResynthesisRatio())

	var archive *store.SignalArchive
	var cycles *store.CycleLog
	if db != nil {
		archive = store.NewSignalArchive(db)
		cycles = store.NewCycleLog(db)
	}

	soulHandler := handlers.NewSoulHandler(synthesizer, archive, cycles, embeddingClient, logger)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1/souls/{id}", func(r chi.Router) {
		r.Post("/synthesize", soulHandler.Synthesize)
		r.Get("/", soulHandler.Get)
		r.Get("/axioms", soulHandler.GetAxioms)
		r.Get("/signals", soulHandler.GetSignals)
		r.Get("/signals/similar", soulHandler.SearchSignals)
		r.Get("/signals/{signalID}", soulHandler.GetSignal)
		r.Get("/cycles", soulHandler.GetCycles)
	})

	return app, nil
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": buildconfig.Version(),
			"commit":  buildconfig.Commit(),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure clients satisfy interfaces at compile time.
var (
	_ domain.EmbeddingClient       = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient       = (*embedding.MockClient)(nil)
	_ llm.Client                   = (*llm.OpenAIClient)(nil)
	_ llm.Client                   = (*llm.AnthropicClient)(nil)
	_ llm.Client                   = (*llm.MockClient)(nil)
	_ domain.BatchClassifier       = (*llm.OpenAIClient)(nil)
	_ domain.SemanticOracle        = (*oracle.EmbeddingOracle)(nil)
	_ domain.ContradictionDetector = (*service.NegationHeuristic)(nil)
)
