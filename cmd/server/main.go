package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agrianalytics/mandi-engine/internal/ingest"
	"github.com/agrianalytics/mandi-engine/internal/metrics"
	"github.com/agrianalytics/mandi-engine/internal/quote"
	"github.com/agrianalytics/mandi-engine/internal/recommend"
	"github.com/agrianalytics/mandi-engine/internal/store"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store with bundled fixtures")
		mem := store.NewMemoryStore()
		mem.SeedReferenceData()
		st = mem
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price quote source ---
	timeout := durationMsEnv("QUOTE_TIMEOUT_MS", quote.DefaultTimeout)
	var src quote.Source
	if forecastURL := os.Getenv("FORECAST_URL"); forecastURL != "" {
		src = quote.NewForecastClient(forecastURL, timeout)
		slog.Info("using forecast service for prices", "url", forecastURL)
	} else {
		src = quote.NewStoreSource(st)
		slog.Info("using directory store for prices")
	}

	agg := quote.NewAggregator(src,
		timeout,
		floatEnv("MIN_FORECAST_CONFIDENCE", quote.DefaultMinConfidence),
		intEnv("QUOTE_MAX_CONCURRENCY", quote.DefaultMaxConcurrency),
	)

	// --- WebSocket hub ---
	hub := recommend.NewPriceHub()
	go hub.Run()

	// --- Recommendation engine ---
	svc := recommend.NewService(st, agg, floatEnv("DISCOVERY_RADIUS_KM", recommend.DefaultDiscoveryRadiusKm))

	// --- Daily price snapshot ---
	snap := ingest.New(st, src, hub)
	if err := snap.Start(os.Getenv("SNAPSHOT_CRON")); err != nil {
		slog.Error("invalid SNAPSHOT_CRON", "err", err)
		os.Exit(1)
	}
	defer snap.Stop()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"mandi-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time price updates.
		r.Get("/ws", hub.HandleWS)

		// Mandi and commodity directory.
		r.Get("/mandis", svc.HandleListMandis)
		r.Get("/mandis/nearby", svc.HandleNearbyMandis)
		r.Get("/commodities", svc.HandleListCommodities)

		// Recommendation engine.
		r.Post("/recommendations", svc.HandleRecommend)
		r.Get("/routes/summary/{commodityID}/{mandiID}", svc.HandleRouteSummary)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("mandi-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down mandi-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("mandi-engine stopped")
}

func floatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		slog.Warn("ignoring invalid value", "key", key, "value", v)
	}
	return def
}

func intEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring invalid value", "key", key, "value", v)
	}
	return def
}

func durationMsEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		slog.Warn("ignoring invalid value", "key", key, "value", v)
	}
	return def
}
