package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/lecfantasy/league-engine/internal/auth"
	"github.com/lecfantasy/league-engine/internal/config"
	"github.com/lecfantasy/league-engine/internal/database"
	"github.com/lecfantasy/league-engine/internal/market"
	"github.com/lecfantasy/league-engine/internal/metrics"
	"github.com/lecfantasy/league-engine/internal/pricing"
	"github.com/lecfantasy/league-engine/internal/refdata"
	"github.com/lecfantasy/league-engine/internal/rostercap"
	"github.com/lecfantasy/league-engine/internal/store"
	"github.com/lecfantasy/league-engine/internal/sweeper"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	cfg.ConfigureLogging()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg, os.Args[2:]); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("league-engine stopped with error")
	}
	log.Info("league-engine stopped")
}

func runMigrate(cfg *config.Config, args []string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}
	if len(args) == 0 {
		return errors.New("usage: server migrate [up|down [steps]]")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp(cfg.DatabaseURL)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return database.MigrateDown(cfg.DatabaseURL, steps)
	default:
		return fmt.Errorf("unknown migration command: %s", args[0])
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	// --- Initialize store ---
	var st store.Store
	if cfg.DatabaseURL != "" {
		if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
			return err
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		log.Info("connected to PostgreSQL")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Reference data ---
	var src refdata.TeamSource
	if cfg.LolesportsAPIKey != "" {
		src = refdata.NewClient(cfg.LolesportsBaseURL, cfg.LolesportsAPIKey)
		log.Info("using lolesports API for reference data")
	} else {
		seed, err := refdata.SeedSource()
		if err != nil {
			return err
		}
		src = seed
		log.Warn("LOLESPORTS_API_KEY not set, using built-in roster snapshot")
	}

	// Wrap with Redis read-through cache if configured.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		src = refdata.NewCachedSource(src, rdb, cfg.RefdataCacheTTL, cfg.LeagueName)
		log.WithField("ttl", cfg.RefdataCacheTTL.String()).Info("Redis reference cache enabled")
	}

	pricer, err := newPricer(cfg)
	if err != nil {
		return err
	}
	refs := refdata.NewService(src, pricer, refdata.Options{
		League:   cfg.LeagueName,
		Reserved: cfg.ReservedPlayer,
	})

	// --- Activity hub ---
	hub := market.NewActivityHub()
	go hub.Run(ctx)

	// --- Market engine ---
	engine := market.NewEngine(st, refs, rostercap.Default(), market.Config{
		StartingBalance:    cfg.StartingBalance,
		OfferTTL:           cfg.OfferTTL,
		EnforceCapsOnTrade: cfg.EnforceCapsOnTrade,
	}, market.WithHub(hub))

	if cfg.ExpirySweepInterval > 0 {
		sw, err := sweeper.New(engine, cfg.ExpirySweepInterval)
		if err != nil {
			return err
		}
		sw.Start()
		cleanup = append(cleanup, func() {
			if err := sw.Stop(); err != nil {
				log.WithError(err).Error("sweeper shutdown")
			}
		})
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"league-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	handler := market.NewHandler(engine, refs, hub)
	r.Mount("/api/v1", handler.Routes(auth.Middleware(cfg.JWTSecret)))

	// --- Server ---
	// No WriteTimeout: /api/v1/ws connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("league-engine listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("shutting down league-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newPricer(cfg *config.Config) (pricing.Pricer, error) {
	switch cfg.PricingMode {
	case config.PricingFixed:
		return pricing.NewFixedPricer(cfg.FixedPrice)
	default:
		return pricing.NewRandomPricer(cfg.PriceMin, cfg.PriceMax, uint64(time.Now().UnixNano()))
	}
}

// requestLogger logs one line per request through logrus.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}
