package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-tutoring/internal/api/http"
	auth "github.com/mind-engage/mindengage-tutoring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-tutoring/internal/classroom"
	"github.com/mind-engage/mindengage-tutoring/internal/config"
	"github.com/mind-engage/mindengage-tutoring/internal/db"
	"github.com/mind-engage/mindengage-tutoring/internal/games"
	"github.com/mind-engage/mindengage-tutoring/internal/homework"
	"github.com/mind-engage/mindengage-tutoring/internal/logging"
	"github.com/mind-engage/mindengage-tutoring/internal/metrics"
	"github.com/mind-engage/mindengage-tutoring/internal/scoring"
	syncx "github.com/mind-engage/mindengage-tutoring/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer dbh.Close()

	// --- Stores ---
	m := metrics.New(prometheus.NewRegistry())
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	roster := classroom.NewSQLStore(dbh, log.Named("classroom"))
	hw := homework.NewSQLStore(dbh,
		homework.WithEngine(scoring.NewEngine()),
		homework.WithEvents(events),
		homework.WithMetrics(m),
		homework.WithLogger(log.Named("homework")),
	)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(m.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Password-less tokens for seeded users (offline mode by default).
	if cfg.EnableDevLogin {
		r.Post("/auth/dev-token", auth.DevTokenHandler(authSvc, api.UserLookup(roster)))
		log.Warn("dev login enabled", zap.String("path", "/auth/dev-token"))
	}

	api.Mount(r, api.Deps{
		Roster:             roster,
		Homework:           hw,
		Games:              games.NewStore(dbh),
		Generator:          games.NewGenerator(nil),
		Events:             events,
		Auth:               authSvc,
		AllowClaimFallback: cfg.Mode == config.ModeOffline,
		SubmitLimiter:      api.NewSubjectLimiter(cfg.SubmitRatePerMin),
		Log:                log.Named("api"),
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("mode", string(cfg.Mode)),
			zap.String("db", cfg.DBDriver),
			zap.String("site_id", cfg.SiteID))
		errc <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	return srv.Shutdown(shutdownCtx)
}
