// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bissquit/incident-relay/internal/config"
	"github.com/bissquit/incident-relay/internal/events"
	"github.com/bissquit/incident-relay/internal/pkg/httputil"
	"github.com/bissquit/incident-relay/internal/record"
	"github.com/bissquit/incident-relay/internal/relay"
	"github.com/bissquit/incident-relay/internal/servicenow"
	"github.com/bissquit/incident-relay/internal/statusdashboard"
	"github.com/bissquit/incident-relay/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        config.Config
	logger        *slog.Logger
	server        *http.Server
	metricsServer *http.Server
	shuttingDown  atomic.Bool
}

// New creates a new application instance.
func New(cfg config.Config) *App {
	logger := NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	app := &App{
		config: cfg,
		logger: logger,
	}

	router := app.setupRouter()

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")
	a.shuttingDown.Store(true)

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{
		"server":         a.server,
		"metrics server": a.metricsServer,
	} {
		name, srv := name, srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	return errors.Join(errs...)
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	service, querier := NewRelayService(a.config, a.logger)
	relayHandler := relay.NewHandler(service, querier)

	r.Route("/api/v1", func(r chi.Router) {
		relayHandler.RegisterRoutes(r)
	})

	return r
}

// NewRelayService wires the event builder, the dashboard client and the
// optional ServiceNow lookup from cfg. The returned querier is nil when no
// instance URL is configured.
func NewRelayService(cfg config.Config, logger *slog.Logger) (*relay.Service, record.RelationQuerier) {
	builder := events.NewBuilder(events.BuilderConfig{
		StatusMapping:          cfg.Mapping.Status,
		SeverityMapping:        cfg.Mapping.Severity,
		SeverityInclude:        cfg.Mapping.SeverityInclude,
		SeverityHide:           cfg.Mapping.SeverityHide,
		IncludeLongDescription: cfg.Mapping.IncludeLongDescription,
		SuppressMarker:         cfg.Mapping.SuppressMarker,
		Relation: events.Relation{
			Table:        cfg.ServiceNow.Relation.Table,
			TaskField:    cfg.ServiceNow.Relation.TaskField,
			ServiceField: cfg.ServiceNow.Relation.ServiceField,
		},
	})

	dashboard := statusdashboard.NewClient(statusdashboard.Config{
		BaseURL:   cfg.StatusDashboard.BaseURL,
		Endpoint:  cfg.StatusDashboard.Endpoint,
		Secret:    cfg.StatusDashboard.Secret,
		Product:   cfg.StatusDashboard.Product,
		Timeout:   cfg.StatusDashboard.Timeout,
		RateLimit: cfg.StatusDashboard.RateLimit,
	})

	if !dashboard.SigningEnabled() {
		logger.Warn("statusdashboard secret is empty: webhooks will be sent unsigned")
	}

	// Without an instance URL related rows must be embedded in the trigger body.
	var querier record.RelationQuerier
	if cfg.ServiceNow.InstanceURL != "" {
		querier = servicenow.NewClient(servicenow.Config{
			InstanceURL: cfg.ServiceNow.InstanceURL,
			Username:    cfg.ServiceNow.Username,
			Password:    cfg.ServiceNow.Password,
			Timeout:     cfg.ServiceNow.Timeout,
			Fields:      []string{cfg.ServiceNow.Relation.TaskField, cfg.ServiceNow.Relation.ServiceField},
		})
	}

	logger.Info("relay configured",
		"webhook", dashboard.WebhookURL(),
		"signing_enabled", dashboard.SigningEnabled(),
		"servicenow_lookup", querier != nil,
		"severity_include", cfg.Mapping.SeverityInclude,
	)

	return relay.NewService(builder, dashboard), querier
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, _ *http.Request) {
	if a.shuttingDown.Load() {
		httputil.Text(w, http.StatusServiceUnavailable, "Shutting down")
		return
	}
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

// NewLogger creates a logger writing to w from the log settings.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
