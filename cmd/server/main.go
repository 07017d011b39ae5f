package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/greenlight-eco/ecolens/internal/api"
	"github.com/greenlight-eco/ecolens/pkg/ecolens"
	"github.com/greenlight-eco/ecolens/pkg/ecolens/config"
	"github.com/greenlight-eco/ecolens/pkg/ecolens/session"
	fsstorage "github.com/greenlight-eco/ecolens/pkg/ecolens/storage/fs"
	"github.com/greenlight-eco/ecolens/pkg/mlclient"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	store, err := cfg.BuildSlotStore()
	if err != nil {
		logger.Error("failed to build slot storage", "error", err)
		os.Exit(1)
	}

	svc, err := cfg.BuildService(store, logger)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	sessions, err := cfg.BuildSessionStore(context.Background())
	if err != nil {
		logger.Error("failed to build session store", "error", err)
		os.Exit(1)
	}

	ml := mlclient.New(cfg.MLBaseURL, mlclient.WithLogger(logger))
	urls := ecolens.NewURLBuilder(cfg.LocalBaseURL(), cfg.PublicBaseURL)

	server := newHTTPServer(cfg, svc, ml, sessions, urls, store, logger)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.routes(),
	}

	go func() {
		logger.Info("EcoLens server starting",
			"port", cfg.Port, "env", cfg.Environment,
			"storage", cfg.StorageType, "sessions", cfg.SessionStoreType,
			"ml_base_url", cfg.MLBaseURL)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server exiting")
}

type httpServer struct {
	cfg      *config.ServerConfig
	service  ecolens.Service
	ml       *mlclient.Client
	sessions session.Store
	urls     *ecolens.URLBuilder
	store    ecolens.SlotStore
	logger   *slog.Logger
}

func newHTTPServer(cfg *config.ServerConfig, svc ecolens.Service, ml *mlclient.Client, sessions session.Store, urls *ecolens.URLBuilder, store ecolens.SlotStore, logger *slog.Logger) *httpServer {
	return &httpServer{
		cfg:      cfg,
		service:  svc,
		ml:       ml,
		sessions: sessions,
		urls:     urls,
		store:    store,
		logger:   logger,
	}
}

func (s *httpServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for development
	if s.cfg.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == "OPTIONS" {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/health", s.handleHealth)

	r.Mount("/", api.NewUploadHandler(s.service, s.urls, s.cfg.MaxUploadBytes, s.logger).Routes())
	r.Mount("/api", api.NewEcoHandler(s.service, s.ml, s.sessions, s.urls, s.logger).Routes())

	// Slot files are served straight off disk when the filesystem backend
	// is in use. Other backends serve files through their own URLs.
	if fsStore, ok := s.store.(*fsstorage.Store); ok {
		for _, slot := range s.cfg.Slots {
			prefix := "/" + slot + "/"
			r.Handle(prefix+"*", http.StripPrefix(prefix,
				http.FileServer(http.Dir(fsStore.SlotDir(slot)))))
		}
	}

	return r
}

func (s *httpServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":      "OK",
		"message":     "EcoLens backend is running",
		"environment": s.cfg.Environment,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
