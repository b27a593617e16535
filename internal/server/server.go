package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kartoza/laptop-pricer/internal/api"
	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/profiles"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFS embed.FS

// Server holds all the components for the web application
type Server struct {
	cfg        config.Config
	httpServer *http.Server
	router     *mux.Router
	logger     *zap.Logger
	profiles   *profiles.Store

	service atomic.Pointer[predict.Service]
	// installMu serializes model pack installs.
	installMu sync.Mutex
}

// New creates a new Server serving svc
func New(cfg config.Config, svc *predict.Service, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("server needs a prediction service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: logger,
	}
	s.service.Store(svc)

	profileStore, err := profiles.NewStore(cfg.DataDir)
	if err != nil {
		logger.Warn("could not initialize profile store", zap.Error(err))
	} else {
		s.profiles = profileStore
	}

	s.setupRoutes()
	return s, nil
}

// Service returns the prediction service currently in use
func (s *Server) Service() *predict.Service {
	return s.service.Load()
}

// Handler returns the fully wired HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(recoverMiddleware(s.logger), accessLogMiddleware(s.logger))

	// Model pack management routes
	s.router.HandleFunc("/api/modelpack/status", s.handleModelPackStatus).Methods("GET")
	s.router.HandleFunc("/api/modelpack/install", s.handleModelPackInstall).Methods("POST")

	// API routes
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiHandler := api.NewHandler(s.Service, s.profiles, s.cfg, s.logger)
	apiHandler.RegisterRoutes(apiRouter)

	// Static frontend files (embedded)
	staticContent, err := fs.Sub(staticFS, "static")
	if err != nil {
		s.logger.Warn("could not load embedded static files", zap.Error(err))
		return
	}

	// SPA fallback: serve index.html for any non-API route
	fileServer := http.FileServer(http.FS(staticContent))
	s.router.PathPrefix("/").Handler(spaHandler{staticContent: staticContent, fileServer: fileServer})
}

// Start begins listening for HTTP connections
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.logger.Info("server listening", zap.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// spaHandler serves the SPA, falling back to index.html for client-side routing
type spaHandler struct {
	staticContent fs.FS
	fileServer    http.Handler
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/" {
		path = "index.html"
	}

	// fs.FS paths must not have a leading slash
	cleanPath := strings.TrimPrefix(path, "/")

	if _, err := fs.Stat(h.staticContent, cleanPath); err != nil {
		r.URL.Path = "/"
	}

	h.fileServer.ServeHTTP(w, r)
}
