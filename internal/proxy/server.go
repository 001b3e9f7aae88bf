package proxy

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"github.com/raaihank/chatpsy/internal/analysis"
	"github.com/raaihank/chatpsy/internal/cache"
	"github.com/raaihank/chatpsy/internal/chatstats"
	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/ingest"
	"github.com/raaihank/chatpsy/internal/logger"
	"github.com/raaihank/chatpsy/internal/privacy"
	"github.com/raaihank/chatpsy/internal/store"
	"github.com/raaihank/chatpsy/internal/web"
	"github.com/raaihank/chatpsy/internal/websocket"
	"go.uber.org/zap"
)

// Version is reported by /info and the CLI. Overridden at build time.
var Version = "0.1.0"

const statusInterval = 30 * time.Second

// Analyzer is the remote analysis service.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.AnalyzeRequest) (*analysis.AnalyzeResponse, error)
	FetchMeta(ctx context.Context, chatText string) (*chatstats.ChatMeta, error)
}

// History persists finished analyses.
type History interface {
	Save(ctx context.Context, rec *store.AnalysisRecord) error
	Get(ctx context.Context, id string) (*store.AnalysisRecord, error)
	Recent(ctx context.Context, limit int) ([]store.AnalysisRecord, error)
}

// Services are the collaborators of the gateway. Nil fields are built from
// the configuration, except History which stays disabled when nil.
type Services struct {
	Anonymizer *privacy.Anonymizer
	Loader     *ingest.Loader
	Analyzer   Analyzer
	Cache      cache.Cache
	History    History
	Hub        *websocket.Hub
}

// Server is the local privacy gateway. Every chat it receives is
// anonymized before anything leaves the process.
type Server struct {
	config     *config.Config
	logger     *logger.Logger
	anonymizer *privacy.Anonymizer
	loader     *ingest.Loader
	analyzer   Analyzer
	cache      cache.Cache
	history    History
	wsHub      *websocket.Hub
	limiter    *rateLimiter
	router     *mux.Router
	handler    http.Handler
	server     *http.Server

	startedAt           time.Time
	totalRequests       atomic.Int64
	totalAnonymizations atomic.Int64
	totalAnalyses       atomic.Int64
}

// New creates a new gateway server instance
func New(cfg *config.Config, log *logger.Logger, svc Services) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}

	var err error
	if svc.Anonymizer == nil {
		svc.Anonymizer, err = privacy.New(cfg.Privacy, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create anonymizer: %w", err)
		}
	}
	if svc.Loader == nil {
		svc.Loader, err = ingest.New(cfg.Ingest, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create loader: %w", err)
		}
	}
	if svc.Analyzer == nil {
		svc.Analyzer = analysis.NewClient(cfg.Analysis, log)
	}
	if svc.Cache == nil {
		svc.Cache = cache.Nop{}
	}
	if svc.Hub == nil {
		svc.Hub = websocket.NewHub(cfg.WebSocket, log)
	}

	s := &Server{
		config:     cfg,
		logger:     log.WithComponent("proxy"),
		anonymizer: svc.Anonymizer,
		loader:     svc.Loader,
		analyzer:   svc.Analyzer,
		cache:      svc.Cache,
		history:    svc.History,
		wsHub:      svc.Hub,
		limiter:    newRateLimiter(cfg.Security.RateLimit),
		router:     mux.NewRouter(),
		startedAt:  time.Now(),
	}

	s.setupRoutes()

	s.handler = cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Cache", "X-Record-ID"},
		MaxAge:         300,
	})(s.router)

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// Dashboard endpoint - embedded HTML
	s.router.HandleFunc("/", web.ServeDashboard).Methods("GET")
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods("GET")

	// WebSocket upgrades bypass the logging middleware, which cannot hijack
	s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requestIDMiddleware)
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/anonymize", s.handleAnonymize).Methods("POST")
	api.HandleFunc("/chat_meta", s.handleChatMeta).Methods("POST")
	api.Handle("/analyze", s.rateLimitMiddleware(http.HandlerFunc(s.handleAnalyze))).Methods("POST")
	api.HandleFunc("/analyses", s.handleListAnalyses).Methods("GET")
	api.HandleFunc("/analyses/{id}", s.handleGetAnalysis).Methods("GET")
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the background workers and serves HTTP until Stop is called
// or ctx is done. It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting chatpsy gateway",
		zap.String("addr", s.server.Addr),
		zap.String("analysis_url", s.config.Analysis.BaseURL),
		zap.String("cache_backend", s.config.Cache.Backend),
		zap.Bool("history", s.history != nil),
	)

	if s.wsHub.Enabled() {
		go s.wsHub.Run(ctx)
		go s.broadcastStatus(ctx)
	}
	go s.limiter.run(ctx)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping chatpsy gateway")
	return s.server.Shutdown(ctx)
}

// Status reports counters for /info and the system_status event.
func (s *Server) Status(ctx context.Context) websocket.SystemStatusEvent {
	backend := s.config.Cache.Backend
	if st, err := s.cache.Stats(ctx); err == nil && st != nil {
		backend = st.Backend
	}
	return websocket.SystemStatusEvent{
		Status:              "healthy",
		Uptime:              time.Since(s.startedAt).Round(time.Second).String(),
		TotalRequests:       s.totalRequests.Load(),
		TotalAnonymizations: s.totalAnonymizations.Load(),
		TotalAnalyses:       s.totalAnalyses.Load(),
		ConnectedClients:    int(s.wsHub.Stats().ActiveConnections),
		CacheBackend:        backend,
	}
}

func (s *Server) broadcastStatus(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.wsHub.BroadcastEvent(websocket.NewEvent(websocket.EventTypeSystemStatus, "", s.Status(ctx)))
		}
	}
}
