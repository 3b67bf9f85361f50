package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sibylchat/sibyl/internal/agent"
	"github.com/sibylchat/sibyl/internal/conversion"
	"github.com/sibylchat/sibyl/internal/defense"
	"github.com/sibylchat/sibyl/internal/logging"
	"github.com/sibylchat/sibyl/internal/memory"
)

// Version is reported by /api/health.
const Version = "2.0.0"

// healthFeatures names the capabilities behind this deployment,
// reported by /api/health.
var healthFeatures = []string{
	"web_search",
	"news_search",
	"social_media_search",
	"finance_quotes",
	"conversation_memory",
	"response_cache",
	"tool_discovery",
}

// QueryAgent is the processing pipeline the server dispatches queries
// to. *agent.Agent satisfies it; tests substitute fakes.
type QueryAgent interface {
	Run(ctx context.Context, userID, query string, history []memory.Turn, status agent.StatusFunc) *agent.Result
	Clear(ctx context.Context, userID string) error
	SystemHealth(ctx context.Context) agent.Health
}

// Options configures the web server.
type Options struct {
	Host string
	Port int

	Agent     QueryAgent
	Converter *conversion.Converter

	// AllowedOrigins for WebSocket upgrades. Empty means same-origin
	// only.
	AllowedOrigins []string

	// StaticDir overrides the embedded static assets. Useful during
	// frontend development.
	StaticDir string

	// AccessLog configures per-request file logging. A zero Path
	// disables it.
	AccessLog AccessLogConfig

	// Guard enables scanner defense when non-nil: abusive IPs are
	// blocked and their connections dropped at the listener.
	Guard *defense.Guard

	Logger *slog.Logger
}

// Server serves the browser interface and the chat WebSocket.
type Server struct {
	host      string
	port      int
	agent     QueryAgent
	converter *conversion.Converter
	history   *memory.HistoryStore
	staticDir string

	tracker          *ConnectionTracker
	wsSecurityConfig WebSocketSecurityConfig
	securityConfig   SecurityConfig
	accessLog        *AccessLogger
	guard            *defense.Guard

	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer creates a web server from options.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Web()
	}
	converter := opts.Converter
	if converter == nil {
		converter = conversion.DefaultConverter()
	}

	wsConfig := DefaultWebSocketSecurityConfig()
	wsConfig.AllowedOrigins = opts.AllowedOrigins

	return &Server{
		host:             opts.Host,
		port:             opts.Port,
		agent:            opts.Agent,
		converter:        converter,
		history:          memory.NewHistoryStore(),
		staticDir:        opts.StaticDir,
		tracker:          NewConnectionTracker(wsConfig.MaxConnectionsPerIP),
		wsSecurityConfig: wsConfig,
		securityConfig:   DefaultSecurityConfig(),
		accessLog:        NewAccessLogger(opts.AccessLog),
		guard:            opts.Guard,
		logger:           logger,
	}
}

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleChatWS)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.Handle("/", s.staticHandler())

	var handler http.Handler = mux
	handler = requestSizeLimitMiddleware(1 << 20)(handler)
	handler = requestTimeoutMiddleware(DefaultRequestTimeout)(handler)
	handler = gzipMiddleware(handler)
	handler = securityHeadersMiddleware(s.securityConfig)(handler)
	handler = s.guardMiddleware(handler)
	handler = s.accessLog.Middleware(handler)
	return handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
}

// Run starts the server and blocks until ctx is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	if s.guard != nil {
		listener = defense.NewFilteredListener(listener, s.guard, s.logger)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("web server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		defer s.accessLog.Close()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// handleHealth reports server and pipeline health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	health := s.agent.SystemHealth(r.Context())
	writeJSONOK(w, map[string]interface{}{
		"status":             health.Status,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"version":            Version,
		"features":           healthFeatures,
		"active_connections": s.tracker.TotalConnections(),
		"cache_performance":  health.CachePerformance,
		"discovered_tools":   health.DiscoveredTools,
		"registered_tools":   health.RegisteredTools,
	})
}

// upgrader builds the WebSocket upgrader with origin checks wired to
// the server's logger.
func (s *Server) upgrader() websocket.Upgrader {
	var logger OriginCheckLogger
	if s.logger != nil {
		logger = func(origin, host string, allowed bool, reason string) {
			s.logger.Debug("origin check",
				"origin", origin,
				"host", host,
				"allowed", allowed,
				"reason", reason)
		}
	}
	return createSecureUpgrader(s.wsSecurityConfig, logger)
}

// clientIP extracts the remote IP from a request.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
