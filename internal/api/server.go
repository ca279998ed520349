package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/bosun-core/internal/action"
	"github.com/nerrad567/bosun-core/internal/infrastructure/config"
	"github.com/nerrad567/bosun-core/internal/infrastructure/logging"
	"github.com/nerrad567/bosun-core/internal/manufacturer"
	"github.com/nerrad567/bosun-core/internal/pipeline"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EventLister reads recorded rule events. *action.EventRecorder satisfies it.
type EventLister interface {
	List(ctx context.Context, filter action.EventFilter) ([]action.Event, error)
}

// ConnectionStatus reports whether a backing connection is up.
// *mqtt.Client satisfies it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Site     config.SiteConfig
	Logger   *logging.Logger
	Pipeline *pipeline.Pipeline
	Catalog  *manufacturer.Catalog
	Events   EventLister      // optional
	MQTT     ConnectionStatus // optional
	Metrics  http.Handler     // optional: served at /metrics
	Version  string
}

// Server is the HTTP API server for Bosun Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket sessions.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	site      config.SiteConfig
	logger    *logging.Logger
	pipeline  *pipeline.Pipeline
	catalog   *manufacturer.Catalog
	events    EventLister
	mqtt      ConnectionStatus
	metrics   http.Handler
	version   string
	startTime time.Time
	sessions  *sessionSet
	server    *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger, Pipeline and Catalog are required; Events, MQTT and
//     Metrics are optional and their endpoints degrade without them
//
// Returns:
//   - *Server: Configured server
//   - error: If a required dependency is missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("manufacturer catalog is required")
	}

	wsCfg := deps.WS
	if wsCfg.Path == "" {
		wsCfg.Path = "/ws"
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     wsCfg,
		secCfg:    deps.Security,
		site:      deps.Site,
		logger:    deps.Logger,
		pipeline:  deps.Pipeline,
		catalog:   deps.Catalog,
		events:    deps.Events,
		mqtt:      deps.MQTT,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
		sessions:  newSessionSet(),
	}, nil
}

// Handler returns the fully wired router. Start uses it; tests can mount
// it on an httptest server.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server and every WebSocket session.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.sessions.closeAll()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
