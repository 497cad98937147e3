package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-devcaps/internal/bridge"
	"github.com/nerrad567/gray-logic-devcaps/internal/compiler"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// MQTTSubscriber is the part of mqtt.Client the server uses to relay
// published resolutions to WebSocket clients.
type MQTTSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// BridgeMetrics reports snapshot bridge counters. *bridge.SnapshotBridge
// satisfies it.
type BridgeMetrics interface {
	Metrics() bridge.Metrics
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Resolver *resolver.Resolver
	Report   *compiler.Report
	MQTT     MQTTSubscriber // optional: enables the resolution stream
	Bridge   BridgeMetrics  // optional: adds bridge counters to /metrics
	Version  string
}

// Server is the HTTP query API over the compiled capability table.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	resolver  *resolver.Resolver
	facade    *resolver.Facade
	report    *compiler.Report
	mqtt      MQTTSubscriber
	bridge    BridgeMetrics
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	report := deps.Report
	if report == nil {
		report = &compiler.Report{}
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		resolver: deps.Resolver,
		facade:   resolver.NewFacade(deps.Resolver),
		report:   report,
		mqtt:     deps.MQTT,
		bridge:   deps.Bridge,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the stream hub, feeds it from published resolutions, and
// launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startTime = time.Now()

	s.hub = NewHub(s.logger)
	go s.hub.Run(srvCtx)

	if err := s.subscribeResolutions(); err != nil {
		s.logger.Warn("failed to subscribe to resolutions for WebSocket", "error", err)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
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
