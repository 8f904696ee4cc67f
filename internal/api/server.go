package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gridwire/meshcore/internal/audit"
	"github.com/gridwire/meshcore/internal/device"
	"github.com/gridwire/meshcore/internal/dispatch"
	"github.com/gridwire/meshcore/internal/infrastructure/config"
	"github.com/gridwire/meshcore/internal/product"
	"github.com/gridwire/meshcore/internal/security"
)

// Logger is the minimal logging surface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Deps are the Server's external dependencies, assembled by main and
// passed in as a single struct so New's signature doesn't grow with
// every feature.
type Deps struct {
	Config          config.APIConfig
	CORS            config.CORSConfig
	JWT             config.JWTConfig
	Logger          Logger
	DeviceRegistry  *device.Registry
	ProductRegistry *product.Registry
	DispatchConfig  dispatch.Config
	Interceptors    []dispatch.Interceptor
	Recorder        dispatch.Recorder
	AuditRepo       audit.Repository
	Version         string
}

// Server is the admin HTTP API: chi router, middleware chain, and the
// dependencies every handler needs.
type Server struct {
	cfg    config.APIConfig
	cors   config.CORSConfig
	logger Logger
	router http.Handler
	srv    *http.Server

	deviceRegistry  *device.Registry
	productRegistry *product.Registry
	dispatchConfig  dispatch.Config
	interceptors    []dispatch.Interceptor
	recorder        dispatch.Recorder

	auditRepo audit.Repository
	auditCh   chan *audit.AuditLog

	tokens  *security.TokenIssuer
	tickets *security.TicketStore
	hub     *Hub

	version string
}

// New validates deps and builds a Server. Logger and DeviceRegistry are
// required; everything else degrades gracefully when absent (no audit
// repo means audit endpoints 500, no product registry means invoke
// fails metadata resolution).
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: Logger is required")
	}
	if deps.DeviceRegistry == nil {
		return nil, errors.New("api: DeviceRegistry is required")
	}

	s := &Server{
		cfg:             deps.Config,
		cors:            deps.CORS,
		logger:          deps.Logger,
		deviceRegistry:  deps.DeviceRegistry,
		productRegistry: deps.ProductRegistry,
		dispatchConfig:  deps.DispatchConfig,
		interceptors:    deps.Interceptors,
		recorder:        deps.Recorder,
		auditRepo:       deps.AuditRepo,
		tokens:          security.NewTokenIssuer(deps.JWT),
		tickets:         security.NewTicketStore(),
		hub:             NewHub(),
		version:         deps.Version,
	}
	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
	}

	s.router = s.newRouter()
	return s, nil
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully. It also drains the audit log channel for the server's
// lifetime and sweeps expired WebSocket tickets.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	if s.auditRepo != nil {
		go s.drainAuditLog(ctx)
	}
	ticketStop := make(chan struct{})
	go s.tickets.Run(ticketStop)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			err = s.srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.logger.Info("admin api listening", "addr", addr, "tls", s.cfg.TLS.Enabled)

	select {
	case <-ctx.Done():
		close(ticketStop)
		return s.Close()
	case err := <-errCh:
		close(ticketStop)
		return err
	}
}

// Close gracefully shuts down the HTTP server.
func (s *Server) Close() error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// HealthCheck reports whether the server's dependencies are usable.
func (s *Server) HealthCheck(_ context.Context) error {
	if s.deviceRegistry == nil {
		return errors.New("api: device registry not configured")
	}
	return nil
}
