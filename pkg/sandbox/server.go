// Package sandbox runs a local endpoints service: the REST collection and its
// gRPC twin over a memory, redis or bolt backend, plus health, metrics and
// OpenAPI endpoints.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/nimburion/endpointstore/pkg/endpoints"
	"github.com/nimburion/endpointstore/pkg/endpoints/grpcapi"
	"github.com/nimburion/endpointstore/pkg/health"
	"github.com/nimburion/endpointstore/pkg/observability/logger"
	"github.com/nimburion/endpointstore/pkg/observability/metrics"
)

// DefaultBasePath prefixes the REST collection.
const DefaultBasePath = "/_ah/api/endpointstore/v1"

// Config holds the sandbox settings.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	BasePath        string
	Resource        string
	IDProperty      string
	BackendName     string
	JWTSecret       string
	Issuer          string
	RateLimitRPS    float64
	RateLimitBurst  int
	Version         string
	ShutdownTimeout time.Duration

	// DisableMetrics removes the /metrics route.
	DisableMetrics bool
}

// Server serves one backend over HTTP and gRPC.
type Server struct {
	cfg     Config
	backend Backend
	metrics *metrics.Registry
	health  *health.Registry
	auth    *Authenticator
	limiter *RateLimiter
	handler http.Handler
	log     logger.Logger
}

// New assembles the sandbox for backend.
func New(cfg Config, backend Backend, log logger.Logger) (*Server, error) {
	if backend == nil {
		return nil, errors.New("sandbox: backend is required")
	}
	if cfg.Resource = strings.Trim(cfg.Resource, "/"); cfg.Resource == "" {
		cfg.Resource = "records"
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultBasePath
	}
	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")
	if cfg.IDProperty == "" {
		cfg.IDProperty = "id"
	}
	if cfg.BackendName == "" {
		cfg.BackendName = "backend"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		cfg:     cfg,
		backend: backend,
		metrics: metrics.NewRegistry(),
		health:  health.NewRegistry(),
		log:     logger.OrNop(log),
	}
	s.health.Register(health.NewPingChecker("sandbox"))
	s.health.Register(health.NewAdapterChecker(cfg.BackendName, backend, 2*time.Second))

	if cfg.JWTSecret != "" {
		auth, err := NewAuthenticator(cfg.JWTSecret, cfg.Issuer)
		if err != nil {
			return nil, err
		}
		s.auth = auth
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	handler, err := s.buildHandler()
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

// Authenticator returns the token checker, or nil when auth is disabled.
func (s *Server) Authenticator() *Authenticator { return s.auth }

// CollectionPath returns the path of the REST collection.
func (s *Server) CollectionPath() string { return s.cfg.BasePath + "/" + s.cfg.Resource }

// Handler returns the HTTP handler of the sandbox.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) buildHandler() (http.Handler, error) {
	docHandler, err := DocumentHandler(context.Background(), Document(DocumentConfig{
		Version:    s.cfg.Version,
		BasePath:   s.cfg.BasePath,
		Resource:   s.cfg.Resource,
		IDProperty: s.cfg.IDProperty,
		Secured:    s.auth != nil,
	}))
	if err != nil {
		return nil, err
	}

	root := mux.NewRouter().UseEncodedPath()
	root.Handle("/healthz", s.health.Handler()).Methods(http.MethodGet)
	if !s.cfg.DisableMetrics {
		root.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	root.Handle("/openapi.json", docHandler).Methods(http.MethodGet)

	api := root.PathPrefix(s.cfg.BasePath).Subrouter()
	if s.limiter != nil {
		api.Use(s.limiter.Middleware)
	}
	if s.auth != nil {
		api.Use(s.auth.Middleware)
	}
	NewHandler(s.backend, s.cfg.IDProperty, s.log).Register(api, s.cfg.Resource)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, endpoints.NewError(http.StatusNotFound, fmt.Sprintf("no route for %s", r.URL.Path)))
	})
	root.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, endpoints.NewError(http.StatusMethodNotAllowed, fmt.Sprintf("%s not allowed", r.Method)))
	})

	var handler http.Handler = root
	handler = metrics.Middleware(routeTemplate(root))(handler)
	handler = otelhttp.NewHandler(handler, "sandbox")
	return requestID(handler), nil
}

// routeTemplate labels requests with the template of the route they match.
func routeTemplate(router *mux.Router) func(*http.Request) string {
	return func(r *http.Request) string {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				return tpl
			}
		}
		return ""
	}
}

// Run listens on the configured addresses and serves until ctx is done. An
// empty gRPC address disables the gRPC listener.
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", s.cfg.HTTPAddr, err)
	}
	var grpcLn net.Listener
	if s.cfg.GRPCAddr != "" {
		grpcLn, err = net.Listen("tcp", s.cfg.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return fmt.Errorf("sandbox: listen %s: %w", s.cfg.GRPCAddr, err)
		}
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves HTTP on httpLn and, when non-nil, gRPC on grpcLn until ctx is
// done or either server fails. Both servers are then stopped gracefully.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv := grpc.NewServer()
	grpcapi.RegisterServer(grpcSrv, s.backend)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("sandbox http listening", "addr", httpLn.Addr().String(), "collection", s.CollectionPath())
		if err := httpSrv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox http server: %w", err)
		}
		return nil
	})
	if grpcLn != nil {
		g.Go(func() error {
			s.log.Info("sandbox grpc listening", "addr", grpcLn.Addr().String(), "service", grpcapi.ServiceName)
			if err := grpcSrv.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("sandbox grpc server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.log.Info("shutting down sandbox")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		grpcSrv.GracefulStop()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("sandbox shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
