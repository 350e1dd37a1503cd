package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/config"
	handlers "github.com/paperlane/paperlane/internal/handlers/v1alpha1"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/pkg/log"
	"github.com/paperlane/paperlane/pkg/metrics"
	"github.com/paperlane/paperlane/pkg/middleware"
	"go.uber.org/zap"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	engineCallbackPath      = "/api/v1/engine/callbacks"
)

type Server struct {
	cfg      *config.Config
	store    store.Store
	services *Services
	listener net.Listener
}

// New returns a new instance of the paperlane api server.
func New(
	cfg *config.Config,
	store store.Store,
	services *Services,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		services: services,
		listener: listener,
	}
}

// Router builds the http handler. The metrics middleware is passed in so that
// it is registered once per process.
func (s *Server) Router(metricMiddleware *metrics.Middleware) (http.Handler, error) {
	authenticator, err := auth.NewAuthenticator(s.cfg.Service.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	router := chi.NewRouter()

	if metricMiddleware != nil {
		router.Use(metricMiddleware.Handler)
	}

	router.Use(
		middleware.StripPrefix(s.cfg.Service.GatewayPrefix),
		cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Service.AllowedOrigins,
			AllowedMethods:   []string{"GET", "PUT", "POST", "DELETE", "HEAD", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}),
		middleware.RequestID,
		log.ConditionalLogger(s.cfg.Service.LogLevel, zap.L(), "api_server"),
		chiMiddleware.Recoverer,
	)

	router.Get("/health", handlers.NewHealthHandler(s.store).Health)

	router.With(auth.RequireAPIKey(s.cfg.Service.Engine.APIKey)).
		Post(engineCallbackPath, handlers.NewEngineHandler(s.services.Reconcile).Callback)

	router.Group(func(r chi.Router) {
		r.Use(authenticator.Authenticator)
		handlers.NewServiceHandler(s.services.Dispatch, s.services.Reconcile, s.services.Accounts).Routes(r)
	})

	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	metricMiddleware := metrics.NewMiddleware("api_server")
	metricMiddleware.MustRegisterDefault()

	router, err := s.Router(metricMiddleware)
	if err != nil {
		return err
	}

	srv := http.Server{Addr: s.cfg.Service.Address, Handler: router}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
