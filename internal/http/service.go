package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/api"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/apierr"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/metric"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/middleware"
	"github.com/tuanvumaihuynh/product-catalog/internal/http/swagger"
	"github.com/tuanvumaihuynh/product-catalog/internal/service"
)

var tracer = otel.Tracer("internal/http")

// HealthChecker reports whether the catalog storage can be read.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Service represents the HTTP service.
type Service struct {
	cfg      config.HTTP
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metric.Metrics

	productSvc service.ProductService
	assetSvc   service.AssetService
	health     HealthChecker
}

type CleanupFunc func(ctx context.Context) error

func New(
	cfg config.HTTP,
	log *slog.Logger,
	productSvc service.ProductService,
	assetSvc service.AssetService,
	health HealthChecker,
) *Service {
	registry := prometheus.NewRegistry()

	return &Service{
		cfg:        cfg,
		logger:     log.With(slog.String("service", "http")),
		registry:   registry,
		metrics:    metric.New(registry),
		productSvc: productSvc,
		assetSvc:   assetSvc,
		health:     health,
	}
}

func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handler, err := s.Handler()
	if err != nil {
		return nil, err
	}

	return s.RunWithServer(ctx, handler)
}

// Handler builds the router with every middleware and route registered.
func (s *Service) Handler() (http.Handler, error) {
	r := chi.NewRouter()
	s.RegisterMiddlewares(r)

	if s.cfg.Swagger {
		if err := swagger.Register(r); err != nil {
			return nil, fmt.Errorf("register swagger: %w", err)
		}
	}

	s.RegisterHandlers(r)

	return r, nil
}

func (s *Service) RunWithServer(ctx context.Context, handler http.Handler) (CleanupFunc, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64 KB
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", slog.Any("error", err))
		}
	}()

	s.logger.InfoContext(ctx, "http server listening", slog.String("addr", ln.Addr().String()))

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}, nil
}

func (s *Service) RegisterMiddlewares(r chi.Router) {
	r.Use(
		middleware.Recoverer(s.logger),
		middleware.Trace(tracer),
		middleware.Metrics(s.metrics),
		middleware.CorrelationID(),
		middleware.Cors(s.cfg.AllowedOrigins),
		middleware.Logging(s.logger),
	)
}

func (s *Service) RegisterHandlers(r chi.Router) {
	rs := responder{logger: s.logger}
	products := newProductHandler(rs, s.productSvc, s.cfg.MaxUploadBytes)
	assets := newAssetHandler(s.assetSvc)

	r.Get("/products", s.handle(products.ListProducts))
	r.Post("/products", s.handle(products.CreateProduct))
	r.Get("/products/{id}", s.handle(products.GetProduct))
	r.Put("/products/{id}", s.handle(products.UpdateProduct))
	r.Delete("/products/{id}", s.handle(products.DeleteProduct))
	r.Post("/upload", s.handle(products.UploadProduct))
	r.Get(service.AssetsPath+"{name}", s.handle(assets.GetAsset))
	r.Get("/healthz", s.handle(s.healthz))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rs.JSON(w, r, http.StatusNotFound, api.ErrorResponse{
			Code:    "routeNotFound",
			Message: "route not found",
		})
	})

	r.Handle(middleware.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog: log.Default(),
	}))
}

// handlerFunc is an HTTP handler whose error is rendered by handleResponseError.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Service) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			s.handleResponseError(w, r, err)
		}
	}
}

func (s *Service) handleResponseError(w http.ResponseWriter, r *http.Request, err error) {
	res := apierr.New(err)

	logLevel := slog.LevelInfo
	if res.StatusCode >= 500 {
		logLevel = slog.LevelError
	} else if res.StatusCode >= 400 {
		logLevel = slog.LevelWarn
	}
	s.logger.Log(r.Context(), logLevel, "http response error", slog.Any("error", err))

	responder{logger: s.logger}.JSON(w, r, res.StatusCode, res.ErrorResponse)
}

func (s *Service) healthz(w http.ResponseWriter, r *http.Request) error {
	if err := s.health.Ping(r.Context()); err != nil {
		return fmt.Errorf("ping storage: %w", err)
	}

	responder{logger: s.logger}.JSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok"})
	return nil
}

type responder struct {
	logger *slog.Logger
}

func (rs responder) JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.logger.ErrorContext(r.Context(), "error encoding response",
			slog.Any("error", err))
	}
}
