// Package restserver exposes the curved MPR pipeline over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"curvedmpr/pkg/config"
	"curvedmpr/pkg/pipeline"
	"curvedmpr/pkg/visualization"
)

// Controller represents the REST server controller
type Controller struct {
	ctx      context.Context
	wg       *sync.WaitGroup
	Server   http.Server
	service  *pipeline.Service
	window   visualization.Window
	logger   *zap.SugaredLogger
	handlers *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, service *pipeline.Service, cfg *config.Config, logger *zap.SugaredLogger) (*Controller, error) {
	if service == nil {
		return nil, fmt.Errorf("REST server requires a pipeline service")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	ctrl := &Controller{
		ctx:     ctx,
		wg:      wg,
		service: service,
		window: visualization.Window{
			Center: cfg.Output.WindowCenter,
			Width:  cfg.Output.WindowWidth,
		},
		logger: logger,
	}

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		logger.Info("server.listenAddr not provided; defaulting to 0.0.0.0 (all interfaces)")
		listenAddr = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		port = 8080
	}

	ctrl.handlers = NewHandlers(ctrl)
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", listenAddr, port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts serving in the background and shuts the server
// down when the controller context is cancelled
func (c *Controller) StartController() error {
	c.logger.Infow("starting REST server", "addr", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.loggingMiddleware)

	router.HandleFunc("/healthz", c.handlers.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/centerline", c.handlers.ComputeCenterline).Methods(http.MethodPost)
	api.HandleFunc("/cmpr", c.handlers.ComputeCurvedMPR).Methods(http.MethodPost)
	api.HandleFunc("/cmpr/{key}", c.handlers.GetCurvedMPR).Methods(http.MethodGet)
	api.HandleFunc("/cmpr/{key}/slices/{index:[0-9]+}", c.handlers.GetSlice).Methods(http.MethodGet)
	api.HandleFunc("/cmpr/{key}/slices/{index:[0-9]+}/measurements", c.handlers.MeasureSlice).Methods(http.MethodPost)
	api.HandleFunc("/cmpr/{key}/views/{axis:[xyz]}/{position:[0-9]+}", c.handlers.GetView).Methods(http.MethodGet)
	api.HandleFunc("/cmpr/{key}/locate", c.handlers.Locate).Methods(http.MethodPost)
	api.HandleFunc("/cmpr/{key}/measurements", c.handlers.MeasureCurvedMPR).Methods(http.MethodPost)
	api.HandleFunc("/cache/stats", c.handlers.CacheStats).Methods(http.MethodGet)
	api.HandleFunc("/cache", c.handlers.ClearCache).Methods(http.MethodDelete)

	return router
}

// statusRecorder captures the status code and size of a response
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		c.logger.Debugw("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", rec.size,
			"remote_addr", req.RemoteAddr)
	})
}
