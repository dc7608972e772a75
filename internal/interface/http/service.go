package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/btcvault/por/internal/core/application"
	interfaces "github.com/btcvault/por/internal/interface"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type Config struct {
	Port uint32
}

func (c Config) Validate() error {
	if c.Port == 0 {
		return fmt.Errorf("missing port")
	}
	return nil
}

func (c Config) address() string {
	return fmt.Sprintf(":%d", c.Port)
}

type service struct {
	config Config
	appSvc application.Service
	server *http.Server
}

// NewService exposes the latest reserve report of appSvc over HTTP.
// metrics is mounted at /metrics when not nil.
func NewService(
	svcConfig Config, appSvc application.Service, metrics http.Handler,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if appSvc == nil {
		return nil, fmt.Errorf("missing app service")
	}

	server := &http.Server{
		Addr:              svcConfig.address(),
		Handler:           newRouter(appSvc, metrics),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &service{svcConfig, appSvc, server}, nil
}

func (s *service) Start() error {
	if err := s.appSvc.Start(); err != nil {
		return fmt.Errorf("failed to start app service: %s", err)
	}
	log.Info("started app service")

	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server stopped unexpectedly")
		}
	}()
	log.Infof("started listening at %s", s.config.address())

	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http server")
	}
	log.Info("stopped http server")

	s.appSvc.Stop()
	log.Info("stopped app service")
}

func newRouter(appSvc application.Service, metrics http.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logRequests)

	h := &handler{appSvc}
	router.GET("/healthz", h.health)

	v1 := router.Group("/v1")
	v1.GET("/reserves", h.getReserves)
	v1.GET("/vaults", h.getVaults)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
	return router
}

func logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()

	log.WithFields(log.Fields{
		"method":   c.Request.Method,
		"path":     c.Request.URL.Path,
		"status":   c.Writer.Status(),
		"duration": time.Since(start),
	}).Debug("http request")
}
