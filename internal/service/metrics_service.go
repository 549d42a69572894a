package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lending-indexer-sol/internal/config"
	"lending-indexer-sol/pkg/logger"
)

// MetricsService 通过 HTTP 暴露 Prometheus 指标
type MetricsService struct {
	server *http.Server
}

func NewMetricsService(c config.MetricsConfig) *MetricsService {
	mux := http.NewServeMux()
	mux.Handle(c.Path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &MetricsService{
		server: &http.Server{
			Addr:              c.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *MetricsService) Start() {
	logger.Infof("[metrics] listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[metrics] server stopped: %v", err)
	}
}

func (s *MetricsService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warnf("[metrics] shutdown: %v", err)
	}
}
