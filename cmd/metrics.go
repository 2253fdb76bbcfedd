package cmd

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/iotools/iotools/lib/bridge"
	"github.com/iotools/iotools/lib/storage"
	"github.com/iotools/iotools/sniff"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/metrics"

// NewMetricsRegistry makes the metrics for every package, sets them
// as the package defaults and returns a registry with them in.
func NewMetricsRegistry(namespace string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sm := sniff.NewMetrics(namespace)
	reg.MustRegister(sm.Collectors()...)
	sniff.DefaultMetrics = sm

	stm := storage.NewMetrics(namespace)
	reg.MustRegister(stm.Collectors()...)
	storage.DefaultMetrics = stm

	bm := bridge.NewMetrics(namespace)
	reg.MustRegister(bm.Collectors()...)
	bridge.DefaultMetrics = bm

	return reg
}

// MetricsServer serves the Prometheus metrics while a command runs
type MetricsServer struct {
	listener net.Listener
	server   *http.Server
	done     chan struct{}
}

// MetricsStart starts serving metrics on addr in the background
func MetricsStart(addr string) (*MetricsServer, error) {
	reg := NewMetricsRegistry("iotools")
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "failed to listen for metrics")
	}
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s := &MetricsServer{
		listener: listener,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		done: make(chan struct{}),
	}
	go s.serve()
	return s, nil
}

func (s *MetricsServer) serve() {
	defer close(s.done)
	err := s.server.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		sniff.Errorf(nil, "Metrics server failed: %v", err)
	}
}

// Addr returns the address being served on
func (s *MetricsServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
