package core

import (
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/encodeous/rani/perf"
	"github.com/encodeous/rani/state"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes counters and the routing table over HTTP when
// metrics_bind is configured.
type MetricsServer struct {
	srv *http.Server
	wg  sync.WaitGroup
}

func (m *MetricsServer) Init(s *state.State) error {
	if s.MetricsBind == "" {
		return nil
	}
	perf.RegisterMetrics()
	ln, err := net.Listen("tcp", s.MetricsBind)
	if err != nil {
		return err
	}
	env := s.Env
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/metrics", perf.Handler())
	mux.HandleFunc("/debug/table", func(w http.ResponseWriter, req *http.Request) {
		res, err := env.DispatchWait(func(s *state.State) (any, error) {
			return Get[*RaniRouter](s).Dump() + "\n" + Get[*LinkManager](s).Describe(s.LinkIds()), nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(res.(string)))
	})

	m.srv = &http.Server{Handler: mux}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			env.Log.Error("metrics server failed", "err", err)
		}
	}()
	s.Log.Info("serving metrics", "addr", ln.Addr())
	return nil
}

func (m *MetricsServer) Cleanup(s *state.State) error {
	if m.srv == nil {
		return nil
	}
	err := m.srv.Close()
	m.wg.Wait()
	return err
}
