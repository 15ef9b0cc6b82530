package core

import (
	"fmt"
	"os"
	"path"
	"sync"
	"time"

	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/state"
)

type flushMarker chan struct{}

// EventRecorder appends every trace record to the configured event log file.
// Each node run is one session in the file.
type EventRecorder struct {
	file    *os.File
	writer  *eventlog.Writer
	records chan any
	wg      sync.WaitGroup
}

func (e *EventRecorder) Init(s *state.State) error {
	if s.EventLog == "" {
		return nil
	}
	if err := os.MkdirAll(path.Dir(s.EventLog), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.EventLog, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	w, err := eventlog.NewWriter(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("start event log session: %w", err)
	}
	e.file = f
	e.writer = w
	e.records = make(chan any, state.TraceBufferSize)
	Get[*RaniTrace](s).Register(e.records)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for rec := range e.records {
			if m, ok := rec.(flushMarker); ok {
				close(m)
				continue
			}
			r, ok := rec.(eventlog.Record)
			if !ok {
				continue
			}
			if err := w.Write(r); err != nil {
				s.Log.Warn("failed to write event log record", "kind", r.Kind, "err", err)
			}
		}
	}()
	s.Log.Info("recording events", "path", s.EventLog)
	return nil
}

func (e *EventRecorder) Cleanup(s *state.State) error {
	if e.writer == nil {
		return nil
	}
	if t, ok := s.Modules[moduleName[*RaniTrace]()].(*RaniTrace); ok {
		// records submitted before the marker are delivered before it
		m := make(flushMarker)
		t.Submit(m)
		select {
		case <-m:
		case <-time.After(state.LinkHelloTimeout):
			s.Log.Warn("event log did not drain")
		}
		t.Unregister(e.records)
	}
	close(e.records)
	e.wg.Wait()
	err := e.writer.Close()
	if cerr := e.file.Close(); err == nil {
		err = cerr
	}
	e.writer = nil
	return err
}
