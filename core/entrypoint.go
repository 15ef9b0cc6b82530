package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"reflect"
	"runtime"
	"time"

	"github.com/encodeous/rani/perf"
	"github.com/encodeous/rani/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
)

func ReadNodeConfig(nodePath string) (*state.NodeCfg, error) {
	var nodeCfg state.NodeCfg
	file, err := os.ReadFile(nodePath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &nodeCfg)
	if err != nil {
		return nil, err
	}
	err = state.NodeConfigValidator(&nodeCfg)
	if err != nil {
		return nil, err
	}
	return &nodeCfg, nil
}

func ReadTopology(topoPath string) (*state.TopologyCfg, error) {
	var topo state.TopologyCfg
	file, err := os.ReadFile(topoPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &topo)
	if err != nil {
		return nil, err
	}
	err = state.TopologyValidator(&topo)
	if err != nil {
		return nil, err
	}
	return &topo, nil
}

// NewLogger builds the node logger: colored output on stderr, plus a plain
// text copy in logPath when it is set.
func NewLogger(id string, logLevel slog.Level, logPath string) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: id,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if logPath != "" {
		err := os.MkdirAll(path.Dir(logPath), 0700)
		if err != nil {
			return nil, err
		}
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0600)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs a router node until ctx is done or a module fails. onInit, when
// set, is called with the node state after every module is initialized and
// before the main loop starts.
func Start(ctx context.Context, cfg state.NodeCfg, logger *slog.Logger, onInit func(s *state.State)) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	dispatch := make(chan func(s *state.State) error, state.DispatchQueueSize)

	s := &state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			NodeCfg:         cfg,
			Log:             logger,
		},
	}

	s.Log.Info("init modules")
	err := initModules(s)
	if err != nil {
		Stop(s)
		return err
	}
	s.Log.Info("init modules complete")
	if onInit != nil {
		onInit(s)
	}

	s.Log.Info("rani has been initialized. To gracefully exit, send SIGINT or Ctrl+C.",
		"address", cfg.Address, "app", cfg.AppAddress, "links", len(cfg.Links))

	return MainLoop(s, dispatch)
}

func initModules(s *state.State) error {
	var modules []state.Module
	modules = append(modules, &RaniTrace{})
	modules = append(modules, &EventRecorder{})
	modules = append(modules, &RaniRouter{})
	modules = append(modules, &AppLink{})
	modules = append(modules, &LinkManager{})
	modules = append(modules, &MetricsServer{})

	for _, module := range modules {
		name := reflect.TypeOf(module).String()
		s.Modules[name] = module
		s.ModuleOrder = append(s.ModuleOrder, name)
		if err := module.Init(s); err != nil {
			delete(s.Modules, name)
			s.ModuleOrder = s.ModuleOrder[:len(s.ModuleOrder)-1]
			return fmt.Errorf("init %s: %w", name, err)
		}
	}
	return nil
}

// MainLoop runs dispatched functions until the node context is done, then
// stops every module. It returns the cancellation cause unless the node was
// stopped normally.
func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.DispatchWarnThreshold {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	cause := context.Cause(s.Context)
	s.Log.Info("stopped main loop", "reason", cause.Error())
	Stop(s)
	if errors.Is(cause, context.Canceled) {
		return nil
	}
	return cause
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for i := len(s.ModuleOrder) - 1; i >= 0; i-- {
		name := s.ModuleOrder[i]
		err := s.Modules[name].Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", name, "error", err)
		}
	}
	s.Log.Info("stopped")
}
