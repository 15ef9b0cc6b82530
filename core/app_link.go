package core

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/rani/app"
	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/impl"
	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
)

// AppLink is the session between the router and its local application,
// either an in-process responder or a remote one reached over TCP.
type AppLink struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session atomic.Pointer[impl.Link]
	wg      sync.WaitGroup
}

func (a *AppLink) Init(s *state.State) error {
	s.Log.Debug("init app link")
	// the session must outlive the node context so that END can be exchanged
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(s.Context))

	if s.App.Embedded {
		routerSide, appSide := net.Pipe()
		srv := &app.Server{
			Log:    s.Log.With("module", "app"),
			Events: appDrops{Get[*RaniTrace](s)},
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := srv.ServeConn(context.Background(), appSide); err != nil {
				s.Log.Warn("embedded application failed", "err", err)
			}
		}()
		l := impl.NewLink(routerSide, state.AppHello, state.LinkWriteTimeout)
		if err := l.SendHello(); err != nil {
			l.Close()
			a.wg.Wait()
			return err
		}
		a.session.Store(l)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.serve(s.Env, l)
		}()
		return nil
	}

	a.wg.Add(1)
	go a.dialLoop(s.Env, s.App.Dial)
	return nil
}

// appDrops passes the embedded application's drops to the node trace. Frames
// the application sends are traced by the router when they arrive.
type appDrops struct {
	trace *RaniTrace
}

func (d appDrops) Write(r eventlog.Record) error {
	if r.Kind == eventlog.KindDrop {
		d.trace.Record(r)
	}
	return nil
}

func (a *AppLink) dialLoop(e *state.Env, addr netip.AddrPort) {
	defer a.wg.Done()
	for a.ctx.Err() == nil {
		l, err := impl.DialLink(a.ctx, addr, state.AppHello, state.LinkWriteTimeout)
		if err != nil {
			e.Log.Debug("application dial failed", "addr", addr, "err", err)
		} else {
			a.serve(e, l)
		}
		select {
		case <-a.ctx.Done():
		case <-time.After(state.LinkDialRetry):
		}
	}
}

func (a *AppLink) serve(e *state.Env, l *impl.Link) {
	a.session.Store(l)
	defer func() {
		a.session.CompareAndSwap(l, nil)
		l.Close()
	}()
	e.Log.Info("application connected", "session", l)

	for {
		buf, err := l.ReceivePacket()
		if err != nil {
			if a.ctx.Err() == nil {
				e.Log.Info("application disconnected", "err", err)
			}
			return
		}
		if c := protocol.ControlFlags(buf); c != 0 && protocol.ValidChecksum(buf) {
			e.Log.Debug("application closed the session", "control", c)
			return
		}
		e.Dispatch(func(s *state.State) error {
			return Get[*RaniRouter](s).HandlePacket(buf, state.AppLink)
		})
	}
}

func (a *AppLink) Connected() bool {
	return a.session.Load() != nil
}

// Send delivers buf to the application.
func (a *AppLink) Send(buf []byte) error {
	l := a.session.Load()
	if l == nil {
		return fmt.Errorf("%s: %w", state.AppLink, ErrLinkDown)
	}
	if err := l.SendPacket(buf); err != nil {
		l.Close()
		return err
	}
	return nil
}

// Cleanup tells the application the session is over and waits for it to
// acknowledge or for LinkHelloTimeout to pass.
func (a *AppLink) Cleanup(s *state.State) error {
	a.cancel()
	if l := a.session.Load(); l != nil {
		end := protocol.ControlFrame(s.Address, s.AppAddress, protocol.ControlEnd)
		if err := l.SendPacket(end); err != nil {
			l.Close()
		} else {
			_ = l.Conn.SetReadDeadline(time.Now().Add(state.LinkHelloTimeout))
		}
	}
	a.wg.Wait()
	return nil
}
