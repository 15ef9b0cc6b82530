package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/rani/impl"
	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
)

var (
	ErrLinkDown    = errors.New("link is not connected")
	ErrUnknownLink = errors.New("link is not configured")
)

type linkSlot struct {
	cfg     state.LinkCfg
	session atomic.Pointer[impl.Link]
}

// LinkManager keeps one TCP session alive per configured link and feeds
// received frames to the router.
type LinkManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	slots     map[state.LinkId]*linkSlot
	listeners []net.Listener
	wg        sync.WaitGroup
}

func (m *LinkManager) Init(s *state.State) error {
	s.Log.Debug("init link manager")
	m.ctx, m.cancel = context.WithCancel(s.Context)
	m.slots = make(map[state.LinkId]*linkSlot)

	for _, cfg := range s.Links {
		slot := &linkSlot{cfg: cfg}
		m.slots[cfg.Id] = slot
		if cfg.Listen.IsValid() {
			ln, err := net.Listen("tcp", cfg.Listen.String())
			if err != nil {
				_ = m.Cleanup(s)
				return fmt.Errorf("listen for %s: %w", cfg.Id, err)
			}
			s.Log.Info("listening", "link", cfg.Id, "addr", ln.Addr())
			m.listeners = append(m.listeners, ln)
			m.wg.Add(1)
			go m.acceptLoop(s.Env, slot, ln)
		} else {
			m.wg.Add(1)
			go m.dialLoop(s.Env, slot)
		}
	}
	return nil
}

func (m *LinkManager) Cleanup(s *state.State) error {
	m.cancel()
	for _, ln := range m.listeners {
		ln.Close()
	}
	for _, slot := range m.slots {
		if l := slot.session.Load(); l != nil {
			l.Close()
		}
	}
	m.wg.Wait()
	return nil
}

func (m *LinkManager) dialLoop(e *state.Env, slot *linkSlot) {
	defer m.wg.Done()
	for m.ctx.Err() == nil {
		l, err := impl.DialLink(m.ctx, slot.cfg.Dial, byte(slot.cfg.Id), state.LinkWriteTimeout)
		if err != nil {
			e.Log.Debug("dial failed", "link", slot.cfg.Id, "addr", slot.cfg.Dial, "err", err)
		} else {
			m.serve(e, slot, l)
		}
		select {
		case <-m.ctx.Done():
		case <-time.After(state.LinkDialRetry):
		}
	}
}

func (m *LinkManager) acceptLoop(e *state.Env, slot *linkSlot, ln net.Listener) {
	defer m.wg.Done()
	for {
		l, err := impl.AcceptLink(ln, state.LinkHelloTimeout, state.LinkWriteTimeout)
		if err != nil {
			if m.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			e.Log.Debug("accept failed", "link", slot.cfg.Id, "err", err)
			continue
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.serve(e, slot, l)
		}()
	}
}

// serve owns l until the peer disconnects or ends the session. A newer
// session on the same link replaces the old one.
func (m *LinkManager) serve(e *state.Env, slot *linkSlot, l *impl.Link) {
	id := slot.cfg.Id
	if old := slot.session.Swap(l); old != nil {
		e.Log.Info("replacing link session", "link", id, "old", old)
		old.Close()
	}
	stop := context.AfterFunc(m.ctx, func() {
		l.Close()
	})
	defer stop()
	defer func() {
		slot.session.CompareAndSwap(l, nil)
		l.Close()
	}()
	e.Log.Info("link up", "link", id, "session", l, "hello", l.Hello)

	for {
		buf, err := l.ReceivePacket()
		if err != nil {
			if m.ctx.Err() == nil {
				e.Log.Info("link down", "link", id, "session", l, "err", err)
			}
			return
		}
		if c := protocol.ControlFlags(buf); c != 0 && protocol.ValidChecksum(buf) {
			if c&protocol.ControlErr != 0 {
				e.Log.Error("peer reported an error, closing link", "link", id, "session", l)
			} else {
				e.Log.Info("peer ended the link", "link", id, "session", l)
			}
			return
		}
		e.Dispatch(func(s *state.State) error {
			return Get[*RaniRouter](s).HandlePacket(buf, id)
		})
	}
}

// Send writes buf on the current session of link id. A failed write closes
// the session.
func (m *LinkManager) Send(id state.LinkId, buf []byte) error {
	slot, ok := m.slots[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownLink)
	}
	l := slot.session.Load()
	if l == nil {
		return fmt.Errorf("%s: %w", id, ErrLinkDown)
	}
	if err := l.SendPacket(buf); err != nil {
		if !errors.Is(err, impl.ErrInvalidFrame) {
			l.Close()
		}
		return err
	}
	return nil
}

// Connected reports whether link id currently has a session.
func (m *LinkManager) Connected(id state.LinkId) bool {
	slot, ok := m.slots[id]
	return ok && slot.session.Load() != nil
}

func (m *LinkManager) Describe(ids []state.LinkId) string {
	sb := strings.Builder{}
	for _, id := range ids {
		slot, ok := m.slots[id]
		if !ok {
			continue
		}
		sb.WriteString(fmt.Sprintf("%s weight %d subnet %d: ", id, slot.cfg.Weight, slot.cfg.NeighbourSubnet))
		if l := slot.session.Load(); l != nil {
			sb.WriteString(l.String())
		} else {
			sb.WriteString("down")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
