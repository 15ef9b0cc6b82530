//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/encodeous/rani/core"
	"github.com/encodeous/rani/impl"
	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
	"github.com/stretchr/testify/require"
)

type Signal chan bool

func NewSignal() Signal {
	return make(chan bool)
}
func (s Signal) Trigger() {
	select {
	case <-s:
	default:
		close(s)
	}
}

// VirtualHarness runs several router nodes in process, connected over
// loopback TCP.
type VirtualHarness struct {
	Context context.Context
	Cancel  context.CancelFunc
	Nodes   []state.NodeCfg
	States  []*state.State
	ready   []Signal
	errs    chan error
	wg      sync.WaitGroup
}

func (v *VirtualHarness) AddNode(cfg state.NodeCfg) int {
	v.Nodes = append(v.Nodes, cfg)
	return len(v.Nodes) - 1
}

func (v *VirtualHarness) Start(t *testing.T) {
	t.Helper()
	v.Context, v.Cancel = context.WithCancel(context.Background())
	v.States = make([]*state.State, len(v.Nodes))
	v.ready = make([]Signal, len(v.Nodes))
	v.errs = make(chan error, len(v.Nodes))

	for idx, cfg := range v.Nodes {
		require.NoError(t, state.NodeConfigValidator(&cfg))
		logger, err := core.NewLogger(cfg.Id, slog.LevelDebug, "")
		require.NoError(t, err)
		v.ready[idx] = NewSignal()
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			err := core.Start(v.Context, cfg, logger, func(s *state.State) {
				v.States[idx] = s
				v.ready[idx].Trigger()
			})
			if err != nil {
				v.errs <- fmt.Errorf("%s: %w", cfg.Id, err)
				v.ready[idx].Trigger()
			}
		}()
	}
	for idx := range v.Nodes {
		select {
		case <-v.ready[idx]:
		case <-time.After(5 * time.Second):
			t.Fatalf("node %s did not start", v.Nodes[idx].Id)
		}
		require.NotNil(t, v.States[idx], "node %s failed to start", v.Nodes[idx].Id)
	}
}

// Stop cancels every node and waits for them to clean up.
func (v *VirtualHarness) Stop(t *testing.T) {
	t.Helper()
	v.Cancel()
	v.wg.Wait()
	close(v.errs)
	for err := range v.errs {
		t.Error(err)
	}
}

func (v *VirtualHarness) Do(t *testing.T, idx int, fun func(s *state.State) (any, error)) any {
	t.Helper()
	res, err := v.States[idx].DispatchWait(fun)
	require.NoError(t, err)
	return res
}

func (v *VirtualHarness) route(idx int, subnet state.Subnet) (state.Route, bool, error) {
	res, err := v.States[idx].DispatchWait(func(s *state.State) (any, error) {
		r, ok, err := core.Get[*core.RaniRouter](s).RouterState.Table.Get(subnet)
		return state.Pair[state.Route, bool]{V1: r, V2: ok}, err
	})
	if err != nil {
		return state.Route{}, false, err
	}
	p := res.(state.Pair[state.Route, bool])
	return p.V1, p.V2, nil
}

func (v *VirtualHarness) Route(t *testing.T, idx int, subnet state.Subnet) (state.Route, bool) {
	t.Helper()
	r, ok, err := v.route(idx, subnet)
	require.NoError(t, err)
	return r, ok
}

// WaitRoute waits until node idx has exactly want for subnet.
func (v *VirtualHarness) WaitRoute(t *testing.T, idx int, subnet state.Subnet, want state.Route) {
	t.Helper()
	require.Eventually(t, func() bool {
		r, ok, err := v.route(idx, subnet)
		return err == nil && ok && r == want
	}, 5*time.Second, 20*time.Millisecond, "node %s never installed %d -> %s", v.Nodes[idx].Id, subnet, want)
}

func (v *VirtualHarness) WaitConnected(t *testing.T, idx int, link state.LinkId) {
	t.Helper()
	require.Eventually(t, func() bool {
		res, err := v.States[idx].DispatchWait(func(s *state.State) (any, error) {
			return core.Get[*core.LinkManager](s).Connected(link), nil
		})
		return err == nil && res.(bool)
	}, 5*time.Second, 20*time.Millisecond, "node %s %s never connected", v.Nodes[idx].Id, link)
}

func (v *VirtualHarness) WaitApp(t *testing.T, idx int) {
	t.Helper()
	require.Eventually(t, func() bool {
		res, err := v.States[idx].DispatchWait(func(s *state.State) (any, error) {
			return core.Get[*core.AppLink](s).Connected(), nil
		})
		return err == nil && res.(bool)
	}, 5*time.Second, 20*time.Millisecond, "node %s never reached its application", v.Nodes[idx].Id)
}

func (v *VirtualHarness) Dump(t *testing.T, idx int) string {
	t.Helper()
	return v.Do(t, idx, func(s *state.State) (any, error) {
		return core.Get[*core.RaniRouter](s).Dump(), nil
	}).(string)
}

// FreePort reserves a loopback port for a node to listen on.
func FreePort(t *testing.T) netip.AddrPort {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := netip.MustParseAddrPort(ln.Addr().String())
	require.NoError(t, ln.Close())
	return addr
}

// Peer plays a neighbouring router from the test.
type Peer struct {
	ln   net.Listener
	Link *impl.Link
}

func ListenPeer(t *testing.T) *Peer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &Peer{ln: ln}
}

func (p *Peer) Addr() netip.AddrPort {
	return netip.MustParseAddrPort(p.ln.Addr().String())
}

func (p *Peer) Accept(t *testing.T) {
	t.Helper()
	l, err := impl.AcceptLink(p.ln, 5*time.Second, time.Second)
	require.NoError(t, err)
	p.Link = l
}

func (p *Peer) Send(t *testing.T, pkt protocol.Packet) {
	t.Helper()
	require.NoError(t, pkt.FixLength())
	buf, err := protocol.Marshal(&pkt)
	require.NoError(t, err)
	require.NoError(t, p.Link.SendPacket(buf))
}

// Next returns the next frame of the given type, skipping others.
func (p *Peer) Next(t *testing.T, typ protocol.Type) protocol.Packet {
	t.Helper()
	require.NoError(t, p.Link.Conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		buf, err := p.Link.ReceivePacket()
		require.NoError(t, err)
		pkt, err := protocol.Deserialize(buf)
		require.NoError(t, err)
		if pkt.Type() == typ {
			return pkt
		}
	}
}

func (p *Peer) Close() {
	if p.Link != nil {
		p.Link.Close()
	}
	p.ln.Close()
}
