package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/encodeous/rani/eventlog"
	"github.com/encodeous/rani/perf"
	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
	"github.com/jellydator/ttlcache/v3"
)

// RaniRouter owns the routing table and is the Gateway the engine runs
// against. All methods must be called on the dispatch goroutine.
type RaniRouter struct {
	*state.State
	RouterState *state.RouterState
	// dropLog holds the drop reasons that were warned about recently
	dropLog *ttlcache.Cache[protocol.DropReason, struct{}]
}

func (r *RaniRouter) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	rs, err := state.NewRouterState(s.NodeCfg)
	if err != nil {
		return err
	}
	r.RouterState = rs
	r.dropLog = ttlcache.New[protocol.DropReason, struct{}](
		ttlcache.WithTTL[protocol.DropReason, struct{}](state.DropLogInterval),
		ttlcache.WithDisableTouchOnHit[protocol.DropReason, struct{}](),
	)

	for subnet, route := range rs.Table.All() {
		r.trace(eventlog.DvSet(uint8(subnet), route.Cost, uint8(route.NextHop)))
	}
	s.Log.Debug("initial table", "routes", rs.Table.Len())

	s.Env.RepeatTask(func(s *state.State) error {
		r.dropLog.DeleteExpired()
		return nil
	}, state.DropLogInterval)
	return nil
}

func (r *RaniRouter) Cleanup(s *state.State) error {
	r.dropLog.DeleteAll()
	r.State = nil
	return nil
}

// HandlePacket routes one frame that arrived on link. Send failures are
// logged and do not stop the node.
func (r *RaniRouter) HandlePacket(buf []byte, link state.LinkId) error {
	perf.RecordRecv()
	if link == state.AppLink {
		r.trace(eventlog.SendToRouter(buf))
	}
	out, err := Route(r.RouterState, r, buf, link)
	if out.Drop == protocol.DropNone {
		perf.RecordRouted(frameKind(buf))
	}
	if err != nil {
		var se *SendError
		if errors.As(err, &se) {
			r.Env.Log.Warn("failed to send", "err", err)
			return nil
		}
		return fmt.Errorf("route frame from %s: %w", link, err)
	}
	return nil
}

func frameKind(buf []byte) string {
	if len(buf) > 4 && protocol.Type(buf[4]>>4) == protocol.TypeCommand {
		return "command"
	}
	return "data"
}

// Dump renders the routing table for inspection.
func (r *RaniRouter) Dump() string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("node %s, address %d, app %d, last timestamp %d\n",
		r.Id, r.Address, r.RouterState.AppAddr, r.RouterState.LastTimestamp))
	sb.WriteString(r.RouterState.Table.String())
	return sb.String()
}

func (r *RaniRouter) trace(rec eventlog.Record) {
	if t, ok := r.Modules[moduleName[*RaniTrace]()].(*RaniTrace); ok {
		t.Record(rec)
	}
}

func (r *RaniRouter) Links() []state.LinkId {
	return r.LinkIds()
}

func (r *RaniRouter) LinkWeight(link state.LinkId) (uint8, bool) {
	l, ok := r.GetLink(link)
	return l.Weight, ok
}

func (r *RaniRouter) NeighbourSubnet(link state.LinkId) (state.Subnet, bool) {
	l, ok := r.GetLink(link)
	return l.NeighbourSubnet, ok
}

func (r *RaniRouter) SendToLink(link state.LinkId, buf []byte) error {
	r.trace(eventlog.SendToLink(uint8(link), buf))
	err := Get[*LinkManager](r.State).Send(link, buf)
	perf.RecordSend(link.String(), len(buf), err)
	return err
}

func (r *RaniRouter) SendToApp(buf []byte) error {
	r.trace(eventlog.SendToApp(buf))
	err := Get[*AppLink](r.State).Send(buf)
	perf.RecordSend(state.AppLink.String(), len(buf), err)
	return err
}

func (r *RaniRouter) EmitDrop(reason protocol.DropReason) {
	r.trace(eventlog.Drop(reason))
	perf.RecordDrop(reason.String())
	if r.dropLog.Has(reason) {
		r.Env.Log.Debug("dropped packet", "reason", reason)
		return
	}
	r.dropLog.Set(reason, struct{}{}, ttlcache.DefaultTTL)
	r.Env.Log.Warn("dropped packet", "reason", reason)
}

func (r *RaniRouter) TableInsertRoute(subnet state.Subnet, route state.Route) {
	r.trace(eventlog.DvSet(uint8(subnet), route.Cost, uint8(route.NextHop)))
	perf.RecordRouteChange()
}

func (r *RaniRouter) Log(event RouterEvent, desc string, args ...any) {
	if event >= MalformedPacket {
		r.Env.Log.Warn(fmt.Sprintf("%s %s", event, desc), args...)
		return
	}
	r.Env.Log.Debug(fmt.Sprintf("%s %s", event, desc), args...)
}
