package core

import (
	"errors"
	"fmt"

	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
)

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	CommandAccepted
	PacketForwarded
	DeliveredToApp
	SnapshotBroadcast
)

// warn events

const (
	MalformedPacket RouterEvent = iota + 1000
	InvalidSubnetEntry
	UnknownArrivalLink
	NoNextHopForSubnet
)

func (e RouterEvent) String() string {
	switch e {
	case RouteAdded:
		return "RouteAdded"
	case RouteImproved:
		return "RouteImproved"
	case CommandAccepted:
		return "CommandAccepted"
	case PacketForwarded:
		return "PacketForwarded"
	case DeliveredToApp:
		return "DeliveredToApp"
	case SnapshotBroadcast:
		return "SnapshotBroadcast"
	case MalformedPacket:
		return "MalformedPacket"
	case InvalidSubnetEntry:
		return "InvalidSubnetEntry"
	case UnknownArrivalLink:
		return "UnknownArrivalLink"
	case NoNextHopForSubnet:
		return "NoNextHopForSubnet"
	default:
		return fmt.Sprintf("RouterEvent(%d)", int(e))
	}
}

// Gateway is everything the routing algorithm needs from the node around it.
// Query methods must not block; send methods may fail with I/O errors.
type Gateway interface {
	Links() []state.LinkId
	LinkWeight(link state.LinkId) (uint8, bool)
	NeighbourSubnet(link state.LinkId) (state.Subnet, bool)
	SendToLink(link state.LinkId, buf []byte) error
	SendToApp(buf []byte) error
	EmitDrop(reason protocol.DropReason)
	TableInsertRoute(subnet state.Subnet, route state.Route)
	Log(event RouterEvent, desc string, args ...any)
}

// Action is one frame to emit, either on a link or to the local application.
type Action struct {
	ToApp bool
	Link  state.LinkId
	Buf   []byte
}

// Outcome is the result of deciding on one received frame. At most one of
// Drop and Actions is set; neither means the frame was absorbed.
type Outcome struct {
	Actions []Action
	Drop    protocol.DropReason
	// Changed is set when a command modified the routing table.
	Changed bool
}

func dropped(reason protocol.DropReason) Outcome {
	return Outcome{Drop: reason}
}

// SendError reports a gateway failure while emitting an action. It is never
// a protocol drop.
type SendError struct {
	Action Action
	Err    error
}

func (e *SendError) Error() string {
	if e.Action.ToApp {
		return fmt.Sprintf("send to app: %v", e.Err)
	}
	return fmt.Sprintf("send on %s: %v", e.Action.Link, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Route decides what to do with a frame that arrived on link and emits the
// result through gw. Drops are reported via EmitDrop and are not errors.
func Route(s *state.RouterState, gw Gateway, buf []byte, link state.LinkId) (Outcome, error) {
	out, err := Decide(s, gw, buf, link)
	if err != nil {
		return out, err
	}
	return out, Emit(gw, out)
}

// Decide runs the forwarding and distance-vector logic, updating s, without
// sending anything.
func Decide(s *state.RouterState, gw Gateway, buf []byte, link state.LinkId) (Outcome, error) {
	pkt, err := protocol.Deserialize(buf)
	if err != nil {
		gw.Log(MalformedPacket, "dropping undecodable frame", "link", link, "err", err)
		return dropped(protocol.DropChecksumError), nil
	}
	switch payload := pkt.Payload.(type) {
	case protocol.Data:
		return handleData(s, gw, pkt, buf)
	case protocol.Command:
		return handleCommand(s, gw, pkt, payload, link)
	default:
		return dropped(protocol.DropGeneral), nil
	}
}

// Emit performs the sends or drop recorded in out. Every action is attempted;
// failures are joined.
func Emit(gw Gateway, out Outcome) error {
	if out.Drop != protocol.DropNone {
		gw.EmitDrop(out.Drop)
		return nil
	}
	var errs []error
	for _, a := range out.Actions {
		var err error
		if a.ToApp {
			err = gw.SendToApp(a.Buf)
		} else {
			err = gw.SendToLink(a.Link, a.Buf)
		}
		if err != nil {
			errs = append(errs, &SendError{Action: a, Err: err})
		}
	}
	return errors.Join(errs...)
}

func handleData(s *state.RouterState, gw Gateway, pkt protocol.Packet, raw []byte) (Outcome, error) {
	if pkt.Dest == s.AppAddr {
		gw.Log(DeliveredToApp, "delivering to application", "src", pkt.Src, "seq", pkt.SeqNo)
		return Outcome{Actions: []Action{{ToApp: true, Buf: raw[:pkt.Length]}}}, nil
	}
	if pkt.TTL <= 1 {
		return dropped(protocol.DropTtlZero), nil
	}
	pkt.TTL--
	buf, err := protocol.Marshal(&pkt)
	if err != nil {
		return Outcome{}, fmt.Errorf("reserialize data for %d: %w", pkt.Dest, err)
	}

	subnet := state.SubnetOf(pkt.Dest)
	route, ok, err := s.Table.Get(subnet)
	if err != nil {
		return Outcome{}, err
	}
	if !ok {
		return dropped(protocol.DropNoRoutingEntry), nil
	}
	if route.NextHop == state.NoNextHop {
		gw.Log(NoNextHopForSubnet, "destination is local but not the application", "dest", pkt.Dest)
		return dropped(protocol.DropGeneral), nil
	}
	gw.Log(PacketForwarded, "forwarding", "dest", pkt.Dest, "nh", route.NextHop, "ttl", pkt.TTL)
	return Outcome{Actions: []Action{{Link: route.NextHop, Buf: buf}}}, nil
}

// CandidateCost is the cost of reaching a destination through a neighbour
// that advertised cost over a link of the given weight. It saturates at 255.
func CandidateCost(cost, weight uint8) uint8 {
	return uint8(min(uint16(cost)+uint16(weight), 0xFF))
}

// Improves reports whether a route of cost cand should replace the current
// one. Equal costs never replace an existing route.
func Improves(cur state.Route, present bool, cand uint8) bool {
	return !present || cand < cur.Cost
}

func handleCommand(s *state.RouterState, gw Gateway, pkt protocol.Packet, cmd protocol.Command, link state.LinkId) (Outcome, error) {
	if cmd.Timestamp <= s.LastTimestamp {
		return dropped(protocol.DropOutdated), nil
	}
	// a command from a link without a weight must not advance the timestamp
	weight, ok := gw.LinkWeight(link)
	if !ok {
		gw.Log(UnknownArrivalLink, "command arrived on a link without a weight", "link", link)
		return dropped(protocol.DropGeneral), nil
	}
	s.LastTimestamp = cmd.Timestamp
	gw.Log(CommandAccepted, "accepted command", "link", link, "timestamp", cmd.Timestamp, "entries", len(cmd.Entries))

	changed := false
	for _, e := range cmd.Entries {
		subnet := state.Subnet(e.Subnet)
		if !subnet.Valid() {
			gw.Log(InvalidSubnetEntry, "ignoring entry for invalid subnet", "subnet", e.Subnet, "link", link)
			continue
		}
		cand := CandidateCost(e.Cost, weight)
		cur, present, err := s.Table.Get(subnet)
		if err != nil {
			return Outcome{}, err
		}
		if !Improves(cur, present, cand) {
			continue
		}
		route := state.Route{Cost: cand, NextHop: link}
		if err := s.Table.Set(subnet, route); err != nil {
			return Outcome{}, err
		}
		gw.TableInsertRoute(subnet, route)
		if present {
			gw.Log(RouteImproved, "improved route", "subnet", subnet, "from", cur, "to", route)
		} else {
			gw.Log(RouteAdded, "added route", "subnet", subnet, "route", route)
		}
		changed = true
	}
	if !changed {
		return Outcome{}, nil
	}
	actions, err := broadcastSnapshot(s, gw, pkt, cmd.Timestamp)
	return Outcome{Actions: actions, Changed: true}, err
}

// Snapshot returns the full table as command entries in subnet order.
func Snapshot(t *state.Table) []protocol.Entry {
	entries := make([]protocol.Entry, 0, t.Len())
	for subnet, r := range t.All() {
		entries = append(entries, protocol.Entry{Subnet: uint8(subnet), Cost: r.Cost})
	}
	return entries
}

func broadcastSnapshot(s *state.RouterState, gw Gateway, trigger protocol.Packet, timestamp uint32) ([]Action, error) {
	adv := protocol.Packet{
		Src:   trigger.Dest,
		TTL:   trigger.TTL,
		Ack:   trigger.Ack,
		SeqNo: trigger.SeqNo,
		Payload: protocol.Command{
			Timestamp: timestamp,
			Entries:   Snapshot(s.Table),
		},
	}
	if err := adv.FixLength(); err != nil {
		return nil, fmt.Errorf("snapshot of %d routes: %w", s.Table.Len(), err)
	}
	actions := make([]Action, 0)
	for _, link := range gw.Links() {
		neigh, ok := gw.NeighbourSubnet(link)
		if !ok {
			continue
		}
		adv.Dest = neigh.Addr()
		buf, err := protocol.Marshal(&adv)
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{Link: link, Buf: buf})
	}
	gw.Log(SnapshotBroadcast, "broadcasting table", "routes", s.Table.Len(), "links", len(actions))
	return actions, nil
}
