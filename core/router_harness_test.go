package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type HarnessLink struct {
	Id     state.LinkId
	Weight uint8
	Subnet state.Subnet
}

// ClassicLinks is the four-link layout of router 12.
func ClassicLinks() []HarnessLink {
	return []HarnessLink{
		{0, 2, 2},
		{1, 3, 5},
		{2, 2, 18},
		{3, 11, 45},
	}
}

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness is a Gateway that records every call.
type RouterHarness struct {
	links     map[state.LinkId]HarnessLink
	actions   []HarnessEvent
	FailLinks map[state.LinkId]error
	FailApp   error
}

func NewRouterHarness(links ...HarnessLink) *RouterHarness {
	h := &RouterHarness{
		links:     make(map[state.LinkId]HarnessLink),
		FailLinks: make(map[state.LinkId]error),
	}
	for _, l := range links {
		h.links[l.Id] = l
	}
	return h
}

func (h *RouterHarness) Links() []state.LinkId {
	return slices.Sorted(maps.Keys(h.links))
}

func (h *RouterHarness) LinkWeight(link state.LinkId) (uint8, bool) {
	l, ok := h.links[link]
	return l.Weight, ok
}

func (h *RouterHarness) NeighbourSubnet(link state.LinkId) (state.Subnet, bool) {
	l, ok := h.links[link]
	return l.Subnet, ok
}

// decoded renders buf as a Packet when possible so tests can compare fields.
func decoded(buf []byte) any {
	p, err := protocol.Deserialize(buf)
	if err != nil {
		return buf
	}
	return p
}

func (h *RouterHarness) SendToLink(link state.LinkId, buf []byte) error {
	if err := h.FailLinks[link]; err != nil {
		return err
	}
	h.actions = append(h.actions, MakeEvent("SEND_LINK", link, decoded(buf)))
	return nil
}

func (h *RouterHarness) SendToApp(buf []byte) error {
	if h.FailApp != nil {
		return h.FailApp
	}
	h.actions = append(h.actions, MakeEvent("SEND_APP", decoded(buf)))
	return nil
}

func (h *RouterHarness) EmitDrop(reason protocol.DropReason) {
	h.actions = append(h.actions, MakeEvent("DROP", reason))
}

func (h *RouterHarness) TableInsertRoute(subnet state.Subnet, route state.Route) {
	h.actions = append(h.actions, MakeEvent("TABLE", subnet, route))
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func summarize(arg any) string {
	p, ok := arg.(protocol.Packet)
	if !ok {
		return fmt.Sprint(arg)
	}
	switch payload := p.Payload.(type) {
	case protocol.Data:
		return fmt.Sprintf("data %d->%d ttl=%d %v", p.Src, p.Dest, p.TTL, []byte(payload))
	case protocol.Command:
		return fmt.Sprintf("cmd %d->%d ts=%d %v", p.Src, p.Dest, payload.Timestamp, payload.Entries)
	}
	return fmt.Sprint(arg)
}

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + summarize(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns and clears the recorded non-log events.
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	logs := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		} else {
			logs = append(logs, action)
		}
	}

	h.actions = logs
	return x
}

// GetLogs returns and clears the recorded router events.
func (h *RouterHarness) GetLogs() []RouterEvent {
	x := make([]RouterEvent, 0)
	rest := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		} else {
			rest = append(rest, action)
		}
	}
	h.actions = rest
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg, cmpopts.EquateEmpty()) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in\n", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in\n", e)
	}
}

func (e HarnessEvents) Count(msg string) int {
	n := 0
	for _, event := range e {
		if event.Message == msg {
			n++
		}
	}
	return n
}

func MakeRouterState(appAddr uint8, routes map[state.Subnet]state.Route) *state.RouterState {
	rs := &state.RouterState{
		Table:   state.NewTable(),
		AppAddr: appAddr,
	}
	for s, r := range routes {
		if err := rs.Table.Set(s, r); err != nil {
			panic(err)
		}
	}
	return rs
}

func MakeData(src, dest, ttl uint8, data ...byte) []byte {
	p := protocol.Packet{Src: src, Dest: dest, TTL: ttl, SeqNo: 7, Payload: protocol.Data(data)}
	if err := p.FixLength(); err != nil {
		panic(err)
	}
	buf, err := protocol.Marshal(&p)
	if err != nil {
		panic(err)
	}
	return buf
}

func MakeCommand(src, dest uint8, ts uint32, entries ...protocol.Entry) []byte {
	p := protocol.Packet{Src: src, Dest: dest, TTL: 15, Payload: protocol.Command{Timestamp: ts, Entries: entries}}
	if err := p.FixLength(); err != nil {
		panic(err)
	}
	buf, err := protocol.Marshal(&p)
	if err != nil {
		panic(err)
	}
	return buf
}
