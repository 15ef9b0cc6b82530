package state

import (
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Subnet is the 6-bit prefix of an 8-bit address.
type Subnet uint8

// LinkId identifies a configured link on this node.
type LinkId uint8

const (
	SubnetCount = 64
	// NoNextHop marks a route that terminates at this node.
	NoNextHop LinkId = 0xFF
	// AppLink is the pseudo link that carries traffic from the local application.
	AppLink LinkId = 0xFE
)

var ErrInvalidSubnet = errors.New("subnet out of range")

func SubnetOf(addr uint8) Subnet {
	return Subnet(addr >> 2)
}

func (s Subnet) Valid() bool {
	return s < SubnetCount
}

// Addr returns the first address in the subnet.
func (s Subnet) Addr() uint8 {
	return uint8(s) << 2
}

func (l LinkId) String() string {
	switch l {
	case NoNextHop:
		return "local"
	case AppLink:
		return "app"
	default:
		return fmt.Sprintf("link%d", uint8(l))
	}
}

type Route struct {
	Cost    uint8
	NextHop LinkId
}

func (r Route) String() string {
	return fmt.Sprintf("(cost: %d, nh: %s)", r.Cost, r.NextHop)
}

// Table is the distance-vector routing table, keyed by subnet.
type Table struct {
	routes map[Subnet]Route
}

func NewTable() *Table {
	return &Table{routes: make(map[Subnet]Route)}
}

func (t *Table) Get(s Subnet) (Route, bool, error) {
	if !s.Valid() {
		return Route{}, false, fmt.Errorf("get %d: %w", s, ErrInvalidSubnet)
	}
	r, ok := t.routes[s]
	return r, ok, nil
}

// Set installs r unconditionally.
func (t *Table) Set(s Subnet, r Route) error {
	if !s.Valid() {
		return fmt.Errorf("set %d: %w", s, ErrInvalidSubnet)
	}
	t.routes[s] = r
	return nil
}

func (t *Table) Len() int {
	return len(t.routes)
}

// All iterates the present routes in ascending subnet order.
func (t *Table) All() iter.Seq2[Subnet, Route] {
	return func(yield func(Subnet, Route) bool) {
		for _, s := range slices.Sorted(maps.Keys(t.routes)) {
			if !yield(s, t.routes[s]) {
				return
			}
		}
	}
}

func (t *Table) Clone() *Table {
	return &Table{routes: maps.Clone(t.routes)}
}

func (t *Table) String() string {
	sb := strings.Builder{}
	for s, r := range t.All() {
		sb.WriteString(fmt.Sprintf("%2d (%3d/6) -> %s\n", s, s.Addr(), r))
	}
	return sb.String()
}

// RouterState is everything the router engine persists between packets.
type RouterState struct {
	Table         *Table
	LastTimestamp uint32
	// AppAddr is the address delivered to the local application.
	AppAddr uint8
}

// NewRouterState seeds the table with this node's subnet and one direct
// route per configured link.
func NewRouterState(cfg NodeCfg) (*RouterState, error) {
	rs := &RouterState{
		Table:   NewTable(),
		AppAddr: cfg.AppAddress,
	}
	if err := rs.Table.Set(SubnetOf(cfg.Address), Route{Cost: 0, NextHop: NoNextHop}); err != nil {
		return nil, err
	}
	for _, link := range cfg.Links {
		if err := rs.Table.Set(link.NeighbourSubnet, Route{Cost: link.Weight, NextHop: link.Id}); err != nil {
			return nil, fmt.Errorf("link %d: %w", link.Id, err)
		}
	}
	return rs, nil
}
