package state

import (
	"net/netip"
	"slices"
)

// LinkCfg describes one point-to-point link. Exactly one of Dial and Listen is set.
type LinkCfg struct {
	Id              LinkId
	Weight          uint8
	NeighbourSubnet Subnet         `yaml:"neighbour_subnet"`
	Dial            netip.AddrPort
	Listen          netip.AddrPort
}

// AppCfg selects how the router reaches the local application.
type AppCfg struct {
	Embedded bool           `yaml:",omitempty"` // run the responder in-process
	Dial     netip.AddrPort
}

// NodeCfg represents the configuration of a single router node
type NodeCfg struct {
	Id          string
	Address     uint8
	AppAddress  uint8  `yaml:"app_address"`
	LogPath     string `yaml:"log_path,omitempty"`     // if not empty, rani will also log to this file
	EventLog    string `yaml:"event_log,omitempty"`    // binary event log, see package eventlog
	MetricsBind string `yaml:"metrics_bind,omitempty"` // serves /metrics and /debug/*
	App         AppCfg
	Links       []LinkCfg
}

func (n *NodeCfg) Subnet() Subnet {
	return SubnetOf(n.Address)
}

func (n *NodeCfg) GetLink(id LinkId) (LinkCfg, bool) {
	idx := slices.IndexFunc(n.Links, func(l LinkCfg) bool {
		return l.Id == id
	})
	if idx == -1 {
		return LinkCfg{}, false
	}
	return n.Links[idx], true
}

// LinkIds returns the configured link ids in ascending order.
func (n *NodeCfg) LinkIds() []LinkId {
	ids := make([]LinkId, 0, len(n.Links))
	for _, l := range n.Links {
		ids = append(ids, l.Id)
	}
	slices.Sort(ids)
	return ids
}

type TopologyEdge struct {
	A      Subnet
	B      Subnet
	Weight uint8
}

// TopologyCfg is an undirected weighted graph of subnets used by the
// distance-vector simulator.
type TopologyCfg struct {
	Edges []TopologyEdge
}

func (t *TopologyCfg) Nodes() []Subnet {
	nodes := make([]Subnet, 0)
	for _, e := range t.Edges {
		nodes = append(nodes, e.A, e.B)
	}
	slices.Sort(nodes)
	return slices.Compact(nodes)
}
