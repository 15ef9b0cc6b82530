package state

import "net/netip"

// SampleNodeCfg mirrors the classic four-link router: address 12, application 14.
func SampleNodeCfg() NodeCfg {
	return NodeCfg{
		Id:         "r12",
		Address:    12,
		AppAddress: 14,
		App:        AppCfg{Embedded: true},
		Links: []LinkCfg{
			{Id: 0, Weight: 2, NeighbourSubnet: 2, Dial: netip.MustParseAddrPort("127.0.0.1:10000")},
			{Id: 1, Weight: 3, NeighbourSubnet: 5, Dial: netip.MustParseAddrPort("127.0.0.1:10001")},
			{Id: 2, Weight: 2, NeighbourSubnet: 18, Dial: netip.MustParseAddrPort("127.0.0.1:10002")},
			{Id: 3, Weight: 11, NeighbourSubnet: 45, Listen: netip.MustParseAddrPort("127.0.0.1:10003")},
		},
	}
}
