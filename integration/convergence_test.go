//go:build integration

package integration

import (
	"testing"

	"github.com/encodeous/rani/protocol"
	"github.com/encodeous/rani/state"
	"github.com/stretchr/testify/assert"
)

// peer(20) -1- x(16) -1- y(32) -2- z(48)
func TestFloodAlongLine(t *testing.T) {
	peer := ListenPeer(t)
	defer peer.Close()
	xy := FreePort(t)
	yz := FreePort(t)

	v := &VirtualHarness{}
	x := v.AddNode(state.NodeCfg{
		Id: "x", Address: 16, AppAddress: 17, App: state.AppCfg{Embedded: true},
		Links: []state.LinkCfg{
			{Id: 0, Weight: 1, NeighbourSubnet: 8, Listen: xy},
			{Id: 1, Weight: 1, NeighbourSubnet: 20, Dial: peer.Addr()},
		},
	})
	y := v.AddNode(state.NodeCfg{
		Id: "y", Address: 32, AppAddress: 33, App: state.AppCfg{Embedded: true},
		Links: []state.LinkCfg{
			{Id: 0, Weight: 1, NeighbourSubnet: 4, Dial: xy},
			{Id: 1, Weight: 2, NeighbourSubnet: 12, Listen: yz},
		},
	})
	z := v.AddNode(state.NodeCfg{
		Id: "z", Address: 48, AppAddress: 49, App: state.AppCfg{Embedded: true},
		Links: []state.LinkCfg{
			{Id: 0, Weight: 2, NeighbourSubnet: 8, Dial: yz},
		},
	})
	v.Start(t)
	defer v.Stop(t)
	peer.Accept(t)
	assert.Equal(t, byte(1), peer.Link.Hello)
	v.WaitConnected(t, x, 0)
	v.WaitConnected(t, y, 1)
	v.WaitConnected(t, z, 0)

	peer.Send(t, protocol.Packet{
		Src: 80, Dest: 16, TTL: 15,
		Payload: protocol.Command{Timestamp: 1, Entries: []protocol.Entry{{Subnet: 20, Cost: 0}, {Subnet: 21, Cost: 5}}},
	})

	v.WaitRoute(t, x, 21, state.Route{Cost: 6, NextHop: 1})
	v.WaitRoute(t, y, 20, state.Route{Cost: 2, NextHop: 0})
	v.WaitRoute(t, y, 21, state.Route{Cost: 7, NextHop: 0})
	v.WaitRoute(t, z, 4, state.Route{Cost: 3, NextHop: 0})
	v.WaitRoute(t, z, 20, state.Route{Cost: 4, NextHop: 0})
	v.WaitRoute(t, z, 21, state.Route{Cost: 9, NextHop: 0})

	// every snapshot carries timestamp 1, so nothing flows back towards x
	_, ok := v.Route(t, x, 12)
	assert.False(t, ok)

	first := peer.Next(t, protocol.TypeCommand)
	assert.Equal(t, uint8(16), first.Src)
	assert.Equal(t, uint8(80), first.Dest)
	assert.Equal(t, uint32(1), first.Payload.(protocol.Command).Timestamp)

	// a newer timestamp floods the next change to the end of the line
	peer.Send(t, protocol.Packet{
		Src: 80, Dest: 16, TTL: 15,
		Payload: protocol.Command{Timestamp: 2, Entries: []protocol.Entry{{Subnet: 22, Cost: 1}}},
	})
	v.WaitRoute(t, y, 22, state.Route{Cost: 3, NextHop: 0})
	v.WaitRoute(t, z, 22, state.Route{Cost: 5, NextHop: 0})
	second := peer.Next(t, protocol.TypeCommand)
	assert.Equal(t, uint32(2), second.Payload.(protocol.Command).Timestamp)
	assert.Contains(t, second.Payload.(protocol.Command).Entries, protocol.Entry{Subnet: 22, Cost: 2})
}
