package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	if SubnetOf(node.AppAddress) != node.Subnet() {
		return fmt.Errorf("app_address %d is not in subnet %d of address %d", node.AppAddress, node.Subnet(), node.Address)
	}
	if node.AppAddress == node.Address {
		return fmt.Errorf("app_address must differ from address %d", node.Address)
	}
	if node.App.Embedded == node.App.Dial.IsValid() {
		return fmt.Errorf("app must set exactly one of embedded or dial")
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return fmt.Errorf("log_path: %w", err)
		}
	}
	if node.EventLog != "" {
		if err := PathValidator(node.EventLog); err != nil {
			return fmt.Errorf("event_log: %w", err)
		}
	}
	seen := make(map[LinkId]bool)
	for _, link := range node.Links {
		if link.Id == NoNextHop || link.Id == AppLink {
			return fmt.Errorf("link id %d is reserved", link.Id)
		}
		if seen[link.Id] {
			return fmt.Errorf("link id %d is duplicated", link.Id)
		}
		seen[link.Id] = true
		if link.Dial.IsValid() == link.Listen.IsValid() {
			return fmt.Errorf("link %d must set exactly one of dial or listen", link.Id)
		}
		if !link.NeighbourSubnet.Valid() {
			return fmt.Errorf("link %d: neighbour_subnet %d: %w", link.Id, link.NeighbourSubnet, ErrInvalidSubnet)
		}
		if link.NeighbourSubnet == node.Subnet() {
			return fmt.Errorf("link %d: neighbour_subnet %d is this node's subnet", link.Id, link.NeighbourSubnet)
		}
	}
	return nil
}

func TopologyValidator(topo *TopologyCfg) error {
	if len(topo.Edges) == 0 {
		return fmt.Errorf("topology has no edges")
	}
	seen := make(map[Pair[Subnet, Subnet]]bool)
	for _, e := range topo.Edges {
		if !e.A.Valid() || !e.B.Valid() {
			return fmt.Errorf("edge %d-%d: %w", e.A, e.B, ErrInvalidSubnet)
		}
		if e.A == e.B {
			return fmt.Errorf("edge %d-%d is a self loop", e.A, e.B)
		}
		key := Pair[Subnet, Subnet]{min(e.A, e.B), max(e.A, e.B)}
		if seen[key] {
			return fmt.Errorf("edge %d-%d is duplicated", e.A, e.B)
		}
		seen[key] = true
	}
	return nil
}
