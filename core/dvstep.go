package core

import (
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/encodeous/rani/state"
)

type SimRoute struct {
	Cost uint8
	Via  state.Subnet
}

// DvSim runs synchronous distance-vector rounds over a whole topology. Every
// node updates from the tables its neighbours held at the start of the
// round, with the same cost rules as the router.
type DvSim struct {
	Round  int
	Tables map[state.Subnet]map[state.Subnet]SimRoute
	graph  map[state.Subnet]map[state.Subnet]uint8
}

func NewDvSim(topo *state.TopologyCfg) *DvSim {
	sim := &DvSim{
		Round:  1,
		Tables: make(map[state.Subnet]map[state.Subnet]SimRoute),
		graph:  make(map[state.Subnet]map[state.Subnet]uint8),
	}
	for _, n := range topo.Nodes() {
		sim.graph[n] = make(map[state.Subnet]uint8)
		sim.Tables[n] = map[state.Subnet]SimRoute{n: {Cost: 0, Via: n}}
	}
	for _, e := range topo.Edges {
		sim.graph[e.A][e.B] = e.Weight
		sim.graph[e.B][e.A] = e.Weight
		sim.Tables[e.A][e.B] = SimRoute{Cost: e.Weight, Via: e.B}
		sim.Tables[e.B][e.A] = SimRoute{Cost: e.Weight, Via: e.A}
	}
	return sim
}

func (d *DvSim) Nodes() []state.Subnet {
	return slices.Sorted(maps.Keys(d.Tables))
}

// Step runs one round and reports whether any table changed.
func (d *DvSim) Step() bool {
	old := make(map[state.Subnet]map[state.Subnet]SimRoute, len(d.Tables))
	for n, t := range d.Tables {
		old[n] = maps.Clone(t)
	}
	changed := false
	for _, n := range d.Nodes() {
		my := d.Tables[n]
		for _, neigh := range slices.Sorted(maps.Keys(d.graph[n])) {
			weight := d.graph[n][neigh]
			for _, dest := range slices.Sorted(maps.Keys(old[neigh])) {
				cand := CandidateCost(old[neigh][dest].Cost, weight)
				cur, ok := my[dest]
				if Improves(state.Route{Cost: cur.Cost}, ok, cand) {
					my[dest] = SimRoute{Cost: cand, Via: neigh}
					changed = true
				}
			}
		}
	}
	d.Round++
	return changed
}

// Run steps until the tables converge or maxRounds rounds have run. render
// is called before every round. It returns the number of rounds run.
func (d *DvSim) Run(maxRounds int, render func(d *DvSim) error) (int, error) {
	for i := 0; maxRounds <= 0 || i < maxRounds; i++ {
		if render != nil {
			if err := render(d); err != nil {
				return i, err
			}
		}
		if !d.Step() {
			return i + 1, nil
		}
	}
	return maxRounds, nil
}

// Render prints the tables of every node, or only of node when it is set.
func (d *DvSim) Render(w io.Writer, node *state.Subnet) error {
	nodes := d.Nodes()
	if node != nil {
		if _, ok := d.Tables[*node]; !ok {
			return fmt.Errorf("node %d is not in the topology", *node)
		}
		nodes = []state.Subnet{*node}
	}
	if _, err := fmt.Fprintf(w, "=== round %d ===\n", d.Round); err != nil {
		return err
	}
	for _, n := range nodes {
		fmt.Fprintf(w, "* %d *\n", n)
		t := d.Tables[n]
		for _, dest := range slices.Sorted(maps.Keys(t)) {
			fmt.Fprintf(w, "%2d : cost %3d via %d\n", dest, t[dest].Cost, t[dest].Via)
		}
	}
	return nil
}
