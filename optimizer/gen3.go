package optimizer

import (
	"math"
	"sort"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
)

// lengthStates collects every default length worth considering: the
// implicit l4 plus the undotted base of each candidate token.
func (w *writer) lengthStates() []string {
	seen := map[string]bool{constants.DefaultLength: true}
	states := []string{constants.DefaultLength}
	for _, p := range w.parts {
		if p == nil {
			continue
		}
		for _, c := range p.candidates {
			for _, t := range c {
				base := strings.TrimRight(t, ".")
				if !seen[base] && w.validLength(base) {
					seen[base] = true
					states = append(states, base)
				}
			}
		}
	}
	sort.Strings(states[1:])
	return states
}

type step struct {
	prev      int
	switched  bool
	candidate int
}

// optimalLengths picks default lengths and spellings by dynamic
// programming over the default length in force. An l command may be
// written before any part that does not continue a tie.
func (w *writer) optimalLengths() []choice {
	states := w.lengthStates()
	cost := make([]int, len(states))
	for s := range cost {
		cost[s] = math.MaxInt32
	}
	cost[0] = 0

	var partIdx []int
	var steps [][]step
	for i, p := range w.parts {
		if p == nil {
			continue
		}
		partIdx = append(partIdx, i)
		row := make([]step, len(states))
		next := make([]int, len(states))

		bestPrev, bestCost := 0, cost[0]
		for s, c := range cost {
			if c < bestCost {
				bestPrev, bestCost = s, c
			}
		}
		for s, length := range states {
			from, base, switched := s, cost[s], false
			if !p.item.Tie && bestPrev != s && bestCost+switchCost(length) < base {
				from, base, switched = bestPrev, bestCost+switchCost(length), true
			}
			if base >= math.MaxInt32 {
				next[s] = math.MaxInt32
				continue
			}
			bestCand, candCost := 0, partCost(p, 0, length)
			for k := 1; k < len(p.candidates); k++ {
				if c := partCost(p, k, length); c < candCost {
					bestCand, candCost = k, c
				}
			}
			next[s] = base + candCost
			row[s] = step{prev: from, switched: switched, candidate: bestCand}
		}
		cost = next
		steps = append(steps, row)
	}

	out := w.fixedLength()
	if len(partIdx) == 0 {
		return out
	}
	state := 0
	for s, c := range cost {
		if c < cost[state] {
			state = s
		}
	}
	for k := len(partIdx) - 1; k >= 0; k-- {
		st := steps[k][state]
		out[partIdx[k]] = choice{length: states[state], switched: st.switched, candidate: st.candidate}
		state = st.prev
	}
	return out
}
