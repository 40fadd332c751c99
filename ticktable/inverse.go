package ticktable

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
)

type decomposition struct {
	count int
	chars int
	seq   []string
}

func (d decomposition) better(o *decomposition) bool {
	if o == nil {
		return true
	}
	if d.count != o.count {
		return d.count < o.count
	}
	return d.chars < o.chars
}

func build(ticks map[string]int) *Table {
	t := &Table{ticks: ticks, inverse: make(map[int]Entry)}

	byTick := make(map[int][]string)
	for token, tick := range ticks {
		byTick[tick] = append(byTick[tick], token)
	}
	values := make([]int, 0, len(byTick))
	for tick, tokens := range byTick {
		sort.Slice(tokens, func(i, j int) bool {
			return preferToken(tokens[i], tokens[j])
		})
		values = append(values, tick)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(values)))

	limit := constants.WholeNoteTick * 2
	if whole, ok := ticks["1"]; ok {
		limit = whole * 2
	}
	min := t.MinimumTick()

	best := make([]*decomposition, limit+1)
	for v := min; v <= limit; v++ {
		for _, d := range values {
			if d > v {
				continue
			}
			token := byTick[d][0]
			var cand decomposition
			if d == v {
				cand = decomposition{count: 1, chars: len(token), seq: []string{token}}
			} else {
				prev := best[v-d]
				if prev == nil {
					continue
				}
				seq := make([]string, len(prev.seq), len(prev.seq)+1)
				copy(seq, prev.seq)
				cand = decomposition{count: prev.count + 1, chars: prev.chars + len(token), seq: append(seq, token)}
			}
			if cand.better(best[v]) {
				c := cand
				best[v] = &c
			}
		}
		if best[v] == nil {
			continue
		}
		primary := best[v].seq
		sort.SliceStable(primary, func(i, j int) bool {
			return ticks[primary[i]] > ticks[primary[j]]
		})
		t.inverse[v] = Entry{
			Primary:    primary,
			Alternates: alternates(byTick, values, v, primary),
		}
	}
	return t
}

func alternates(byTick map[int][]string, values []int, v int, primary []string) [][]string {
	var alts [][]string
	switch len(primary) {
	case 1:
		for _, token := range byTick[v] {
			if token != primary[0] {
				alts = append(alts, []string{token})
			}
		}
	case 2:
		key := strings.Join(primary, "&")
		for _, d1 := range values {
			d2 := v - d1
			if d2 > d1 || d2 <= 0 {
				continue
			}
			if _, ok := byTick[d2]; !ok {
				continue
			}
			seq := []string{byTick[d1][0], byTick[d2][0]}
			if strings.Join(seq, "&") != key {
				alts = append(alts, seq)
			}
		}
	}
	sort.SliceStable(alts, func(i, j int) bool {
		return seqChars(alts[i]) < seqChars(alts[j])
	})
	if len(alts) > maxAlternates {
		alts = alts[:maxAlternates]
	}
	return alts
}

func seqChars(seq []string) int {
	n := 0
	for _, s := range seq {
		n += len(s)
	}
	return n
}

// preferToken orders spellings of the same length: shorter text first, then
// fewer dots, then the larger divisor.
func preferToken(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	da, db := strings.Count(a, "."), strings.Count(b, ".")
	if da != db {
		return da < db
	}
	na, errA := strconv.Atoi(strings.TrimRight(a, "."))
	nb, errB := strconv.Atoi(strings.TrimRight(b, "."))
	if errA == nil && errB == nil && na != nb {
		return na > nb
	}
	return a < b
}
