// Package optimizer produces the shortest MML text it can find for a
// timeline. Higher generations spend more work and never return longer
// text than lower ones.
package optimizer

import (
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/duration"
	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/pkg/errors"
)

type Generation int

const (
	Gen1 Generation = 1
	Gen2 Generation = 2
	Gen3 Generation = 3
)

func ParseGeneration(s string) (Generation, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s), "gen"))
	if err != nil || n < int(Gen1) || n > int(Gen3) {
		return 0, errors.Errorf("unknown generation %q", s)
	}
	return Generation(n), nil
}

type Options struct {
	Generation Generation
	// Tempos replaces the timeline's own tempo list when not nil.
	Tempos        []model.TempoEvent
	TrailingTempo bool
	// Start and End select a tick range; End 0 means the whole timeline.
	Start int
	End   int
}

// Optimize serializes tl at the requested generation without caching.
func Optimize(tl *timeline.Timeline, opts Options) (string, error) {
	src := tl
	if opts.Start != 0 || opts.End != 0 {
		var err error
		if src, err = tl.Slice(opts.Start, opts.End); err != nil {
			return "", err
		}
		if opts.Tempos != nil {
			opts.Tempos = shiftTempos(opts.Tempos, opts.Start, opts.End)
		}
	}
	mopts := mml.Options{Tempos: opts.Tempos, TrailingTempo: opts.TrailingTempo}

	gen1, err := mml.Serialize(src, mopts)
	if err != nil {
		return "", err
	}
	if opts.Generation <= Gen1 {
		return gen1, nil
	}

	if mopts.Tempos == nil {
		mopts.Tempos = src.Tempos()
	}
	mopts.Tempos = dedupTempos(mopts.Tempos)
	items, err := mml.Walk(src, mopts)
	if err != nil {
		return "", err
	}
	w, err := newWriter(duration.NewEncoder(src.Table()), items)
	if err != nil {
		return "", err
	}

	best := shortest(gen1, w.render(w.fixedLength()), w.render(w.greedyLengths()))
	if opts.Generation == Gen2 {
		return best, nil
	}
	return shortest(best, w.render(w.optimalLengths())), nil
}

func shortest(texts ...string) string {
	best := texts[0]
	for _, t := range texts[1:] {
		if len(t) < len(best) {
			best = t
		}
	}
	return best
}

// dedupTempos drops tempos equal to the one before them.
func dedupTempos(tempos []model.TempoEvent) []model.TempoEvent {
	out := []model.TempoEvent{}
	for _, te := range tempos {
		if n := len(out); n > 0 && out[n-1].Tempo == te.Tempo {
			continue
		}
		out = append(out, te)
	}
	return out
}

func shiftTempos(tempos []model.TempoEvent, start, end int) []model.TempoEvent {
	out := []model.TempoEvent{}
	for _, te := range tempos {
		if te.TickOffset < start || (end > 0 && te.TickOffset >= end) {
			continue
		}
		te.TickOffset -= start
		out = append(out, te)
	}
	return out
}

// part is a note or rest item with its candidate spellings.
type part struct {
	item       mml.Item
	candidates [][]string
}

type writer struct {
	table *ticktable.Table
	items []mml.Item
	// parts[i] is set for note and rest items.
	parts []*part
}

// choice is the default length in force for a part, whether an l command
// is written before it, and which spelling it uses.
type choice struct {
	length    string
	switched  bool
	candidate int
}

func newWriter(enc *duration.Encoder, items []mml.Item) (*writer, error) {
	w := &writer{table: enc.Table(), items: items, parts: make([]*part, len(items))}
	for i, it := range items {
		if it.Kind != mml.ItemNote && it.Kind != mml.ItemRest {
			continue
		}
		p := &part{item: it}
		if it.Tuning != model.TuningNone {
			tokens, err := mml.PartTokens(enc, it)
			if err != nil {
				return nil, err
			}
			p.candidates = [][]string{tokens}
		} else {
			c, err := enc.Candidates(it.Tick)
			if err != nil {
				return nil, err
			}
			p.candidates = c
		}
		w.parts[i] = p
	}
	return w, nil
}

func partCost(p *part, candidate int, length string) int {
	tokens := p.candidates[candidate]
	n := 0
	if p.item.Tie {
		n++
	}
	for i, t := range tokens {
		if i > 0 && p.item.Joined {
			n++
		}
		n += len(p.item.Name) + len(mml.Suffix(t, length))
	}
	return n
}

func switchCost(length string) int {
	return 1 + len(length)
}

// fixedLength keeps the implicit l4 for the whole text.
func (w *writer) fixedLength() []choice {
	out := make([]choice, len(w.items))
	for i := range out {
		out[i].length = constants.DefaultLength
	}
	return out
}

// greedyLengths switches to a part's leading length whenever the parts
// that follow repay the l command before a part prefers the old length.
func (w *writer) greedyLengths() []choice {
	out := make([]choice, len(w.items))
	current := constants.DefaultLength
	for i := range w.items {
		out[i].length = current
		p := w.parts[i]
		if p == nil || p.item.Tie {
			continue
		}
		next := strings.TrimRight(p.candidates[0][0], ".")
		if next == current || !w.validLength(next) {
			continue
		}
		gain := 0
		for j := i; j < len(w.items); j++ {
			q := w.parts[j]
			if q == nil {
				continue
			}
			d := partCost(q, 0, current) - partCost(q, 0, next)
			if d < 0 {
				break
			}
			gain += d
		}
		if gain > switchCost(next) {
			current = next
			out[i] = choice{length: next, switched: true}
		}
	}
	return out
}

// validLength accepts undotted table tokens as l arguments.
func (w *writer) validLength(s string) bool {
	return s != "" && !strings.Contains(s, ".") && w.table.Has(s)
}

func (w *writer) render(choices []choice) string {
	var sb strings.Builder
	octave := constants.DefaultOctave
	for i, it := range w.items {
		switch it.Kind {
		case mml.ItemNote, mml.ItemRest:
			c := choices[i]
			if c.switched {
				sb.WriteString("l" + c.length)
			}
			mml.WritePart(&sb, it, w.parts[i].candidates[c.candidate], c.length)
		case mml.ItemOctave:
			sb.WriteString(mml.OctaveShift(octave, it.Value, true))
			octave = it.Value
		case mml.ItemVelocity:
			sb.WriteString("v" + strconv.Itoa(it.Value))
		case mml.ItemTempo:
			sb.WriteString("t" + strconv.Itoa(it.Value))
		}
	}
	return sb.String()
}
