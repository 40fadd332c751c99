package mml

import (
	"sort"

	"github.com/jsphweid/mmlcore/ticktable"
)

// TextIndex maps tick offsets to character spans of the text they were
// parsed from, and back.
type TextIndex struct {
	length int
	total  int
	notes  []span
}

func NewTextIndex(table *ticktable.Table, text string) (*TextIndex, error) {
	p := newParser(table, text)
	if err := p.run(); err != nil {
		return nil, err
	}
	x := &TextIndex{length: len(text), total: p.tick}
	for _, s := range p.spans {
		if !s.event.IsRest() {
			x.notes = append(x.notes, s)
		}
	}
	return x, nil
}

// Span returns the [start, end) character range covering tick. A note
// covers its letter through its last tied part; a rest covers everything
// between the surrounding notes, commands included. Ticks past the end map
// to an empty span at the end of the text.
func (x *TextIndex) Span(tick int) (int, int) {
	if tick >= x.total {
		return x.length, x.length
	}
	i := sort.Search(len(x.notes), func(i int) bool {
		return x.notes[i].event.EndTick() > tick
	})
	if i < len(x.notes) && x.notes[i].event.TickOffset <= tick {
		return x.notes[i].start, x.notes[i].end
	}
	start, end := 0, x.length
	if i > 0 {
		start = x.notes[i-1].end
	}
	if i < len(x.notes) {
		end = x.notes[i].start
	}
	return start, end
}

// TickAt returns the tick where the token at character index begins.
func (x *TextIndex) TickAt(index int) int {
	if index >= x.length {
		return x.total
	}
	i := sort.Search(len(x.notes), func(i int) bool {
		return x.notes[i].end > index
	})
	if i < len(x.notes) && x.notes[i].start <= index {
		return x.notes[i].event.TickOffset
	}
	if i > 0 {
		return x.notes[i-1].event.EndTick()
	}
	return 0
}
