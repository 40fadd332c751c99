package timeline

import (
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
)

// Build creates a timeline from events that are already contiguous and
// ordered from tick 0, as a sequential parser produces them.
func Build(table *ticktable.Table, events []model.NoteEvent, tempos []model.TempoEvent) (*Timeline, error) {
	t := New(table)
	pos := 0
	for _, e := range events {
		if e.TickOffset != pos || e.Tick <= 0 {
			return nil, errors.Wrapf(model.ErrInvalidRange, "event %s at %d", e, pos)
		}
		pos = e.EndTick()
	}
	t.events = append([]model.NoteEvent(nil), events...)
	t.normalize()
	for _, te := range tempos {
		t.addTempo(te)
	}
	return t, nil
}

// Slice returns a new timeline holding [start, end) of t moved to tick 0.
// An end of 0 or past the total length means the rest of the timeline,
// including tempos placed after the last event.
func (t *Timeline) Slice(start, end int) (*Timeline, error) {
	total := t.TotalTickLength()
	if end <= 0 || end > total {
		end = total
	}
	if start < 0 || (start >= end && total > 0) {
		return nil, errors.Wrapf(model.ErrInvalidRange, "[%d, %d)", start, end)
	}
	s := New(t.table)
	if total == 0 {
		s.tempos = append([]model.TempoEvent(nil), t.tempos...)
		return s, nil
	}
	work := t.Clone()
	from := work.splitAt(start)
	to := work.splitAt(end)
	for _, e := range work.events[from:to] {
		e.TickOffset -= start
		s.events = append(s.events, e)
	}
	for _, te := range t.tempos {
		if te.TickOffset >= start && (te.TickOffset < end || end == total) {
			te.TickOffset -= start
			s.tempos = append(s.tempos, te)
		}
	}
	return s, nil
}
