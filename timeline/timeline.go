// Package timeline holds the contiguous note/rest sequence of one MML part.
//
// Events always cover [0, TotalTickLength()) without gaps or overlaps, and
// adjacent rests are merged. A Timeline is not safe for concurrent use;
// callers serialize writers themselves.
package timeline

import (
	"sort"

	"github.com/google/uuid"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
)

type Timeline struct {
	id       uuid.UUID
	revision uint64
	table    *ticktable.Table
	events   []model.NoteEvent
	tempos   []model.TempoEvent
	// snapshot is set on clones until their first edit
	snapshot bool
}

func New(table *ticktable.Table) *Timeline {
	return &Timeline{id: uuid.New(), table: table}
}

func (t *Timeline) ID() uuid.UUID {
	return t.id
}

// Revision is bumped by every mutation. Caches key on (ID, Revision).
func (t *Timeline) Revision() uint64 {
	return t.revision
}

func (t *Timeline) Table() *ticktable.Table {
	return t.table
}

// touch bumps the revision. The first edit of a clone also gives it a fresh
// ID, so an edited snapshot never shares (ID, revision) with its source.
func (t *Timeline) touch() {
	if t.snapshot {
		t.id = uuid.New()
		t.revision = 0
		t.snapshot = false
	}
	t.revision++
}

// Clone returns a deep snapshot that keeps ID and revision until it is
// edited.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{id: t.id, revision: t.revision, table: t.table, snapshot: true}
	c.events = append([]model.NoteEvent(nil), t.events...)
	c.tempos = append([]model.TempoEvent(nil), t.tempos...)
	return c
}

// Fork returns a deep copy with a fresh identity.
func (t *Timeline) Fork() *Timeline {
	c := t.Clone()
	c.id = uuid.New()
	c.revision = 0
	c.snapshot = false
	return c
}

// Events returns every interval, rests included.
func (t *Timeline) Events() []model.NoteEvent {
	return append([]model.NoteEvent(nil), t.events...)
}

// Notes returns the sounding intervals only.
func (t *Timeline) Notes() []model.NoteEvent {
	var notes []model.NoteEvent
	for _, e := range t.events {
		if !e.IsRest() {
			notes = append(notes, e)
		}
	}
	return notes
}

func (t *Timeline) TotalTickLength() int {
	if len(t.events) == 0 {
		return 0
	}
	return t.events[len(t.events)-1].EndTick()
}

// LastNoteEndTick is where the last sounding note ends; trailing rests do
// not count.
func (t *Timeline) LastNoteEndTick() int {
	for i := len(t.events) - 1; i >= 0; i-- {
		if !t.events[i].IsRest() {
			return t.events[i].EndTick()
		}
	}
	return 0
}

// AudibleNotes returns the sounding intervals with a non-zero velocity.
func (t *Timeline) AudibleNotes() []model.NoteEvent {
	var notes []model.NoteEvent
	for _, e := range t.events {
		if !e.IsRest() && e.Velocity > 0 {
			notes = append(notes, e)
		}
	}
	return notes
}

// Equal compares pitch, offset and length of the audible notes. Silent
// notes are left out since the serializer may split them without ties.
func (t *Timeline) Equal(o *Timeline) bool {
	a, b := t.AudibleNotes(), o.AudibleNotes()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Note != b[i].Note || a[i].TickOffset != b[i].TickOffset || a[i].Tick != b[i].Tick {
			return false
		}
	}
	return true
}

// indexAt returns the index of the event containing tick, or len(events).
func (t *Timeline) indexAt(tick int) int {
	return sort.Search(len(t.events), func(i int) bool {
		return t.events[i].EndTick() > tick
	})
}

// padTo appends a rest so the timeline reaches tick.
func (t *Timeline) padTo(tick int) {
	total := t.TotalTickLength()
	if tick > total {
		t.events = append(t.events, model.NewRest(tick-total, total))
	}
}

// splitAt makes tick an event boundary and returns the index of the event
// starting there (len(events) when tick is the end).
func (t *Timeline) splitAt(tick int) int {
	i := t.indexAt(tick)
	if i == len(t.events) || t.events[i].TickOffset == tick {
		return i
	}
	head := t.events[i]
	tail := head
	head.Tick = tick - head.TickOffset
	tail.TickOffset = tick
	tail.Tick -= head.Tick
	t.events = append(t.events, model.NoteEvent{})
	copy(t.events[i+2:], t.events[i+1:])
	t.events[i] = head
	t.events[i+1] = tail
	return i + 1
}

// replace swaps events[from:to] for repl.
func (t *Timeline) replace(from, to int, repl ...model.NoteEvent) {
	rest := append([]model.NoteEvent(nil), t.events[to:]...)
	t.events = append(append(t.events[:from], repl...), rest...)
}

// normalize merges adjacent rests and drops empty intervals.
func (t *Timeline) normalize() {
	out := t.events[:0]
	for _, e := range t.events {
		if e.Tick <= 0 {
			continue
		}
		if n := len(out); n > 0 && e.IsRest() && out[n-1].IsRest() {
			out[n-1].Tick += e.Tick
			continue
		}
		out = append(out, e)
	}
	t.events = out
}

// Insert writes e over the timeline. Events it fully covers are removed and
// partially covered ones are cut at its edges. A trailing remainder shorter
// than the table minimum is absorbed into e.
func (t *Timeline) Insert(e model.NoteEvent) error {
	if e.Tick <= 0 || e.TickOffset < 0 {
		return errors.Wrapf(model.ErrInvalidRange, "insert %s", e)
	}
	if e.IsRest() {
		e.Velocity = 0
		e.TuningBase = model.TuningNone
	}
	start, end := e.TickOffset, e.EndTick()
	t.padTo(start)

	if i := t.indexAt(end); i < len(t.events) && t.events[i].TickOffset < end {
		if remainder := t.events[i].EndTick() - end; remainder < t.table.MinimumTick() {
			end += remainder
			e.Tick += remainder
		}
	}

	from := t.splitAt(start)
	to := t.splitAt(end)
	t.replace(from, to, e)
	t.normalize()
	t.touch()
	return nil
}

// InsertTriples inserts every triple or none of them.
func (t *Timeline) InsertTriples(triples []model.Triple) error {
	work := t.Clone()
	for _, tr := range triples {
		if err := work.Insert(tr.NoteEvent()); err != nil {
			return errors.Wrap(model.ErrParse, err.Error())
		}
	}
	t.events = work.events
	t.touch()
	return nil
}

// DeleteMinRest removes rests shorter than the table minimum. A short rest
// after a note is absorbed into it, unless the note is long enough to give
// up ticks so the rest reaches the minimum. A leading short rest is merged
// into the following note.
func (t *Timeline) DeleteMinRest() {
	min := t.table.MinimumTick()
	changed := false
	for i := 0; i < len(t.events); i++ {
		r := t.events[i]
		if !r.IsRest() || r.Tick >= min {
			continue
		}
		changed = true
		if i > 0 {
			p := &t.events[i-1]
			total := p.Tick + r.Tick
			if total-min >= min {
				p.Tick = total - min
				t.events[i].TickOffset = p.EndTick()
				t.events[i].Tick = min
				continue
			}
			p.Tick = total
		} else if i+1 < len(t.events) {
			t.events[i+1].TickOffset = 0
			t.events[i+1].Tick += r.Tick
		}
		t.replace(i, i+1)
		i--
	}
	if changed {
		t.normalize()
		t.touch()
	}
}

// InsertTick opens n ticks of rest at tick, shifting later events and tempos.
func (t *Timeline) InsertTick(tick, n int) {
	if n <= 0 || tick < 0 || tick > t.TotalTickLength() {
		return
	}
	i := t.splitAt(tick)
	for j := i; j < len(t.events); j++ {
		t.events[j].TickOffset += n
	}
	t.replace(i, i, model.NewRest(n, tick))
	for j := range t.tempos {
		if t.tempos[j].TickOffset >= tick {
			t.tempos[j].TickOffset += n
		}
	}
	t.normalize()
	t.touch()
}

func (t *Timeline) SearchOnTickOffset(tick int) (model.NoteEvent, error) {
	if tick < 0 || tick >= t.TotalTickLength() {
		return model.NoteEvent{}, errors.Wrapf(model.ErrOutOfRange, "%d", tick)
	}
	return t.events[t.indexAt(tick)], nil
}

// SearchPrevNoteOnTickOffset returns the last sounding note starting before
// tick.
func (t *Timeline) SearchPrevNoteOnTickOffset(tick int) (model.NoteEvent, bool) {
	i := sort.Search(len(t.events), func(i int) bool {
		return t.events[i].TickOffset >= tick
	})
	for i--; i >= 0; i-- {
		if !t.events[i].IsRest() {
			return t.events[i], true
		}
	}
	return model.NoteEvent{}, false
}

// IsOverlapNote reports whether e intersects any sounding note.
func (t *Timeline) IsOverlapNote(e model.NoteEvent) bool {
	for _, n := range t.events {
		if n.IsRest() {
			continue
		}
		if n.TickOffset < e.EndTick() && e.TickOffset < n.EndTick() {
			return true
		}
	}
	return false
}
