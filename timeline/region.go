package timeline

import (
	"github.com/jsphweid/mmlcore/model"
	"github.com/pkg/errors"
)

// GetAlignmentStartTick moves tick back to the start of any sounding note,
// in t or other, that tick falls strictly inside. It repeats until tick
// sits on a boundary of both timelines.
func (t *Timeline) GetAlignmentStartTick(other *Timeline, tick int) int {
	for {
		moved := false
		for _, tl := range []*Timeline{t, other} {
			for _, n := range tl.events {
				if !n.IsRest() && n.TickOffset < tick && tick < n.EndTick() {
					tick = n.TickOffset
					moved = true
				}
			}
		}
		if !moved {
			return tick
		}
	}
}

// GetAlignmentEndTick is the forward counterpart of GetAlignmentStartTick.
func (t *Timeline) GetAlignmentEndTick(other *Timeline, tick int) int {
	for {
		moved := false
		for _, tl := range []*Timeline{t, other} {
			for _, n := range tl.events {
				if !n.IsRest() && n.TickOffset < tick && tick < n.EndTick() {
					tick = n.EndTick()
					moved = true
				}
			}
		}
		if !moved {
			return tick
		}
	}
}

func checkRange(start, end int) error {
	if start < 0 || end <= start {
		return errors.Wrapf(model.ErrInvalidRange, "[%d, %d)", start, end)
	}
	return nil
}

// cut splits t at both edges and returns copies of the events in
// [start, end). A timeline shorter than end is padded with rest first.
func (t *Timeline) cut(start, end int) (from, to int, region []model.NoteEvent) {
	t.padTo(end)
	from = t.splitAt(start)
	to = t.splitAt(end)
	region = append([]model.NoteEvent(nil), t.events[from:to]...)
	return from, to, region
}

func (t *Timeline) fill(start, end int, region []model.NoteEvent) {
	from, to, _ := t.cut(start, end)
	if region == nil {
		region = []model.NoteEvent{model.NewRest(end-start, start)}
	}
	t.replace(from, to, region...)
	t.normalize()
	t.touch()
}

// Swap exchanges [start, end) between t and other.
func (t *Timeline) Swap(other *Timeline, start, end int) error {
	if err := checkRange(start, end); err != nil {
		return err
	}
	_, _, mine := t.cut(start, end)
	_, _, theirs := other.cut(start, end)
	t.fill(start, end, theirs)
	other.fill(start, end, mine)
	return nil
}

// Move transfers [start, end) from t to other and leaves rest behind.
func (t *Timeline) Move(other *Timeline, start, end int) error {
	if err := checkRange(start, end); err != nil {
		return err
	}
	_, _, mine := t.cut(start, end)
	other.fill(start, end, mine)
	t.fill(start, end, nil)
	return nil
}

// Copy duplicates [start, end) of t into other.
func (t *Timeline) Copy(other *Timeline, start, end int) error {
	if err := checkRange(start, end); err != nil {
		return err
	}
	_, _, mine := t.Clone().cut(start, end)
	other.fill(start, end, mine)
	return nil
}
