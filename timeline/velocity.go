package timeline

import (
	"sort"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/model"
	"github.com/pkg/errors"
)

func (t *Timeline) Tempos() []model.TempoEvent {
	return append([]model.TempoEvent(nil), t.tempos...)
}

func (t *Timeline) SetTempos(tempos []model.TempoEvent) {
	t.tempos = nil
	for _, te := range tempos {
		t.addTempo(te)
	}
	t.touch()
}

// AddTempo adds te, replacing any tempo already at the same tick.
func (t *Timeline) AddTempo(te model.TempoEvent) {
	t.addTempo(te)
	t.touch()
}

func (t *Timeline) addTempo(te model.TempoEvent) {
	i := sort.Search(len(t.tempos), func(i int) bool {
		return t.tempos[i].TickOffset >= te.TickOffset
	})
	if i < len(t.tempos) && t.tempos[i].TickOffset == te.TickOffset {
		t.tempos[i] = te
		return
	}
	t.tempos = append(t.tempos, model.TempoEvent{})
	copy(t.tempos[i+1:], t.tempos[i:])
	t.tempos[i] = te
}

// VelocityEvents lists each sounding note whose velocity differs from the
// note before it. The first note is compared against the default velocity.
func (t *Timeline) VelocityEvents() []model.VelocityEvent {
	var out []model.VelocityEvent
	current := constants.DefaultVelocity
	for _, e := range t.events {
		if e.IsRest() || e.Velocity == current {
			continue
		}
		current = e.Velocity
		out = append(out, model.VelocityEvent{TickOffset: e.TickOffset, Velocity: current})
	}
	return out
}

func (t *Timeline) noteIndexAt(tick int) (int, error) {
	i := t.indexAt(tick)
	if tick < 0 || i == len(t.events) || t.events[i].IsRest() {
		return 0, errors.Wrapf(model.ErrOutOfRange, "no note at %d", tick)
	}
	return i, nil
}

// setRun gives velocity v to the note at i and to the following notes that
// share its current velocity.
func (t *Timeline) setRun(i, v int) {
	old := t.events[i].Velocity
	for ; i < len(t.events); i++ {
		if t.events[i].IsRest() {
			continue
		}
		if t.events[i].Velocity != old {
			break
		}
		t.events[i].Velocity = v
	}
	t.touch()
}

// SetVelocityCommand starts a velocity change at the note containing tick.
func (t *Timeline) SetVelocityCommand(tick, velocity int) error {
	if velocity < 0 || velocity > constants.MaxVelocity {
		return errors.Wrapf(model.ErrOutOfRange, "velocity %d", velocity)
	}
	i, err := t.noteIndexAt(tick)
	if err != nil {
		return err
	}
	t.setRun(i, velocity)
	return nil
}

// UnsetVelocityCommand removes the velocity change at the note containing
// tick, so its run continues the previous note's velocity.
func (t *Timeline) UnsetVelocityCommand(tick int) error {
	i, err := t.noteIndexAt(tick)
	if err != nil {
		return err
	}
	prev := constants.DefaultVelocity
	for j := i - 1; j >= 0; j-- {
		if !t.events[j].IsRest() {
			prev = t.events[j].Velocity
			break
		}
	}
	t.setRun(i, prev)
	return nil
}
