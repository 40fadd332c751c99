package model

import (
	"fmt"
	"strconv"

	"github.com/jsphweid/mmlcore/constants"
)

// Rest is the Note value of a silent interval. -1 is a playable pitch (o0c-),
// so rests use a value no pitch can reach.
const Rest = -128

type TuningBase int

const (
	TuningNone TuningBase = 0
	Tuning16   TuningBase = 16
	Tuning32   TuningBase = 32
	Tuning64   TuningBase = 64
)

func (b TuningBase) Token() string {
	return strconv.Itoa(int(b))
}

func TuningBaseOf(token string) TuningBase {
	switch token {
	case "16":
		return Tuning16
	case "32":
		return Tuning32
	case "64":
		return Tuning64
	}
	return TuningNone
}

type NoteEvent struct {
	Note       int
	TickOffset int
	Tick       int
	Velocity   int

	// set when the note was written as a run of identical short tokens
	TuningBase TuningBase
}

func NewNoteEvent(note, tick, tickOffset int) NoteEvent {
	return NoteEvent{
		Note:       note,
		Tick:       tick,
		TickOffset: tickOffset,
		Velocity:   constants.DefaultVelocity,
	}
}

func NewNoteEventWithVelocity(note, tick, tickOffset, velocity int) NoteEvent {
	e := NewNoteEvent(note, tick, tickOffset)
	e.Velocity = velocity
	return e
}

func NewRest(tick, tickOffset int) NoteEvent {
	return NoteEvent{Note: Rest, Tick: tick, TickOffset: tickOffset}
}

func (e NoteEvent) EndTick() int {
	return e.TickOffset + e.Tick
}

func (e NoteEvent) IsRest() bool {
	return e.Note == Rest
}

// Contains reports whether tick falls in [TickOffset, EndTick).
func (e NoteEvent) Contains(tick int) bool {
	return tick >= e.TickOffset && tick < e.EndTick()
}

func (e NoteEvent) String() string {
	if e.IsRest() {
		return fmt.Sprintf("[r %d %d]", e.Tick, e.TickOffset)
	}
	return fmt.Sprintf("[%d %d %d %d]", e.Note, e.Tick, e.TickOffset, e.Velocity)
}
