package model

type TempoEvent struct {
	TickOffset int `json:"tick_offset"`
	Tempo      int `json:"tempo"`
}

type Marker struct {
	Name       string `json:"name"`
	TickOffset int    `json:"tick_offset"`
}

type VelocityEvent struct {
	TickOffset int `json:"tick_offset"`
	Velocity   int `json:"velocity"`
}

// Triple is what importers hand to a Timeline: one note or rest interval.
type Triple struct {
	Note       int `json:"note"`
	TickOffset int `json:"tick_offset"`
	Tick       int `json:"tick"`
	Velocity   int `json:"velocity"`
}

func (t Triple) NoteEvent() NoteEvent {
	return NoteEvent{Note: t.Note, TickOffset: t.TickOffset, Tick: t.Tick, Velocity: t.Velocity}
}
