package score

import (
	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/duration"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/jsphweid/mmlcore/util"
)

// silentPitchOrder is the order pitch classes are tried for a silent note:
// naturals first, then sharps.
var silentPitchOrder = []int{0, 2, 4, 5, 7, 9, 11, 1, 3, 6, 8, 10}

// assignTempos hands each tempo to the first of melody, chord1 and chord2
// that still has a note after it, or to the first part with notes when none
// does. The song part gets every tempo.
func (t *Track) assignTempos(tempos []model.TempoEvent) [PartCount][]model.TempoEvent {
	var out [PartCount][]model.TempoEvent
	for i := range out {
		out[i] = []model.TempoEvent{}
	}
	for _, te := range tempos {
		carrier := -1
		for _, i := range []int{Melody, Chord1, Chord2} {
			end := t.Parts[i].LastNoteEndTick()
			if end > te.TickOffset {
				carrier = i
				break
			}
			if carrier < 0 && end > 0 {
				carrier = i
			}
		}
		if carrier < 0 {
			carrier = Melody
		}
		out[carrier] = append(out[carrier], te)
		out[Song] = append(out[Song], te)
	}
	return out
}

// silenceRestsBeforeTempos returns a fork of part j where the rest ending at
// each tempo is replaced, over its last duration token, by a velocity 0
// note. The pitch is one no note of the track sounds over that span. It
// returns nil when nothing changes.
func (t *Track) silenceRestsBeforeTempos(j int, tempos []model.TempoEvent) (*timeline.Timeline, error) {
	p := t.Parts[j]
	enc := duration.NewEncoder(p.Table())
	var fork *timeline.Timeline
	for _, te := range tempos {
		tick := te.TickOffset
		if tick <= 0 || tick >= p.LastNoteEndTick() {
			continue
		}
		src := p
		if fork != nil {
			src = fork
		}
		rest, err := src.SearchOnTickOffset(tick - 1)
		if err != nil || !rest.IsRest() {
			continue
		}
		tokens, err := enc.Tokens(tick - rest.TickOffset)
		if err != nil {
			continue
		}
		length, err := p.Table().Lookup(tokens[len(tokens)-1])
		if err != nil {
			continue
		}
		start := tick - length
		note, ok := t.freePitch(src, start, tick)
		if !ok {
			continue
		}
		if fork == nil {
			fork = p.Fork()
		}
		if err := fork.Insert(model.NewNoteEventWithVelocity(note, length, start, 0)); err != nil {
			return nil, err
		}
	}
	return fork, nil
}

// freePitch picks a pitch in the octave of the last note before start whose
// class no note of the track touches within [start, end].
func (t *Track) freePitch(part *timeline.Timeline, start, end int) (int, bool) {
	octave := constants.DefaultOctave
	if prev, ok := part.SearchPrevNoteOnTickOffset(start); ok && prev.Note >= 0 {
		octave = util.Clamp(prev.Note/12, constants.MinOctave, constants.MaxOctave)
	}
	used := make(map[int]bool)
	for _, p := range t.Parts {
		for _, n := range p.Notes() {
			if n.TickOffset <= end && n.EndTick() > start {
				used[((n.Note%12)+12)%12] = true
			}
		}
	}
	for _, class := range silentPitchOrder {
		if !used[class] {
			return octave*12 + class, true
		}
	}
	return 0, false
}
