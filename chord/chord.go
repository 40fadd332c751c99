// Package chord reads the sounding pitches of a score over time.
package chord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/util"
)

// Chord is the set of pitches sounding from Offset until the next chord.
// Voices counts parts, so a pitch doubled in two parts counts twice.
type Chord struct {
	Offset int   `json:"offset"`
	Notes  []int `json:"notes"`
	Voices int   `json:"voices"`
}

func (c Chord) Key() string {
	return CreateChordKey(c.Notes)
}

func CreateChordKey(notes []int) string {
	sorted := append([]int(nil), notes...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = fmt.Sprintf("%v", n)
	}
	return strings.Join(parts, "-")
}

type reducedEvent struct {
	offset    int
	isNoteOff bool
	note      int
}

func getChord(offset int, pressed map[int]int) Chord {
	c := Chord{Offset: offset, Notes: util.SortedKeys(pressed)}
	for _, n := range pressed {
		c.Voices += n
	}
	return c
}

// GetChords sweeps every audible note of s and returns one chord per tick
// where the sounding set changes. Silent stretches are skipped.
func GetChords(s *score.Score) []Chord {
	var reducedEvents []reducedEvent
	for _, t := range s.Tracks() {
		for _, p := range t.Parts {
			for _, n := range p.AudibleNotes() {
				reducedEvents = append(reducedEvents,
					reducedEvent{offset: n.TickOffset, note: n.Note},
					reducedEvent{offset: n.EndTick(), isNoteOff: true, note: n.Note})
			}
		}
	}

	// smaller offsets first, note off before note on
	sort.SliceStable(reducedEvents, func(i, j int) bool {
		if reducedEvents[i].offset != reducedEvents[j].offset {
			return reducedEvents[i].offset < reducedEvents[j].offset
		}
		return reducedEvents[i].isNoteOff && !reducedEvents[j].isNoteOff
	})

	offsetToChord := make(map[int]Chord)
	pressed := make(map[int]int)
	for _, evt := range reducedEvents {
		if evt.isNoteOff {
			if pressed[evt.note]--; pressed[evt.note] <= 0 {
				delete(pressed, evt.note)
			}
		} else {
			pressed[evt.note]++
		}
		offsetToChord[evt.offset] = getChord(evt.offset, pressed)
	}

	var chords []Chord
	for _, offset := range util.SortedKeys(offsetToChord) {
		c := offsetToChord[offset]
		if len(c.Notes) > 0 {
			chords = append(chords, c)
		}
	}
	return chords
}

// ChordAt returns the pitches sounding at tick.
func ChordAt(s *score.Score, tick int) Chord {
	pressed := make(map[int]int)
	for _, parts := range s.NoteListOnTickOffset(tick) {
		for _, n := range parts {
			if n != nil && n.Velocity > 0 {
				pressed[n.Note]++
			}
		}
	}
	return getChord(tick, pressed)
}

// Polyphony returns the largest number of simultaneous voices and the
// first tick where it occurs.
func Polyphony(s *score.Score) (max int, offset int) {
	for _, c := range GetChords(s) {
		if c.Voices > max {
			max, offset = c.Voices, c.Offset
		}
	}
	return max, offset
}

// RankSortChords orders chords by voice count, largest first, then by
// offset.
func RankSortChords(chords []Chord) {
	sort.SliceStable(chords, func(i, j int) bool {
		if chords[i].Voices != chords[j].Voices {
			return chords[i].Voices > chords[j].Voices
		}
		return chords[i].Offset < chords[j].Offset
	})
}
