package mml

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/duration"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/jsphweid/mmlcore/util"
	"github.com/pkg/errors"
)

type ItemKind int

const (
	ItemNote ItemKind = iota
	ItemRest
	ItemOctave
	ItemVelocity
	ItemTempo
)

// Item is one step of the serializer walk. Note and rest items carry a tick
// length whose spelling is left to the writer; the rest carry a value.
type Item struct {
	Kind ItemKind
	Name string
	Tick int
	// Tie joins this part to the previous part of the same note.
	Tie bool
	// Joined ties the tokens inside this part. False for rests and
	// silent notes.
	Joined bool
	Tuning model.TuningBase
	Value  int
}

type Options struct {
	// Tempos replaces the timeline's own tempo list when not nil.
	Tempos []model.TempoEvent
	// TrailingTempo keeps tempos placed after the last note, padding with
	// rests to reach them.
	TrailingTempo bool
}

var noteNames = [12]string{"c", "c+", "d", "d+", "e", "f", "f+", "g", "g+", "a", "a+", "b"}

// PitchName splits a note number into octave and spelled name.
func PitchName(note int) (int, string, error) {
	switch {
	case note == -1:
		return constants.MinOctave, "c-", nil
	case note == (constants.MaxOctave+1)*12:
		return constants.MaxOctave, "b+", nil
	case note < 0 || note > (constants.MaxOctave+1)*12:
		return 0, "", errors.Wrapf(model.ErrOutOfRange, "note %d", note)
	}
	return note / 12, noteNames[note%12], nil
}

// Walk turns a timeline into items. Trailing rests are dropped; tempos
// inside a note or rest split it at the tempo tick.
func Walk(tl *timeline.Timeline, opts Options) ([]Item, error) {
	tempos := opts.Tempos
	if tempos == nil {
		tempos = tl.Tempos()
	}
	tempos = append([]model.TempoEvent(nil), tempos...)
	sort.SliceStable(tempos, func(i, j int) bool {
		return tempos[i].TickOffset < tempos[j].TickOffset
	})

	var items []Item
	octave := constants.DefaultOctave
	velocity := constants.DefaultVelocity
	end := tl.LastNoteEndTick()
	ti := 0

	for _, e := range tl.Events() {
		if e.TickOffset >= end {
			break
		}
		for ti < len(tempos) && tempos[ti].TickOffset <= e.TickOffset {
			items = append(items, Item{Kind: ItemTempo, Value: tempos[ti].Tempo})
			ti++
		}

		part := Item{Kind: ItemRest, Name: "r"}
		if !e.IsRest() {
			oct, name, err := PitchName(e.Note)
			if err != nil {
				return nil, err
			}
			if oct != octave {
				items = append(items, Item{Kind: ItemOctave, Value: oct})
				octave = oct
			}
			if e.Velocity != velocity {
				items = append(items, Item{Kind: ItemVelocity, Value: e.Velocity})
				velocity = e.Velocity
			}
			part = Item{Kind: ItemNote, Name: name, Joined: e.Velocity > 0, Tuning: e.TuningBase}
		}

		pos := e.TickOffset
		for {
			cut := e.EndTick()
			if ti < len(tempos) && tempos[ti].TickOffset < cut {
				cut = tempos[ti].TickOffset
			}
			p := part
			p.Tick = cut - pos
			p.Tie = pos > e.TickOffset && part.Joined
			items = append(items, p)
			pos = cut
			if pos == e.EndTick() {
				break
			}
			items = append(items, Item{Kind: ItemTempo, Value: tempos[ti].Tempo})
			ti++
		}
	}

	if opts.TrailingTempo {
		pos := end
		for ; ti < len(tempos); ti++ {
			if gap := tempos[ti].TickOffset - pos; gap > 0 {
				items = append(items, Item{Kind: ItemRest, Name: "r", Tick: gap})
				pos = tempos[ti].TickOffset
			}
			items = append(items, Item{Kind: ItemTempo, Value: tempos[ti].Tempo})
		}
	}
	return items, nil
}

// PartTokens spells the tick length of a note or rest item.
func PartTokens(enc *duration.Encoder, it Item) ([]string, error) {
	if it.Tuning != model.TuningNone {
		return enc.TokensByTuningBase(it.Tick, it.Tuning)
	}
	return enc.Tokens(it.Tick)
}

// OctaveShift spells a move between octaves, relative or absolute.
func OctaveShift(from, to int, absolute bool) string {
	rel := strings.Repeat(">", util.Max(to-from, 0)) + strings.Repeat("<", util.Max(from-to, 0))
	abs := "o" + strconv.Itoa(to)
	if absolute && len(abs) < len(rel) {
		return abs
	}
	return rel
}

// Suffix drops a token that equals the default length, and shortens its
// dotted form to ".".
func Suffix(token, length string) string {
	switch token {
	case length:
		return ""
	case length + ".":
		return "."
	}
	return token
}

// WritePart appends a spelled note or rest part to sb.
func WritePart(sb *strings.Builder, it Item, tokens []string, length string) {
	if it.Tie {
		sb.WriteByte('&')
	}
	for i, t := range tokens {
		if i > 0 && it.Joined {
			sb.WriteByte('&')
		}
		sb.WriteString(it.Name)
		sb.WriteString(Suffix(t, length))
	}
}

// Serialize writes tl with explicit durations, relative octave shifts and
// every tempo. It returns no text if any length cannot be encoded.
func Serialize(tl *timeline.Timeline, opts Options) (string, error) {
	items, err := Walk(tl, opts)
	if err != nil {
		return "", err
	}
	enc := duration.NewEncoder(tl.Table())
	var sb strings.Builder
	octave := constants.DefaultOctave
	for _, it := range items {
		switch it.Kind {
		case ItemNote, ItemRest:
			tokens, err := PartTokens(enc, it)
			if err != nil {
				return "", err
			}
			WritePart(&sb, it, tokens, "")
		case ItemOctave:
			sb.WriteString(OctaveShift(octave, it.Value, false))
			octave = it.Value
		case ItemVelocity:
			sb.WriteString("v" + strconv.Itoa(it.Value))
		case ItemTempo:
			sb.WriteString("t" + strconv.Itoa(it.Value))
		}
	}
	return sb.String(), nil
}
