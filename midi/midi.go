// Package midi converts between standard MIDI files and scores.
package midi

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/util"
	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// MML octave 4 c is MIDI key 60.
const keyOffset = 12

func ReadMidiFile(filepath string) (*smf.SMF, error) {
	dat, err := os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "reading midi file")
	}
	return Read(bytes.NewReader(dat))
}

// Read parses an SMF. gomidi panics on some malformed files
// (https://github.com/gomidi/midi/issues/20); those become errors.
func Read(r io.Reader) (s *smf.SMF, e error) {
	defer func() {
		if rec := recover(); rec != nil {
			s, e = nil, errors.Errorf("parsing midi file: %v", rec)
		}
	}()
	res, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing midi file")
	}
	return res, nil
}

// Voice identifies one monophonic line of an SMF.
type Voice struct {
	Track, Channel uint8
}

type sounding struct {
	key      uint8
	start    int
	velocity int
}

// converter quantizes SMF ticks to the table's minimum tick at TPQN.
type converter struct {
	resolution int64
	grid       int
}

func (c converter) tick(abs int64) int {
	t := float64(abs) * constants.TPQN / float64(c.resolution)
	return int(math.Round(t/float64(c.grid))) * c.grid
}

// Triples extracts one monophonic line per track and channel. A note-on
// while another note sounds on the same channel ends the earlier note.
func Triples(s *smf.SMF, grid int) (map[Voice][]model.Triple, []model.TempoEvent, error) {
	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok || mt == 0 {
		return nil, nil, errors.Errorf("unsupported time format %v", s.TimeFormat)
	}
	conv := converter{resolution: int64(mt), grid: grid}

	lines := make(map[Voice][]model.Triple)
	var tempos []model.TempoEvent
	for ti, track := range s.Tracks {
		on := make(map[Voice]sounding)
		end := func(v Voice, at int) {
			n, ok := on[v]
			if !ok {
				return
			}
			delete(on, v)
			note := int(n.key) - keyOffset
			if at > n.start && note >= constants.MinNote && note <= constants.MaxNote {
				lines[v] = append(lines[v], model.Triple{
					Note:       note,
					TickOffset: n.start,
					Tick:       at - n.start,
					Velocity:   n.velocity,
				})
			}
		}

		var absTicks int64
		for _, event := range track {
			absTicks += int64(event.Delta)
			at := conv.tick(absTicks)
			var channel, key, velocity uint8
			var bpm float64
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity) && velocity > 0:
				v := Voice{Track: uint8(ti), Channel: channel}
				end(v, at)
				on[v] = sounding{key: key, start: at, velocity: util.Clamp((int(velocity)+7)/8, 0, constants.MaxVelocity)}
			case event.Message.GetNoteOn(&channel, &key, &velocity),
				event.Message.GetNoteOff(&channel, &key, &velocity):
				v := Voice{Track: uint8(ti), Channel: channel}
				if n, ok := on[v]; ok && n.key == key {
					end(v, at)
				}
			case event.Message.GetMetaTempo(&bpm):
				tempos = append(tempos, model.TempoEvent{TickOffset: at, Tempo: int(math.Round(bpm))})
			}
		}
		for v := range on {
			end(v, conv.tick(absTicks))
		}
	}
	sort.SliceStable(tempos, func(i, j int) bool {
		return tempos[i].TickOffset < tempos[j].TickOffset
	})
	return lines, tempos, nil
}

// Import builds a score with one track per track and channel pair, each
// line in the melody part.
func Import(table *ticktable.Table, s *smf.SMF) (*score.Score, error) {
	lines, tempos, err := Triples(s, table.MinimumTick())
	if err != nil {
		return nil, err
	}
	voices := make([]Voice, 0, len(lines))
	for v := range lines {
		voices = append(voices, v)
	}
	sort.Slice(voices, func(i, j int) bool {
		if voices[i].Track != voices[j].Track {
			return voices[i].Track < voices[j].Track
		}
		return voices[i].Channel < voices[j].Channel
	})

	res := score.New(table)
	for _, v := range voices {
		track := score.NewTrack(table, fmt.Sprintf("Track%d-Ch%d", v.Track, v.Channel+1))
		melody := track.Parts[score.Melody]
		if err := melody.InsertTriples(lines[v]); err != nil {
			return nil, errors.Wrapf(err, "track %d channel %d", v.Track, v.Channel)
		}
		melody.DeleteMinRest()
		res.AddTrack(track)
	}
	for _, te := range tempos {
		res.AddTempo(te)
	}
	return res, nil
}

func ImportFile(table *ticktable.Table, path string) (*score.Score, error) {
	s, err := ReadMidiFile(path)
	if err != nil {
		return nil, err
	}
	return Import(table, s)
}

type timedMessage struct {
	tick  int
	order int
	msg   []byte
}

// Export writes s as a format 1 SMF at TPQN resolution. Tempos go to the
// first track and every part with notes becomes its own track.
func Export(s *score.Score, w io.Writer) error {
	out := smf.New()
	out.TimeFormat = smf.MetricTicks(constants.TPQN)

	var conductor []timedMessage
	for _, te := range s.Tempos() {
		conductor = append(conductor, timedMessage{tick: te.TickOffset, msg: smf.MetaTempo(float64(te.Tempo))})
	}
	if err := out.Add(buildTrack(conductor)); err != nil {
		return errors.Wrap(err, "adding tempo track")
	}

	ch := uint8(0)
	for _, t := range s.Tracks() {
		for j, p := range t.Parts {
			notes := p.AudibleNotes()
			if len(notes) == 0 {
				continue
			}
			msgs := []timedMessage{
				{msg: smf.MetaTrackSequenceName(t.Name + " " + score.PartNames[j])},
				{msg: midi.ProgramChange(ch, uint8(util.Clamp(t.Program, 0, 127)))},
			}
			for _, n := range notes {
				key := uint8(util.Clamp(n.Note+keyOffset, 0, 127))
				vel := uint8(util.Clamp(n.Velocity*8, 1, 127))
				msgs = append(msgs,
					timedMessage{tick: n.TickOffset, order: 2, msg: midi.NoteOn(ch, key, vel)},
					timedMessage{tick: n.EndTick(), order: 1, msg: midi.NoteOff(ch, key)})
			}
			if err := out.Add(buildTrack(msgs)); err != nil {
				return errors.Wrapf(err, "adding track %q", t.Name)
			}
			// channel 10 is percussion
			if ch++; ch == 9 {
				ch++
			}
			ch %= 16
		}
	}
	_, err := out.WriteTo(w)
	return errors.Wrap(err, "writing midi file")
}

func buildTrack(msgs []timedMessage) smf.Track {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].tick != msgs[j].tick {
			return msgs[i].tick < msgs[j].tick
		}
		return msgs[i].order < msgs[j].order
	})
	var tr smf.Track
	last := 0
	for _, m := range msgs {
		tr.Add(uint32(m.tick-last), m.msg)
		last = m.tick
	}
	tr.Close(0)
	return tr
}
