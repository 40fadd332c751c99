// Package score groups timelines into tracks of up to four parts and
// writes them in the MML@melody,chord1,chord2,song; format.
package score

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/timeline"
	"github.com/jsphweid/mmlcore/util"
	"github.com/pkg/errors"
)

const (
	Melody = iota
	Chord1
	Chord2
	Song
	PartCount
)

var PartNames = [PartCount]string{"melody", "chord1", "chord2", "song"}

const (
	prefix = "MML@"
	suffix = ";"
)

type Track struct {
	Name        string `json:"name"`
	Program     int    `json:"program"`
	SongProgram int    `json:"song_program"`
	Parts       [PartCount]*timeline.Timeline
}

func NewTrack(table *ticktable.Table, name string) *Track {
	t := &Track{Name: name, SongProgram: -1}
	for i := range t.Parts {
		t.Parts[i] = timeline.New(table)
	}
	return t
}

// ParseTrack reads "MML@a,b,c,d;" text. The prefix and suffix are optional
// and missing parts stay empty. Tempos written inside the parts are kept
// on the part timelines until the track joins a Score.
func ParseTrack(table *ticktable.Table, name, text string) (*Track, error) {
	text = strings.TrimSpace(text)
	if len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix) {
		text = text[len(prefix):]
	}
	text = strings.TrimSuffix(text, suffix)

	fields := strings.Split(text, ",")
	if len(fields) > PartCount {
		return nil, errors.Wrapf(model.ErrParse, "%d parts in track %q", len(fields), name)
	}
	t := NewTrack(table, name)
	for i, f := range fields {
		tl, err := mml.Parse(table, f)
		if err != nil {
			return nil, errors.Wrapf(err, "%s part of track %q", PartNames[i], name)
		}
		t.Parts[i] = tl
	}
	return t, nil
}

func (t *Track) TotalTickLength() int {
	total := 0
	for _, p := range t.Parts {
		total = util.Max(total, p.TotalTickLength())
	}
	return total
}

func (t *Track) IsEmpty() bool {
	for _, p := range t.Parts {
		if len(p.Notes()) > 0 {
			return false
		}
	}
	return true
}

type Score struct {
	Title  string
	Author string
	// TempoCorrection turns the rest before a tempo into a silent note so
	// the tempo lands on a note. New enables it.
	TempoCorrection bool

	table   *ticktable.Table
	tracks  []*Track
	tempos  []model.TempoEvent
	markers []model.Marker
}

func New(table *ticktable.Table) *Score {
	return &Score{table: table, TempoCorrection: true}
}

func (s *Score) Table() *ticktable.Table {
	return s.table
}

// AddTrack moves the tempos found in the track's parts into the global
// tempo list.
func (s *Score) AddTrack(t *Track) {
	for _, p := range t.Parts {
		for _, te := range p.Tempos() {
			s.AddTempo(te)
		}
		p.SetTempos(nil)
	}
	s.tracks = append(s.tracks, t)
}

func (s *Score) Tracks() []*Track {
	return s.tracks
}

func (s *Score) Track(i int) (*Track, error) {
	if i < 0 || i >= len(s.tracks) {
		return nil, errors.Wrapf(model.ErrOutOfRange, "track %d", i)
	}
	return s.tracks[i], nil
}

func (s *Score) RemoveTrack(i int) error {
	if _, err := s.Track(i); err != nil {
		return err
	}
	s.tracks = append(s.tracks[:i], s.tracks[i+1:]...)
	return nil
}

func (s *Score) Tempos() []model.TempoEvent {
	return append([]model.TempoEvent{}, s.tempos...)
}

// AddTempo inserts te in tick order, replacing a tempo at the same tick.
func (s *Score) AddTempo(te model.TempoEvent) {
	i := sort.Search(len(s.tempos), func(i int) bool {
		return s.tempos[i].TickOffset >= te.TickOffset
	})
	if i < len(s.tempos) && s.tempos[i].TickOffset == te.TickOffset {
		s.tempos[i] = te
		return
	}
	s.tempos = append(s.tempos, model.TempoEvent{})
	copy(s.tempos[i+1:], s.tempos[i:])
	s.tempos[i] = te
}

func (s *Score) Markers() []model.Marker {
	return append([]model.Marker(nil), s.markers...)
}

func (s *Score) AddMarker(m model.Marker) {
	s.markers = append(s.markers, m)
	sort.SliceStable(s.markers, func(i, j int) bool {
		return s.markers[i].TickOffset < s.markers[j].TickOffset
	})
}

// TotalTickLength is the end of the longest part.
func (s *Score) TotalTickLength() int {
	total := 0
	for _, t := range s.tracks {
		total = util.Max(total, t.TotalTickLength())
	}
	return total
}

// TotalTickLengthWithAll also counts markers and tempo events.
func (s *Score) TotalTickLengthWithAll() int {
	total := s.TotalTickLength()
	for _, m := range s.markers {
		total = util.Max(total, m.TickOffset)
	}
	for _, te := range s.tempos {
		total = util.Max(total, te.TickOffset)
	}
	return total
}

// NoteListOnTickOffset returns, per track, the note sounding at tick in
// each part, or nil where the part is silent.
func (s *Score) NoteListOnTickOffset(tick int) [][PartCount]*model.NoteEvent {
	out := make([][PartCount]*model.NoteEvent, len(s.tracks))
	for i, t := range s.tracks {
		for j, p := range t.Parts {
			e, err := p.SearchOnTickOffset(tick)
			if err != nil || e.IsRest() {
				continue
			}
			out[i][j] = &e
		}
	}
	return out
}

// InsertTick shifts every part, tempo and marker at or after tick.
func (s *Score) InsertTick(tick, n int) {
	for _, t := range s.tracks {
		for _, p := range t.Parts {
			if p.TotalTickLength() > tick {
				p.InsertTick(tick, n)
			}
		}
	}
	for i := range s.tempos {
		if s.tempos[i].TickOffset >= tick {
			s.tempos[i].TickOffset += n
		}
	}
	for i := range s.markers {
		if s.markers[i].TickOffset >= tick {
			s.markers[i].TickOffset += n
		}
	}
}

// Optimizer is the part of optimizer.Cache that TrackMML needs.
type Optimizer interface {
	Optimize(tl *timeline.Timeline, opts optimizer.Options) (string, error)
}

type direct struct{}

func (direct) Optimize(tl *timeline.Timeline, opts optimizer.Options) (string, error) {
	return optimizer.Optimize(tl, opts)
}

// TrackMML writes track i with the global tempos embedded into its tempo
// carrying parts. Tempos after a part's last note are dropped. A nil opt
// serializes without caching.
func (s *Score) TrackMML(i int, gen optimizer.Generation, opt Optimizer) (string, error) {
	t, err := s.Track(i)
	if err != nil {
		return "", err
	}
	if opt == nil {
		opt = direct{}
	}
	tempos := t.assignTempos(s.tempos)
	var texts [PartCount]string
	for j, p := range t.Parts {
		if len(p.Notes()) == 0 {
			continue
		}
		opts := optimizer.Options{Generation: gen, Tempos: tempos[j]}
		o := opt
		if s.TempoCorrection {
			corrected, err := t.silenceRestsBeforeTempos(j, tempos[j])
			if err != nil {
				return "", errors.Wrapf(err, "%s part of track %q", PartNames[j], t.Name)
			}
			if corrected != nil {
				// corrected parts are one-off forks
				p, o = corrected, direct{}
			}
		}
		texts[j], err = o.Optimize(p, opts)
		if err != nil {
			return "", errors.Wrapf(err, "%s part of track %q", PartNames[j], t.Name)
		}
	}
	body := strings.Join(texts[:Song], ",")
	if texts[Song] != "" {
		body += "," + texts[Song]
	}
	return prefix + body + suffix, nil
}

// MML writes every track.
func (s *Score) MML(gen optimizer.Generation, opt Optimizer) ([]string, error) {
	out := make([]string, len(s.tracks))
	for i := range s.tracks {
		text, err := s.TrackMML(i, gen, opt)
		if err != nil {
			return nil, err
		}
		out[i] = text
	}
	return out, nil
}

// Parse reads one track per non-empty line of text.
func Parse(table *ticktable.Table, text string) (*Score, error) {
	s := New(table)
	n := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		n++
		t, err := ParseTrack(table, "Track"+strconv.Itoa(n), line)
		if err != nil {
			return nil, err
		}
		s.AddTrack(t)
	}
	return s, nil
}
