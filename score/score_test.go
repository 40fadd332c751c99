package score

import (
	"strings"
	"testing"

	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = ticktable.Default()

func addTrack(t *testing.T, s *Score, text string) *Track {
	track, err := ParseTrack(table, "track", text)
	require.NoError(t, err)
	s.AddTrack(track)
	return track
}

func TestTotalTickLength(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@c1")
	assert.Equal(t, 384, s.TotalTickLength())
	assert.Equal(t, 384, s.TotalTickLengthWithAll())

	s.AddMarker(model.Marker{Name: "test", TickOffset: 1000})
	s.AddMarker(model.Marker{Name: "test", TickOffset: 800})
	assert.Equal(t, 384, s.TotalTickLength())
	assert.Equal(t, 1000, s.TotalTickLengthWithAll())
	assert.Equal(t, 800, s.Markers()[0].TickOffset)

	s.AddTempo(model.TempoEvent{TickOffset: 2000, Tempo: 90})
	s.AddTempo(model.TempoEvent{TickOffset: 1800, Tempo: 92})
	assert.Equal(t, 384, s.TotalTickLength())
	assert.Equal(t, 2000, s.TotalTickLengthWithAll())
}

func TestNoteListOnTickOffset(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@c,,rd")
	addTrack(t, s, "MML@rf,e")
	addTrack(t, s, "MML@,ra,g")

	flatten := func(tick int) []model.NoteEvent {
		var out []model.NoteEvent
		for _, parts := range s.NoteListOnTickOffset(tick) {
			for _, n := range parts {
				if n != nil {
					out = append(out, *n)
				}
			}
		}
		return out
	}

	assert.Equal(t, []model.NoteEvent{
		model.NewNoteEvent(48, 96, 0),
		model.NewNoteEvent(52, 96, 0),
		model.NewNoteEvent(55, 96, 0),
	}, flatten(0))
	assert.Equal(t, []model.NoteEvent{
		model.NewNoteEvent(50, 96, 96),
		model.NewNoteEvent(53, 96, 96),
		model.NewNoteEvent(57, 96, 96),
	}, flatten(96))
	assert.Empty(t, flatten(192))
}

func TestParseTrack(t *testing.T) {
	track, err := ParseTrack(table, "t", "mml@aaa,bbb,ccc,dd1;")
	require.NoError(t, err)
	assert.Len(t, track.Parts[Song].Notes(), 2)
	assert.Equal(t, 480, track.TotalTickLength())
	assert.False(t, track.IsEmpty())

	empty, err := ParseTrack(table, "t", "MML@,,;")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = ParseTrack(table, "t", "MML@a,b,c,d,e;")
	assert.True(t, errors.Is(err, model.ErrParse))
	_, err = ParseTrack(table, "t", "MML@a,b65;")
	assert.True(t, errors.Is(err, model.ErrParse))
}

func TestTrackMML(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@aaa,bbb,ccc,dd1;")

	text, err := s.TrackMML(0, optimizer.Gen1, nil)
	require.NoError(t, err)
	assert.Equal(t, "MML@a4a4a4,b4b4b4,c4c4c4,d4d1;", text)

	text, err = s.TrackMML(0, optimizer.Gen2, nil)
	require.NoError(t, err)
	assert.Equal(t, "MML@aaa,bbb,ccc,dd1;", text)

	_, err = s.TrackMML(1, optimizer.Gen2, nil)
	assert.True(t, errors.Is(err, model.ErrOutOfRange))
}

func TestGlobalTempos(t *testing.T) {
	s := New(table)
	first := addTrack(t, s, "MML@at150aa1,bbb,ccc,dd1;")
	addTrack(t, s, "MML@aaa2,bbt120b,ccc,dd2;")

	assert.Equal(t, []model.TempoEvent{
		{TickOffset: 96, Tempo: 150},
		{TickOffset: 192, Tempo: 120},
	}, s.Tempos())
	assert.Empty(t, first.Parts[Melody].Tempos())

	texts, err := s.MML(optimizer.Gen2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"MML@at150at120a1,bbb,ccc,dt150dt120&d2.;",
		"MML@at150at120a2,bbb,ccc,dt150dt120&d;",
	}, texts)
}

func TestTempoMovesToChordWhenMelodyIsSilent(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@,cc,ee")
	s.AddTempo(model.TempoEvent{TickOffset: 96, Tempo: 140})
	text, err := s.TrackMML(0, optimizer.Gen2, nil)
	require.NoError(t, err)
	assert.Equal(t, "MML@,ct140c,ee;", text)
}

func TestTemposAfterLastNoteAreDropped(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@c1")
	s.AddTempo(model.TempoEvent{TickOffset: 768, Tempo: 120})
	text, err := s.TrackMML(0, optimizer.Gen1, nil)
	require.NoError(t, err)
	assert.Equal(t, "MML@c1,,;", text)
}

func trackParts(t *testing.T, s *Score, gen optimizer.Generation) []string {
	text, err := s.TrackMML(0, gen, nil)
	require.NoError(t, err)
	text = strings.TrimSuffix(strings.TrimPrefix(text, "MML@"), ";")
	return strings.Split(text, ",")
}

func TestSilentNoteBeforeTempo(t *testing.T) {
	tests := []struct {
		text    string
		carrier int
		want    string
	}{
		{"MML@l2drt130rv8g,l1rd,;", Melody, "l2dv0ct130rv8g"},
		{"MML@l2drt130rv8g,l2rc,;", Melody, "l2dv0dt130rv8g"},
		{"MML@l2drt130rv8g,l2rc,l2rd;", Melody, "l2dv0et130rv8g"},
		{"MML@l2drt130rv8g,l2rd,l2rc;", Melody, "l2dv0et130rv8g"},
		{"MML@l2drt130rv8g,l2rb,l2rc;", Melody, "l2dv0dt130rv8g"},
		{"MML@l2drt130rv8g,l2rg,l2ra;", Melody, "l2dv0ct130rv8g"},
		{"MML@l2rd,l2drt130rv8g,l2rc;", Chord1, "l2dv0et130rv8g"},
		{"MML@l2rd,l2rc,l2drt130rv8g;", Chord2, "l2dv0et130rv8g"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			s := New(table)
			addTrack(t, s, tt.text)
			parts := trackParts(t, s, optimizer.Gen3)
			assert.Equal(t, tt.want, parts[tt.carrier])
		})
	}
}

func TestSilentNoteAfterLongRest(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@l1r.r.rrt130,,l1r.r.rrc;")
	parts := trackParts(t, s, optimizer.Gen3)
	assert.Regexp(t, `v0d(\d+\.?)?t130v8c`, parts[Chord2])
}

func TestNoSilentNoteWhenTempoFallsOnNote(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@l1r.r.rt240,v12ccccdd2deeec2fffggggaaaabbbb>c1,d1d1.d1.;")
	parts := trackParts(t, s, optimizer.Gen3)
	assert.NotContains(t, strings.Join(parts, ","), "v0")
	assert.Regexp(t, `t240(l\d+\.?)?g`, parts[Chord1])
}

func TestTempoCorrectionOff(t *testing.T) {
	s := New(table)
	s.TempoCorrection = false
	track := addTrack(t, s, "MML@l2drt130rv8g,l1rd,;")
	parts := trackParts(t, s, optimizer.Gen3)
	assert.NotContains(t, parts[Melody], "v0")
	assert.Contains(t, parts[Melody], "t130")
	assert.Len(t, track.Parts[Melody].Notes(), 2)
}

func TestMMLUsesCache(t *testing.T) {
	s, err := Parse(table, "MML@cde,efg;\n\nMML@gab;\n")
	require.NoError(t, err)
	require.Len(t, s.Tracks(), 2)

	cache := optimizer.NewCache()
	a, err := s.MML(optimizer.Gen3, cache)
	require.NoError(t, err)
	b, err := s.MML(optimizer.Gen3, cache)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	hits, _ := cache.Stats()
	assert.Equal(t, 3, hits)
}

func TestInsertTickShiftsEverything(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@cd,e")
	s.AddTempo(model.TempoEvent{TickOffset: 96, Tempo: 150})
	s.AddMarker(model.Marker{Name: "m", TickOffset: 96})
	s.InsertTick(0, 384)

	track := s.Tracks()[0]
	assert.Equal(t, 384, track.Parts[Melody].Notes()[0].TickOffset)
	assert.Equal(t, 384, track.Parts[Chord1].Notes()[0].TickOffset)
	assert.Equal(t, 480, s.Tempos()[0].TickOffset)
	assert.Equal(t, 480, s.Markers()[0].TickOffset)
}

func TestRemoveTrack(t *testing.T) {
	s := New(table)
	addTrack(t, s, "MML@c")
	require.NoError(t, s.RemoveTrack(0))
	assert.Empty(t, s.Tracks())
	assert.Error(t, s.RemoveTrack(0))
}
