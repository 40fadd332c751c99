package chord

import (
	"testing"

	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseScore(t *testing.T, text string) *score.Score {
	s, err := score.Parse(ticktable.Default(), text)
	require.NoError(t, err)
	return s
}

func TestCreateChordKey(t *testing.T) {
	notes := []int{55, 48, 52}
	assert.Equal(t, "48-52-55", CreateChordKey(notes))
	assert.Equal(t, []int{55, 48, 52}, notes)
	assert.Equal(t, "", CreateChordKey(nil))
}

func TestGetChords(t *testing.T) {
	s := parseScore(t, "MML@c,,rd\nMML@rf,e\nMML@,ra,g")
	chords := GetChords(s)
	assert.Equal(t, []Chord{
		{Offset: 0, Notes: []int{48, 52, 55}, Voices: 3},
		{Offset: 96, Notes: []int{50, 53, 57}, Voices: 3},
	}, chords)
	assert.Equal(t, "50-53-57", chords[1].Key())
}

func TestGetChordsSkipsMutedNotes(t *testing.T) {
	s := parseScore(t, "MML@cv0d,e")
	assert.Equal(t, []Chord{{Offset: 0, Notes: []int{48, 52}, Voices: 2}}, GetChords(s))
}

func TestChordAt(t *testing.T) {
	s := parseScore(t, "MML@c,,rd\nMML@rf,e\nMML@,ra,g")
	assert.Equal(t, Chord{Offset: 96, Notes: []int{50, 53, 57}, Voices: 3}, ChordAt(s, 96))
	assert.Empty(t, ChordAt(s, 500).Notes)
}

func TestPolyphonyCountsDoubledPitches(t *testing.T) {
	s := parseScore(t, "MML@c1,c\nMML@,,re")
	chords := GetChords(s)
	require.Len(t, chords, 3)
	assert.Equal(t, Chord{Offset: 0, Notes: []int{48}, Voices: 2}, chords[0])
	assert.Equal(t, Chord{Offset: 96, Notes: []int{48, 52}, Voices: 2}, chords[1])
	assert.Equal(t, Chord{Offset: 192, Notes: []int{48}, Voices: 1}, chords[2])

	max, offset := Polyphony(s)
	assert.Equal(t, 2, max)
	assert.Equal(t, 0, offset)
}

func TestRankSortChords(t *testing.T) {
	chords := []Chord{
		{Offset: 10, Voices: 1},
		{Offset: 5, Voices: 3},
		{Offset: 1, Voices: 3},
		{Offset: 0, Voices: 2},
	}
	RankSortChords(chords)
	var offsets []int
	for _, c := range chords {
		offsets = append(offsets, c.Offset)
	}
	assert.Equal(t, []int{1, 5, 0, 10}, offsets)
}
