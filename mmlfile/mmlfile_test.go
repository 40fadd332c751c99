package mmlfile

import (
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"strings"
	"testing"

	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = ticktable.Default()

func TestToMMLText(t *testing.T) {
	assert.Equal(t, "t120cde", ToMMLText("/* intro */ t120\r\nc d e // first bar\r\n"))
	assert.Equal(t, "ab", ToMMLText("a/* x\n y */b"))
	assert.Equal(t, "c", ToMMLText("c\t// trailing"))
}

func TestParseShiftJIS(t *testing.T) {
	s, err := ParseFile(table, "testdata/sample.mml")
	require.NoError(t, err)
	assert.Equal(t, "テスト曲", s.Title)
	assert.Equal(t, "たんらる", s.Author)
	assert.Equal(t, []model.TempoEvent{{TickOffset: 0, Tempo: 120}}, s.Tempos())

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "Track1", tracks[0].Name)
	assert.Equal(t, 0, tracks[0].Program)
	assert.Equal(t, "Track3", tracks[1].Name)
	assert.Equal(t, 1, tracks[1].Program)

	texts, err := s.MML(optimizer.Gen2, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"MML@t120cde,efg,;", "MML@t120>c1,,;"}, texts)
}

func TestParseMarkersAndStartOffset(t *testing.T) {
	s, err := ParseFile(table, "testdata/markers.mml")
	require.NoError(t, err)
	assert.Equal(t, "Markers", s.Title)
	assert.Equal(t, []model.Marker{{Name: "サビ", TickOffset: 384}}, s.Markers())

	tracks := s.Tracks()
	require.Len(t, tracks, 2)
	assert.Equal(t, "メロディ", tracks[0].Name)
	assert.Equal(t, 4, tracks[0].Program)

	melody := tracks[0].Parts[score.Melody].Notes()
	require.Len(t, melody, 3)
	assert.Equal(t, 384, melody[0].TickOffset)
	chord := tracks[0].Parts[score.Chord1].Notes()
	require.Len(t, chord, 1)
	assert.Equal(t, model.NewNoteEvent(43, 96, 384), chord[0])

	bass := tracks[1].Parts[score.Melody].Notes()
	assert.Equal(t, []model.NoteEvent{model.NewNoteEvent(24, 192, 0)}, bass)
	assert.Equal(t, "Bass", tracks[1].Name)
	assert.Equal(t, 0, tracks[1].Program)
}

func TestParseRejectsBadChecksum(t *testing.T) {
	_, err := ParseFile(table, "testdata/badcrc.mml")
	assert.True(t, errors.Is(err, model.ErrParse))
}

func TestExtensionLengthIsBounded(t *testing.T) {
	for _, n := range []uint32{1 << 30, 0xffffffff} {
		b := make([]byte, 16)
		binary.LittleEndian.PutUint32(b, n)
		d := base64.StdEncoding.EncodeToString(b)
		_, err := decodeExtension(d, crc32.ChecksumIEEE([]byte(d)))
		assert.True(t, errors.Is(err, model.ErrParse), "length %d", n)
	}
}

func TestParseRequiresTracks(t *testing.T) {
	_, err := Parse(table, strings.NewReader(""))
	assert.True(t, errors.Is(err, model.ErrParse))

	_, err = Parse(table, strings.NewReader("[Channel1]\ncde\n"))
	assert.True(t, errors.Is(err, model.ErrParse))
}
