package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsphweid/mmlcore/db"
	"github.com/jsphweid/mmlcore/midi"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = ticktable.Default()

type memStore struct {
	recs []db.ScoreRecord
}

func (m *memStore) PutScore(_ context.Context, rec db.ScoreRecord) error {
	m.recs = append(m.recs, rec)
	return nil
}

func writeFixtures(t *testing.T) string {
	dir := t.TempDir()
	write := func(name string, data []byte) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0644))
	}
	write("a.txt", []byte("MML@c4d4e4,,;\n"))
	write("b.mml", []byte("MML@t120c1\n"))
	write("bad.mml", []byte("[Channel1]\ncde\n"))
	write("notes.wav", []byte("RIFF"))

	s, err := score.Parse(table, "MML@c1")
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, midi.Export(s, &buf))
	write("c.mid", buf.Bytes())
	return dir
}

func TestCreateFileNumMap(t *testing.T) {
	m := CreateFileNumMap([]string{"x.mid", "y.mml"})
	assert.Equal(t, FileNumToPath{0: "x.mid", 1: "y.mml"}, m)
}

func TestGather(t *testing.T) {
	dir := writeFixtures(t)
	m, err := Gather(dir, 0)
	require.NoError(t, err)
	assert.Len(t, m, 4)

	m, err = Gather(dir, 2)
	require.NoError(t, err)
	assert.Len(t, m, 2)
}

func TestProcessAll(t *testing.T) {
	dir := writeFixtures(t)
	m, err := Gather(dir, 0)
	require.NoError(t, err)

	store := &memStore{}
	var progress bytes.Buffer
	out := filepath.Join(dir, "out")
	p := &Processor{Table: table, Generation: optimizer.Gen2, Store: store, OutDir: out, Progress: &progress}
	report, err := p.ProcessAll(context.Background(), m)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "bad.mml"), report.Failures[0].Path)
	require.Len(t, report.Records, 3)

	assert.Equal(t, db.ScoreRecord{
		Key:        filepath.Join(dir, "a.txt"),
		Title:      "a",
		Generation: 2,
		TotalTicks: 288,
		Tracks:     []string{"MML@cde,,;"},
	}, report.Records[0])
	assert.Equal(t, []string{"MML@t120c1,,;"}, report.Records[1].Tracks)
	assert.Equal(t, []string{"MML@c1,,;"}, report.Records[3].Tracks)
	assert.Len(t, store.recs, 3)

	assert.Contains(t, progress.String(), "Processing 4 of 4 files")
	assert.Contains(t, progress.String(), "Skipping")

	data, err := os.ReadFile(filepath.Join(out, "000.txt"))
	require.NoError(t, err)
	assert.Equal(t, "MML@cde,,;\n", string(data))
}

func TestProcessAllStopsOnCancel(t *testing.T) {
	dir := writeFixtures(t)
	m, err := Gather(dir, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Processor{Table: table, Generation: optimizer.Gen1, Progress: &bytes.Buffer{}}
	report, err := p.ProcessAll(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Records)
}

func TestImportFileRejectsUnknownExtension(t *testing.T) {
	_, err := ImportFile(table, "song.wav")
	assert.Error(t, err)
}
