// Package batch converts a directory of MIDI, 3MLE and MML text files into
// serialized scores.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jsphweid/mmlcore/db"
	"github.com/jsphweid/mmlcore/midi"
	"github.com/jsphweid/mmlcore/mmlfile"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/jsphweid/mmlcore/util"
	"github.com/pkg/errors"
)

var Extensions = []string{".mid", ".midi", ".mml", ".txt"}

type FileNumToPath = map[uint32]string

func CreateFileNumMap(paths []string) FileNumToPath {
	res := make(FileNumToPath)
	for i, v := range paths {
		res[uint32(i)] = v
	}
	return res
}

// Gather lists convertible files under dir, at most maxNum unless 0.
func Gather(dir string, maxNum int) (FileNumToPath, error) {
	paths, err := util.GatherPaths(dir, Extensions, maxNum)
	if err != nil {
		return nil, errors.Wrapf(err, "gathering files in %s", dir)
	}
	return CreateFileNumMap(paths), nil
}

// ImportFile picks the importer by extension. A .mml file without
// [Channel] sections is read as plain MML@ text.
func ImportFile(table *ticktable.Table, path string) (*score.Score, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi":
		return midi.ImportFile(table, path)
	case ".mml":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading mml file")
		}
		if bytes.Contains(raw, []byte("[Channel")) {
			return mmlfile.Parse(table, bytes.NewReader(raw))
		}
		return score.Parse(table, string(raw))
	case ".txt":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading text file")
		}
		return score.Parse(table, string(raw))
	}
	return nil, errors.Errorf("unsupported file %s", path)
}

type Putter interface {
	PutScore(ctx context.Context, rec db.ScoreRecord) error
}

type Processor struct {
	Table      *ticktable.Table
	Generation optimizer.Generation
	// Store receives every converted record when set.
	Store Putter
	// OutDir receives <num>.txt with one track per line when set.
	OutDir string
	// Progress defaults to stdout.
	Progress io.Writer
	cache    *optimizer.Cache
}

type Failure struct {
	Path string
	Err  error
}

type Report struct {
	Records  map[uint32]db.ScoreRecord
	Failures []Failure
}

func (p *Processor) progress() io.Writer {
	if p.Progress == nil {
		return os.Stdout
	}
	return p.Progress
}

// ProcessAll converts files in number order. Failing files are reported
// and skipped; only a canceled context stops the run early.
func (p *Processor) ProcessAll(ctx context.Context, m FileNumToPath) (*Report, error) {
	if p.cache == nil {
		p.cache = optimizer.NewCache()
	}
	if p.OutDir != "" {
		if err := os.MkdirAll(p.OutDir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating output dir")
		}
	}
	report := &Report{Records: make(map[uint32]db.ScoreRecord)}
	keys := util.SortedKeys(m)
	for i, num := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fmt.Fprintf(p.progress(), "Processing %v of %v files\n", i+1, len(keys))
		rec, err := p.processFile(ctx, num, m[num])
		if err != nil {
			fmt.Fprintf(p.progress(), "Skipping %v because: %v\n", m[num], err)
			report.Failures = append(report.Failures, Failure{Path: m[num], Err: err})
			continue
		}
		report.Records[num] = rec
	}
	return report, nil
}

func (p *Processor) processFile(ctx context.Context, num uint32, path string) (db.ScoreRecord, error) {
	s, err := ImportFile(p.Table, path)
	if err != nil {
		return db.ScoreRecord{}, err
	}
	tracks, err := s.MML(p.Generation, p.cache)
	if err != nil {
		return db.ScoreRecord{}, err
	}
	rec := db.ScoreRecord{
		Key:        path,
		Title:      s.Title,
		Author:     s.Author,
		Generation: int(p.Generation),
		TotalTicks: s.TotalTickLength(),
		Tracks:     tracks,
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.OutDir != "" {
		out := filepath.Join(p.OutDir, fmt.Sprintf("%03d.txt", num))
		if err := os.WriteFile(out, []byte(strings.Join(tracks, "\n")+"\n"), 0644); err != nil {
			return db.ScoreRecord{}, errors.Wrap(err, "writing output")
		}
	}
	if p.Store != nil {
		if err := p.Store.PutScore(ctx, rec); err != nil {
			return db.ScoreRecord{}, err
		}
	}
	return rec, nil
}
