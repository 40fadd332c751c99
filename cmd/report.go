package cmd

import (
	"fmt"

	"github.com/jsphweid/mmlcore/batch"
	"github.com/jsphweid/mmlcore/chord"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/util"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Reports lengths, polyphony and output size of a score",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, table, err := load()
		cobra.CheckErr(err)
		s, err := batch.ImportFile(table, args[0])
		cobra.CheckErr(err)
		r, err := analyze(s)
		cobra.CheckErr(err)
		r.print()
	},
}

type scoreReport struct {
	title       string
	numTracks   int
	totalTicks  int
	allTicks    int
	numTempos   int
	numMarkers  int
	numChords   int
	polyphony   int
	polyOffset  int
	sizesByGen  map[optimizer.Generation][]int
	totalsByGen map[optimizer.Generation]uint64
}

func analyze(s *score.Score) (scoreReport, error) {
	r := scoreReport{
		title:       s.Title,
		numTracks:   len(s.Tracks()),
		totalTicks:  s.TotalTickLength(),
		allTicks:    s.TotalTickLengthWithAll(),
		numTempos:   len(s.Tempos()),
		numMarkers:  len(s.Markers()),
		numChords:   len(chord.GetChords(s)),
		sizesByGen:  make(map[optimizer.Generation][]int),
		totalsByGen: make(map[optimizer.Generation]uint64),
	}
	r.polyphony, r.polyOffset = chord.Polyphony(s)

	cache := optimizer.NewCache()
	for _, gen := range []optimizer.Generation{optimizer.Gen1, optimizer.Gen2, optimizer.Gen3} {
		lines, err := s.MML(gen, cache)
		if err != nil {
			return r, err
		}
		for _, l := range lines {
			r.sizesByGen[gen] = append(r.sizesByGen[gen], len(l))
		}
		r.totalsByGen[gen] = util.Sum(r.sizesByGen[gen])
	}
	return r, nil
}

func (r scoreReport) print() {
	fmt.Printf("title: %v\n", r.title)
	fmt.Printf("tracks: %v\n", r.numTracks)
	fmt.Printf("totalTicks: %v (with tempos and markers %v)\n", r.totalTicks, r.allTicks)
	fmt.Printf("tempos: %v, markers: %v\n", r.numTempos, r.numMarkers)
	fmt.Printf("chords: %v\n", r.numChords)
	fmt.Printf("max polyphony: %v at tick %v\n", r.polyphony, r.polyOffset)
	for _, gen := range util.SortedKeys(r.sizesByGen) {
		fmt.Printf("gen%v: %v bytes %v\n", gen, r.totalsByGen[gen], r.sizesByGen[gen])
	}
}
