package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jsphweid/mmlcore/batch"
	"github.com/jsphweid/mmlcore/db"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/spf13/cobra"
)

var (
	importOut        string
	importStore      bool
	importGeneration string
)

func init() {
	importCmd.Flags().StringVarP(&importOut, "out", "o", "out", "directory for converted text, empty to skip")
	importCmd.Flags().BoolVar(&importStore, "store", false, "put records into DynamoDB")
	importCmd.Flags().StringVarP(&importGeneration, "generation", "g", "", "1, 2 or 3 (default from config)")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <dir> [maxNum]",
	Short: "Converts every MIDI, 3MLE and MML file under a directory",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		var maxNum int
		if len(args) == 2 {
			n, err := strconv.Atoi(args[1])
			cobra.CheckErr(err)
			maxNum = n
		}
		cobra.CheckErr(runImport(cmd.Context(), args[0], maxNum))
	},
}

func runImport(ctx context.Context, dir string, maxNum int) error {
	cfg, table, err := load()
	if err != nil {
		return err
	}
	gen, err := cfg.GenerationValue()
	if err != nil {
		return err
	}
	if importGeneration != "" {
		if gen, err = optimizer.ParseGeneration(importGeneration); err != nil {
			return err
		}
	}

	fileNumMap, err := batch.Gather(dir, maxNum)
	if err != nil {
		return err
	}
	p := &batch.Processor{Table: table, Generation: gen, OutDir: importOut}
	if importStore {
		store, err := db.NewStore(cfg.Dynamo.Endpoint, cfg.Dynamo.Region, cfg.Dynamo.Table)
		if err != nil {
			return err
		}
		p.Store = store
	}
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := p.ProcessAll(ctx, fileNumMap)
	if err != nil {
		return err
	}
	fmt.Printf("Converted %v files, %v skipped\n", len(report.Records), len(report.Failures))
	for _, f := range report.Failures {
		fmt.Printf("  %v: %v\n", f.Path, f.Err)
	}
	return nil
}
