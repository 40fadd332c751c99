package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/spf13/cobra"
)

var optimizeGeneration string

func init() {
	optimizeCmd.Flags().StringVarP(&optimizeGeneration, "generation", "g", "", "1, 2 or 3 (default from config)")
	rootCmd.AddCommand(optimizeCmd)
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize [file]",
	Short: "Rewrites MML text in its shortest form",
	Long: `Reads MML from a file, or stdin when none is given. Lines starting
with MML@ are tracks; anything else is a single part.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, table, err := load()
		cobra.CheckErr(err)
		gen, err := cfg.GenerationValue()
		cobra.CheckErr(err)
		if optimizeGeneration != "" {
			gen, err = optimizer.ParseGeneration(optimizeGeneration)
			cobra.CheckErr(err)
		}

		var r io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			cobra.CheckErr(err)
			defer f.Close()
			r = f
		}
		text, err := io.ReadAll(r)
		cobra.CheckErr(err)

		out, err := optimizeText(table, string(text), gen)
		cobra.CheckErr(err)
		fmt.Println(out)
	},
}

func optimizeText(table *ticktable.Table, text string, gen optimizer.Generation) (string, error) {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "MML@") {
		s, err := score.Parse(table, text)
		if err != nil {
			return "", err
		}
		lines, err := s.MML(gen, nil)
		if err != nil {
			return "", err
		}
		return strings.Join(lines, "\n"), nil
	}
	tl, err := mml.Parse(table, strings.TrimSpace(text))
	if err != nil {
		return "", err
	}
	return optimizer.Optimize(tl, optimizer.Options{Generation: gen})
}
