package cmd

import (
	"fmt"
	"os"

	"github.com/jsphweid/mmlcore/batch"
	"github.com/jsphweid/mmlcore/midi"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export <in> <out.mid>",
	Short: "Writes a score as a standard MIDI file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		_, table, err := load()
		cobra.CheckErr(err)
		s, err := batch.ImportFile(table, args[0])
		cobra.CheckErr(err)

		f, err := os.Create(args[1])
		cobra.CheckErr(err)
		defer f.Close()
		cobra.CheckErr(midi.Export(s, f))
		fmt.Printf("Wrote %v tracks to %v\n", len(s.Tracks()), args[1])
	},
}
