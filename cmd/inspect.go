package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var inspectInverse bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectInverse, "inverse", false, "dump tick to token sequences instead")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect [tick...]",
	Short: "Inspects the tick table",
	Long: `Without arguments dumps the tick table, or its inverse with --inverse.
With tick arguments prints how each tick length is spelled.`,
	Run: func(cmd *cobra.Command, args []string) {
		_, table, err := load()
		cobra.CheckErr(err)
		if len(args) == 0 {
			if inspectInverse {
				cobra.CheckErr(table.WriteInverse(os.Stdout))
			} else {
				cobra.CheckErr(table.WriteTable(os.Stdout))
			}
			return
		}
		for _, arg := range args {
			tick, err := strconv.Atoi(arg)
			cobra.CheckErr(err)
			e, ok := table.Inverse(tick)
			if !ok {
				fmt.Printf("%v: not representable\n", tick)
				continue
			}
			fmt.Printf("%v: %v\n", tick, strings.Join(e.Primary, "&"))
			for _, alt := range e.Alternates {
				fmt.Printf("  alt: %v\n", strings.Join(alt, "&"))
			}
		}
	},
}
