package cmd

import (
	"github.com/jsphweid/mmlcore/config"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	tickTablePath string
)

var rootCmd = &cobra.Command{
	Use:   "mmlcore",
	Short: "MML timeline engine and codec",
	Long: `mmlcore reads MML text, 3MLE .mml files and standard MIDI files into
tick timelines and writes them back as compact MML.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mmlcore.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&tickTablePath, "tick-table", "", "token=tick file replacing the built-in table")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

// load reads the config and the tick table, the flag winning over both.
func load() (*config.Config, *ticktable.Table, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if tickTablePath != "" {
		cfg.TickTable = tickTablePath
	}
	table, err := cfg.Table()
	if err != nil {
		return nil, nil, err
	}
	return cfg, table, nil
}
