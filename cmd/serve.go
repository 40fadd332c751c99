package cmd

import (
	"log"

	"github.com/jsphweid/mmlcore/optimizer"
	"github.com/jsphweid/mmlcore/server"
	"github.com/jsphweid/mmlcore/session"
	"github.com/spf13/cobra"
)

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the optimize and session API",
	Run: func(cmd *cobra.Command, args []string) {
		serve()
	},
}

func serve() {
	cfg, table, err := load()
	if err != nil {
		log.Fatal(err)
	}
	gen, err := cfg.GenerationValue()
	if err != nil {
		log.Fatal(err)
	}
	addr := cfg.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	sessions := session.NewManager(table, optimizer.NewCache(), cfg.Debounce())
	log.Fatal(server.New(table, sessions, gen).ListenAndServe(addr))
}
