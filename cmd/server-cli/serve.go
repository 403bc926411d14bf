package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/config"
	"github.com/cloakmatch/psi/internal/server"
)

var serveBind string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP query responder",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		bind := serveBind
		if bind == "" {
			bind = config.LoadServer().Bind
		}
		srv := server.New(baseDir, logger)
		logger.Info("starting query responder", "bind", bind, "base_dir", baseDir)
		return http.ListenAndServe(bind, srv.Router())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveBind, "bind", "", "host:port to listen on (default from CLOAKMATCH_BIND)")
	rootCmd.AddCommand(serveCmd)
}
