package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/dataset"
)

var syncCmd = &cobra.Command{
	Use:   "sync <data_name> <source_file>",
	Short: "Reconcile a dataset against a source file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := dataset.Layout{BaseDir: baseDir, Name: args[0]}
		rec := &dataset.Reconciler{Layout: l, Log: changelog.FileStore{Path: l.LogPath()}}
		res, err := rec.Reconcile(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Updated index at: %s\n", l.IndexPath())
		fmt.Printf("Logged changes at: %s\n", l.LogPath())
		fmt.Printf("added=%d removed=%d upgraded=%d\n", res.Added, res.Removed, res.Upgraded)
		return nil
	},
}

func init() { rootCmd.AddCommand(syncCmd) }
