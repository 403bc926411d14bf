package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/changelog"
	"github.com/cloakmatch/psi/internal/dataset"
)

var rekeyCmd = &cobra.Command{
	Use:   "rekey <data_name> <source_file>",
	Short: "Rotate a dataset's private key and recompute evaluations for all IOCs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := dataset.Layout{BaseDir: baseDir, Name: args[0]}
		store := changelog.FileStore{Path: l.LogPath()}
		res, err := dataset.Rekey(l, store, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Rekey complete. Updated key: %s\n", l.KeyPath())
		fmt.Printf("Rewrote index: %s\n", l.IndexPath())
		fmt.Printf("Cleared change log: %s\n", l.LogPath())
		fmt.Printf("records=%d\n", res.Records)
		return nil
	},
}

func init() { rootCmd.AddCommand(rekeyCmd) }
