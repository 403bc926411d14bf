package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/dataset"
	"github.com/cloakmatch/psi/internal/errs"
)

var purgeCmd = &cobra.Command{
	Use:   "purge <data_name>",
	Short: "Remove a dataset's data directory (index and change log), keeping its schema and key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := dataset.Layout{BaseDir: baseDir, Name: args[0]}
		if err := os.RemoveAll(l.DataDir()); err != nil {
			return errs.New("purge", errs.Io, err)
		}
		fmt.Printf("Purged server dataset directory: %s\n", l.DataDir())
		return nil
	},
}

func init() { rootCmd.AddCommand(purgeCmd) }
