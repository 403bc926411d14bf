package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/client"
)

var syncHash string

var syncCmd = &cobra.Command{
	Use:   "sync <server> <data_name>",
	Short: "Fetch changes from a server and store them locally",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := client.NewEngine(args[0], args[1], baseDir)
		if err != nil {
			return err
		}
		report, err := engine.Sync(context.Background(), syncHash)
		if err != nil {
			return err
		}
		mode := "delta"
		if report.Full {
			mode = "full"
		}
		fmt.Printf("Saved changes to: %s (%s, %d new lines)\n", engine.Replica.LogPath(), mode, report.NewEvents)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncHash, "hash", "", "optional last known cumulative hash (overrides local discovery)")
	rootCmd.AddCommand(syncCmd)
}
