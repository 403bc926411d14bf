package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/client"
)

var resetCmd = &cobra.Command{
	Use:   "reset <server> <data_name>",
	Short: "Purge local state for a dataset and force a full re-sync",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := client.NewEngine(args[0], args[1], baseDir)
		if err != nil {
			return err
		}
		report, err := engine.Reset(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Reset complete: %d lines replayed\n", report.NewEvents)
		return nil
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge <server> <data_name>",
	Short: "Remove local replica state for a dataset without syncing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := client.NewEngine(args[0], args[1], baseDir)
		if err != nil {
			return err
		}
		if err := engine.Purge(); err != nil {
			return err
		}
		fmt.Printf("Purged local replica for %s/%s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(purgeCmd)
}
