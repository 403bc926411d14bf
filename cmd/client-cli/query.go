package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/client"
)

var queryCmd = &cobra.Command{
	Use:   "query <server> <data_name> <ioc>",
	Short: "Query an indicator against a dataset without revealing it to the server",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := client.NewEngine(args[0], args[1], baseDir)
		if err != nil {
			return err
		}
		res, err := engine.Query(context.Background(), args[2])
		if err != nil {
			return err
		}
		if !res.Matched {
			fmt.Println("No active match found in changes.log (either not present or removed)")
			return nil
		}
		fmt.Println("Match found.")
		fmt.Printf("PRF: %s\n", res.PrfHex)
		fmt.Printf("Metadata: %s\n", res.Metadata)
		return nil
	},
}

func init() { rootCmd.AddCommand(queryCmd) }
