// Command client-cli replicates a dataset's change log from a
// cloakmatch server and queries it without revealing the queried
// indicator to the server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/config"
	"github.com/cloakmatch/psi/internal/errs"
)

var baseDir string

var rootCmd = &cobra.Command{
	Use:   "client-cli",
	Short: "Sync and query cloakmatch PSI datasets",
}

func main() {
	_ = config.LoadDotenv(".env")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", config.LoadClient().BaseDir, "root directory for local replica state")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errs.KindOf(err).ExitCode())
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
