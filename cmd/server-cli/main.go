// Command server-cli administers and serves PSI datasets: creating and
// removing sources, reconciling and rekeying them against a source
// file, purging server-side state, and serving the query responder.
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
	Use:   "server-cli",
	Short: "Administer and serve cloakmatch PSI datasets",
}

func main() {
	_ = config.LoadDotenv(".env")
	rootCmd.PersistentFlags().StringVar(&baseDir, "base-dir", config.LoadServer().BaseDir, "root directory for schemas/secrets/data")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	return errs.KindOf(err).ExitCode()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
