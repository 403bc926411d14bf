package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloakmatch/psi/internal/dataset"
	"github.com/cloakmatch/psi/internal/errs"
)

var (
	createAlgorithm string
	createInterval  string
	createRemove    bool
)

var createSourceCmd = &cobra.Command{
	Use:   "create-source <data_name>",
	Short: "Create or remove a dataset's schema and private key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := dataset.ValidateName(name); err != nil {
			return err
		}
		l := dataset.Layout{BaseDir: baseDir, Name: name}

		if createRemove {
			return removeSource(l, name)
		}

		if dataset.SchemaExists(l) || dataset.KeyExists(l) {
			return errs.New("create-source", errs.AlreadyExists, fmt.Errorf("source %q already exists; refusing to overwrite", name))
		}
		interval, err := dataset.ValidateRekeyInterval(createInterval)
		if err != nil {
			return err
		}
		schema := dataset.Schema{DataName: name, SupportedAlgorithm: dataset.Algorithm(createAlgorithm), RekeyInterval: interval}
		if err := dataset.WriteSchema(l, schema); err != nil {
			return err
		}
		fmt.Printf("Created %s\n", l.SchemaPath())

		if schema.SupportedAlgorithm == dataset.AlgorithmClassic {
			if _, err := dataset.GenerateKey(l); err != nil {
				return err
			}
			fmt.Printf("Created %s\n", l.KeyPath())
		} else {
			if err := os.MkdirAll(l.SecretsDir(), 0o700); err != nil {
				return errs.New("create-source", errs.Io, err)
			}
			if err := os.WriteFile(l.KeyPath(), []byte("ot-placeholder-key\n"), 0o600); err != nil {
				return errs.New("create-source", errs.Io, err)
			}
			fmt.Printf("Created placeholder key %s\n", l.KeyPath())
		}
		return nil
	},
}

func removeSource(l dataset.Layout, name string) error {
	removedAny := false
	if dataset.SchemaExists(l) {
		if err := os.Remove(l.SchemaPath()); err != nil {
			return errs.New("create-source --remove", errs.Io, err)
		}
		removedAny = true
	}
	_ = os.Remove(l.SchemaDir())
	if dataset.KeyExists(l) {
		if err := os.Remove(l.KeyPath()); err != nil {
			return errs.New("create-source --remove", errs.Io, err)
		}
		removedAny = true
	}
	_ = os.Remove(l.SecretsDir())
	if removedAny {
		fmt.Printf("Removed source %q (schema and key)\n", name)
	} else {
		fmt.Printf("No source files found for %q to remove\n", name)
	}
	return nil
}

func init() {
	createSourceCmd.Flags().StringVarP(&createAlgorithm, "supported-algorithm", "a", "classic", "classic or ot")
	createSourceCmd.Flags().StringVarP(&createInterval, "rekey-interval", "r", "1d", "days before rekey is required, e.g. 7d")
	createSourceCmd.Flags().BoolVar(&createRemove, "remove", false, "remove the source instead of creating it")
	rootCmd.AddCommand(createSourceCmd)
}
