// Package dataset implements the server-side dataset state machine:
// schema and key persistence, the plaintext-index reconciler, and key
// rotation, reconciling a source file against a persisted encrypted
// index and publishing the difference onto the dataset's change log.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/cloakmatch/psi/internal/errs"
)

// NameRe validates a data_name: alphanumeric only, per the wire and
// operator interfaces.
var NameRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// RekeyIntervalRe matches the shape of a rekey interval string ("<N>d");
// ValidateRekeyInterval additionally enforces N >= 1.
var RekeyIntervalRe = regexp.MustCompile(`^([0-9]+)d$`)

// Algorithm is the schema's declared OPRF algorithm. "ot" is a
// recognized but unimplemented placeholder.
type Algorithm string

const (
	AlgorithmClassic Algorithm = "classic"
	AlgorithmOT      Algorithm = "ot"
)

// Schema is the persisted per-dataset configuration.
type Schema struct {
	DataName            string `json:"data_name"`
	SupportedAlgorithm  Algorithm `json:"supported_algorithm"`
	RekeyInterval       string `json:"rekey_interval"`
}

// ValidateName reports whether name is a well-formed data_name.
func ValidateName(name string) error {
	if name == "" || !NameRe.MatchString(name) {
		return errs.New("dataset.ValidateName", errs.InvalidInput, fmt.Errorf("data_name must match [A-Za-z0-9]+, got %q", name))
	}
	return nil
}

// ValidateRekeyInterval reports whether interval is a well-formed
// "<N>d" string with N >= 1, and normalizes it (strips leading zeros).
func ValidateRekeyInterval(interval string) (string, error) {
	m := RekeyIntervalRe.FindStringSubmatch(interval)
	if m == nil {
		return "", errs.New("dataset.ValidateRekeyInterval", errs.InvalidInput,
			fmt.Errorf("rekey interval must match ^[0-9]+d$, got %q", interval))
	}
	var days int
	fmt.Sscanf(m[1], "%d", &days)
	if days < 1 {
		return "", errs.New("dataset.ValidateRekeyInterval", errs.InvalidInput,
			fmt.Errorf("rekey interval must be at least 1d, got %q", interval))
	}
	return fmt.Sprintf("%dd", days), nil
}

// Layout resolves the on-disk paths for one dataset under a base
// directory, mirroring the persisted-state layout: schemas/<name>/,
// secrets/<name>/, data/<name>/.
type Layout struct {
	BaseDir string
	Name    string
}

func (l Layout) SchemaPath() string { return fmt.Sprintf("%s/schemas/%s/schema.json", l.BaseDir, l.Name) }
func (l Layout) KeyPath() string    { return fmt.Sprintf("%s/secrets/%s/private.key", l.BaseDir, l.Name) }
func (l Layout) IndexPath() string  { return fmt.Sprintf("%s/data/%s/index.csv", l.BaseDir, l.Name) }
func (l Layout) LogPath() string    { return fmt.Sprintf("%s/data/%s/changes.log", l.BaseDir, l.Name) }
func (l Layout) SchemaDir() string  { return fmt.Sprintf("%s/schemas/%s", l.BaseDir, l.Name) }
func (l Layout) SecretsDir() string { return fmt.Sprintf("%s/secrets/%s", l.BaseDir, l.Name) }
func (l Layout) DataDir() string    { return fmt.Sprintf("%s/data/%s", l.BaseDir, l.Name) }

// LoadSchema reads and parses the schema for a dataset.
func LoadSchema(l Layout) (Schema, error) {
	raw, err := os.ReadFile(l.SchemaPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Schema{}, errs.New("dataset.LoadSchema", errs.NotFound, err)
		}
		return Schema{}, errs.New("dataset.LoadSchema", errs.Io, err)
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, errs.New("dataset.LoadSchema", errs.Io, err)
	}
	return s, nil
}

// SchemaExists reports whether a schema file is already present.
func SchemaExists(l Layout) bool {
	_, err := os.Stat(l.SchemaPath())
	return err == nil
}

// WriteSchema persists s to disk, creating parent directories as needed.
func WriteSchema(l Layout, s Schema) error {
	if err := os.MkdirAll(l.SchemaDir(), 0o755); err != nil {
		return errs.New("dataset.WriteSchema", errs.Io, err)
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errs.New("dataset.WriteSchema", errs.Io, err)
	}
	raw = append(raw, '\n')
	if err := os.WriteFile(l.SchemaPath(), raw, 0o644); err != nil {
		return errs.New("dataset.WriteSchema", errs.Io, err)
	}
	return nil
}
