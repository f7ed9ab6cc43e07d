package deck

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	id "proofdeck/pkg/domain"
	dErrors "proofdeck/pkg/domain-errors"
)

// deckFile is the on-disk shape of a deck configuration file.
type deckFile struct {
	Decks []Definition `yaml:"decks"`
}

// LoadFile reads deck definitions from a YAML file and validates them.
// Parse and validation failures are surfaced; the caller decides whether a
// broken deck file is fatal.
func LoadFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, fmt.Sprintf("read deck file %s", path))
	}
	return Parse(raw)
}

// Parse decodes and validates deck definitions from YAML bytes.
func Parse(raw []byte) ([]Definition, error) {
	var file deckFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "malformed deck file")
	}
	seen := make(map[id.DeckID]bool, len(file.Decks))
	for i := range file.Decks {
		def := &file.Decks[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.DeckID] {
			return nil, dErrors.New(dErrors.CodeValidation, "duplicate deck id "+string(def.DeckID))
		}
		seen[def.DeckID] = true
	}
	return file.Decks, nil
}
