package settings

import (
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAMLSeed reads a YAML defaults file (an operator-authored starting
// point for active_engine_path/extra_model_dirs/etc.) into a Document. It
// is only ever used to seed a settings file that doesn't exist yet; once
// the JSON document exists it is the single source of truth (spec §6.6).
func LoadYAMLSeed(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{}, nil
		}
		return nil, err
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}
