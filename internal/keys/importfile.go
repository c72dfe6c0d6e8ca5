package keys

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ErrEmptyImportFile indicates an import document without any keys.
var ErrEmptyImportFile = errors.New("keys: import file contains no keys")

type importDocument struct {
	Keys []string `yaml:"keys"`
}

// ParseImportFile reads a YAML or JSON document holding either a list of keys
// or a mapping with a "keys" list. Keys are returned as written.
func ParseImportFile(reader io.Reader) ([]string, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("keys: read import file: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("keys: parse import file: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, ErrEmptyImportFile
	}

	var parsed []string
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&parsed); err != nil {
			return nil, fmt.Errorf("keys: decode key list: %w", err)
		}
	case yaml.MappingNode:
		var document importDocument
		if err := root.Decode(&document); err != nil {
			return nil, fmt.Errorf("keys: decode key document: %w", err)
		}
		parsed = document.Keys
	default:
		return nil, fmt.Errorf("keys: unsupported import document")
	}

	if len(parsed) == 0 {
		return nil, ErrEmptyImportFile
	}
	return parsed, nil
}
