package grammar

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// DecodeYAML parses a descriptor document and compiles it.
func DecodeYAML(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("grammar: decode yaml: %w", err)
	}
	if err := d.Compile(); err != nil {
		return nil, err
	}
	return &d, nil
}

// FromMap builds a descriptor from a generic map with the same layout as the
// YAML form, as produced by script evaluation.
func FromMap(m map[string]any) (*Descriptor, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("grammar: encode map: %w", err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("grammar: decode map: %w", err)
	}
	if err := d.Compile(); err != nil {
		return nil, err
	}
	return &d, nil
}

// EncodeYAML renders d in the form DecodeYAML accepts.
func EncodeYAML(d *Descriptor) ([]byte, error) {
	out, err := yaml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("grammar: encode yaml: %w", err)
	}
	return out, nil
}
