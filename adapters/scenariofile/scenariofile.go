// Package scenariofile reads design scenarios from YAML or JSON files.
//
// A file holds either one scenario at the top level or a list under
// "scenarios". Keys under "defaults" are applied to every listed
// scenario before its own keys.
package scenariofile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"gsdesign/models"
)

type document struct {
	Defaults  yaml.Node   `yaml:"defaults"`
	Scenarios []yaml.Node `yaml:"scenarios"`
}

// Load reads all scenarios in path. JSON is read as YAML.
func Load(path string) ([]models.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out, err := Parse(data, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// Parse decodes scenarios from YAML or JSON bytes and validates each.
// Unnamed scenarios are called prefix-N.
func Parse(data []byte, prefix string) ([]models.Scenario, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("scenario file is empty")
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}

	var out []models.Scenario
	if len(doc.Scenarios) == 0 {
		var sc models.Scenario
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("parsing scenario: %w", err)
		}
		out = append(out, sc)
	}
	for i := range doc.Scenarios {
		var sc models.Scenario
		if doc.Defaults.Kind != 0 {
			if err := doc.Defaults.Decode(&sc); err != nil {
				return nil, fmt.Errorf("parsing defaults: %w", err)
			}
		}
		if err := doc.Scenarios[i].Decode(&sc); err != nil {
			return nil, fmt.Errorf("parsing scenario %d: %w", i+1, err)
		}
		out = append(out, sc)
	}
	for i := range out {
		if out[i].Name == "" {
			out[i].Name = fmt.Sprintf("%s-%d", prefix, i+1)
		}
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("scenario %q: %w", out[i].Name, err)
		}
	}
	return out, nil
}

// Write encodes scenarios as a YAML document with a scenarios list.
func Write(path string, scenarios []models.Scenario) error {
	data, err := yaml.Marshal(struct {
		Scenarios []models.Scenario `yaml:"scenarios"`
	}{scenarios})
	if err != nil {
		return fmt.Errorf("encoding scenarios: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
