package alerting

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadRulesFromFile loads and validates a rule set from a YAML file.
func LoadRulesFromFile(path string) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f)
}

// LoadRules loads and validates a rule set from a reader.
func LoadRules(r io.Reader) (*RuleSet, error) {
	var rs RuleSet
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// LoadRulesFromBytes loads and validates a rule set from YAML bytes.
func LoadRulesFromBytes(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}
