package patterns

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Custom unmarshaling preserves the file order of pattern and variant keys.
// The engine's "first valid wins" iteration depends on that order; plain map
// decoding would randomize it.

// UnmarshalYAML decodes a catalog keeping PatternOrder in file order.
func (c *Catalog) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Patterns           yaml.Node           `yaml:"patterns"`
		EnvironmentMapping map[string][]string `yaml:"environment_mapping"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.EnvironmentMapping = raw.EnvironmentMapping

	if raw.Patterns.IsZero() {
		return nil
	}
	if raw.Patterns.Kind != yaml.MappingNode {
		return fmt.Errorf("patterns: expected a mapping")
	}

	c.Patterns = make(map[string]*Pattern, len(raw.Patterns.Content)/2)
	for i := 0; i+1 < len(raw.Patterns.Content); i += 2 {
		key := raw.Patterns.Content[i].Value
		pattern := &Pattern{}
		if err := raw.Patterns.Content[i+1].Decode(pattern); err != nil {
			return fmt.Errorf("pattern %q: %w", key, err)
		}
		c.Patterns[key] = pattern
		c.PatternOrder = append(c.PatternOrder, key)
	}
	return nil
}

// UnmarshalYAML decodes a pattern keeping variant and environment key order.
func (p *Pattern) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Name                  string       `yaml:"name"`
		Description           string       `yaml:"description"`
		Direction             string       `yaml:"direction"`
		AllowedEnvironments   []string     `yaml:"allowed_environments"`
		MinConfidence         *float64     `yaml:"min_confidence"`
		Conditions            []*Condition `yaml:"conditions"`
		RequiredConditions    []string     `yaml:"required_conditions"`
		Variants              yaml.Node    `yaml:"variants"`
		EnvironmentConditions yaml.Node    `yaml:"environment_conditions"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	p.Name = raw.Name
	p.Description = raw.Description
	p.Direction = raw.Direction
	p.AllowedEnvironments = raw.AllowedEnvironments
	p.MinConfidence = raw.MinConfidence
	p.Conditions = raw.Conditions
	p.RequiredConditions = raw.RequiredConditions

	var err error
	p.Variants, p.VariantOrder, err = decodeVariantMap(&raw.Variants)
	if err != nil {
		return fmt.Errorf("variants: %w", err)
	}
	p.EnvironmentConditions, p.EnvironmentOrder, err = decodeVariantMap(&raw.EnvironmentConditions)
	if err != nil {
		return fmt.Errorf("environment_conditions: %w", err)
	}
	return nil
}

func decodeVariantMap(node *yaml.Node) (map[string]*Variant, []string, error) {
	if node.IsZero() {
		return nil, nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("expected a mapping")
	}

	variants := make(map[string]*Variant, len(node.Content)/2)
	var order []string
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		variant := &Variant{}
		if err := node.Content[i+1].Decode(variant); err != nil {
			return nil, nil, fmt.Errorf("%q: %w", key, err)
		}
		variants[key] = variant
		order = append(order, key)
	}
	return variants, order, nil
}
