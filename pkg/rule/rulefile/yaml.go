package rulefile

import (
	"gopkg.in/yaml.v3"
)

// yamlBundle is the file layout before rules are parsed.
type yamlBundle struct {
	Rules []yamlRule `yaml:"rules"`
	Tests []yamlTest `yaml:"tests"`
}

type yamlRule struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Expression  string `yaml:"expression"`
	Enabled     *bool  `yaml:"enabled"` // Pointer to distinguish unset vs false

	line, column int
	exprLine     int
	exprColumn   int
}

// UnmarshalYAML decodes a rule and records where it and its expression are.
func (r *yamlRule) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlRule
	if err := value.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line, r.column = value.Line, value.Column
	r.exprLine, r.exprColumn = r.line, r.column
	if v := mappingValue(value, "expression"); v != nil {
		r.exprLine, r.exprColumn = v.Line, v.Column
	}
	return nil
}

type yamlTest struct {
	Name        string    `yaml:"name"`
	Rule        string    `yaml:"rule"`
	Combine     []string  `yaml:"combine"`
	Context     yaml.Node `yaml:"context"`
	Expect      *bool     `yaml:"expect"`
	ExpectError string    `yaml:"expect_error"`

	line, column int
}

// UnmarshalYAML decodes a test case and records where it is.
func (t *yamlTest) UnmarshalYAML(value *yaml.Node) error {
	type plain yamlTest
	if err := value.Decode((*plain)(t)); err != nil {
		return err
	}
	t.line, t.column = value.Line, value.Column
	return nil
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
