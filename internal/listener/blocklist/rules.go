// Package blocklist denies handshakes whose peer address or requested host
// matches an operator-maintained rule file.
package blocklist

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// Rule is a single blocklist entry. A rule matches when every populated
// selector matches; rules are evaluated top-down and the first match wins.
type Rule struct {
	// Host is a glob pattern matched against the claimed virtual host.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	// CIDR restricts the rule to peers inside the given network.
	CIDR string `yaml:"cidr,omitempty" json:"cidr,omitempty"`
	// Intents restricts the rule to the named handshake intents; empty
	// matches all intents.
	Intents []string `yaml:"intents,omitempty" json:"intents,omitempty"`
	// Action is "allow" or "deny".
	Action string `yaml:"action" json:"action"`
	// Reason is shown to denied peers. Optional; a generic reason is used
	// when absent.
	Reason string `yaml:"reason,omitempty" json:"reason,omitempty"`

	network *net.IPNet
}

// RuleSet is the parsed and compiled rule file.
type RuleSet struct {
	Version string `yaml:"version" json:"version"`
	// Default is applied when no rule matches: "allow" or "deny".
	Default string `yaml:"default" json:"default"`
	Rules   []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// Load reads, schema-validates, and compiles a YAML rule file.
func Load(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading blocklist rules: %w", err)
	}
	return Parse(data)
}

// Parse validates and compiles rule file content.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parsing blocklist rules: %w", err)
	}

	if err := validateSchema(&rs); err != nil {
		return nil, fmt.Errorf("invalid blocklist rules: %w", err)
	}

	for i := range rs.Rules {
		rule := &rs.Rules[i]
		if rule.CIDR != "" {
			_, network, err := net.ParseCIDR(rule.CIDR)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid cidr %q: %w", i, rule.CIDR, err)
			}
			rule.network = network
		}
		if rule.Host == "" && rule.CIDR == "" {
			return nil, fmt.Errorf("rule %d: needs at least one of host or cidr", i)
		}
	}

	return &rs, nil
}

// validateSchema checks the decoded rule set against the embedded JSON
// Schema. YAML decodes to Go structs, so the value is round-tripped through
// JSON to get the plain document shape the validator expects.
func validateSchema(rs *RuleSet) error {
	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(rulesSchema))
	if err != nil {
		return fmt.Errorf("parsing embedded schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("blocklist.schema.json", schemaDoc); err != nil {
		return fmt.Errorf("adding schema resource: %w", err)
	}
	schema, err := compiler.Compile("blocklist.schema.json")
	if err != nil {
		return fmt.Errorf("compiling schema: %w", err)
	}

	raw, err := json.Marshal(rs)
	if err != nil {
		return fmt.Errorf("marshaling rules for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("unmarshaling rules for validation: %w", err)
	}

	return schema.Validate(doc)
}
