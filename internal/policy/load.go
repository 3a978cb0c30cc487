package policy

import (
	"fmt"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// FromViper builds a validated policy from the given viper instance,
// starting from defaults so a partial config file works.
//
// Configuration hierarchy (highest to lowest priority):
//  1. Environment variables (VERACITY_*)
//  2. Config file
//  3. Defaults
func FromViper(v *viper.Viper) (Policy, error) {
	p := Default()
	if sub := v.Sub("policy"); sub != nil {
		if err := sub.Unmarshal(&p); err != nil {
			return Policy{}, fmt.Errorf("unmarshal policy: %w", err)
		}
	}
	return New(p)
}

// MarshalYAML renders the policy as YAML for `policy show` style output
func MarshalYAML(p Policy) (string, error) {
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal policy: %w", err)
	}
	return string(data), nil
}
