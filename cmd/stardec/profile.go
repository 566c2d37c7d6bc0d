package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// extractProfile is a reusable extraction configuration loaded from YAML:
//
//	patterns:
//	  - 'Data/.*\.dcb$'
//	  - '\.xml$'
//	out: ./extracted
//	workers: 8
//	overwrite: true
//
// Command-line flags that were set explicitly win over profile values.
type extractProfile struct {
	Patterns  []string `yaml:"patterns"`
	Out       string   `yaml:"out"`
	Workers   int      `yaml:"workers"`
	Overwrite bool     `yaml:"overwrite"`
}

func loadProfile(path string) (*extractProfile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile: %w", err)
	}
	var profile extractProfile
	if err := yaml.UnmarshalStrict(raw, &profile); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	return &profile, nil
}
