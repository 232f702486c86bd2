package view

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UseCase is a named access mode selecting which handler variant
// applies to an entity type. It is a plain capability struct: behavior
// differences between variants are data, not subclasses.
type UseCase struct {
	// Name labels the use case. The empty name denotes the default
	// read-write handler.
	Name string `yaml:"name"`
	// AllowWrite enables the nested write operations.
	AllowWrite bool `yaml:"allow_write"`
	// DefaultDepth is the eager-loading depth applied when a request
	// does not carry an explicit depth parameter.
	DefaultDepth int `yaml:"default_depth"`
}

// Predefined use cases.
var (
	// ReadWrite is the default use case: full read and deep write.
	ReadWrite = UseCase{Name: "", AllowWrite: true, DefaultDepth: 10}

	// ReadOnly exposes deep reads only.
	ReadOnly = UseCase{Name: "ReadOnly", AllowWrite: false, DefaultDepth: 10}
)

type yamlUseCases struct {
	UseCases []UseCase `yaml:"use_cases"`
}

// UseCasesFromYAML loads use-case definitions from a configuration
// document:
//
//	use_cases:
//	  - {name: Public, allow_write: false, default_depth: 2}
func UseCasesFromYAML(data []byte) ([]UseCase, error) {
	var doc yamlUseCases
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("deepview: use cases: decode yaml: %w", err)
	}
	for i, uc := range doc.UseCases {
		if uc.DefaultDepth < 0 {
			return nil, fmt.Errorf("deepview: use case %q: negative default depth %d", uc.Name, uc.DefaultDepth)
		}
		if uc.Name == "" && !uc.AllowWrite {
			return nil, fmt.Errorf("deepview: use case %d: the default (unnamed) use case must allow writes", i)
		}
	}
	return doc.UseCases, nil
}
