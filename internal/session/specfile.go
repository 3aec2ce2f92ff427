package session

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"specforge/internal/types"
)

// SpecFile is the YAML document a session runs:
//
//	title: Greeter
//	language: Go
//	features:
//	  - print hello
//	increments:
//	  - name: flags
//	    features:
//	      - accept a --name flag
type SpecFile struct {
	Title      string      `yaml:"title"`
	Language   string      `yaml:"language"`
	Features   []string    `yaml:"features"`
	Increments []Increment `yaml:"increments"`
}

// Increment is a batch of features appended before a follow-up cycle.
type Increment struct {
	Name     string   `yaml:"name"`
	Features []string `yaml:"features"`
}

// LoadSpecFile reads and validates a spec file.
func LoadSpecFile(path string) (*SpecFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read spec file: %w", err)
	}

	var f SpecFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse spec file %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spec file %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks that the file names what to build.
func (f *SpecFile) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(f.Language) == "" {
		return fmt.Errorf("language is required")
	}
	if len(f.Specification().Features) == 0 {
		return fmt.Errorf("at least one feature is required")
	}
	for i, inc := range f.Increments {
		if len(types.Specification{}.WithFeatures(inc.Features...).Features) == 0 {
			return fmt.Errorf("increment %d (%s) has no features", i+1, inc.Name)
		}
	}
	return nil
}

// Specification returns the base specification, before any increment.
func (f *SpecFile) Specification() types.Specification {
	return types.Specification{Title: f.Title, Language: f.Language}.WithFeatures(f.Features...)
}

// Full returns the specification with every increment applied.
func (f *SpecFile) Full() types.Specification {
	spec := f.Specification()
	for _, inc := range f.Increments {
		spec = spec.WithFeatures(inc.Features...)
	}
	return spec
}
