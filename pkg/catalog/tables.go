package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var defaultTables []byte

// Tables is the raw catalog data as stored on disk. It carries no Auto
// sentinel; the registry inserts it.
type Tables struct {
	DefaultDiameter string              `yaml:"default_diameter"`
	Sizes           map[string]SizeSpec `yaml:"sizes"`
	Types           []TypeSpec          `yaml:"types"`
}

// SizeSpec is the nominal geometry of one diameter designation.
type SizeSpec struct {
	Nominal float64 `yaml:"nominal"`
	Pitch   float64 `yaml:"pitch"`
}

// TypeSpec is one catalog row.
type TypeSpec struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description"`
	Group       string               `yaml:"group"`
	Category    string               `yaml:"category"`
	Head        string               `yaml:"head"`
	Thread      *bool                `yaml:"thread,omitempty"` // nil: derived from category
	Default     string               `yaml:"default,omitempty"`
	Fixed       string               `yaml:"fixed,omitempty"`
	Diameters   []string             `yaml:"diameters"`
	Lengths     map[string][]float64 `yaml:"lengths,omitempty"`
}

// ParseTables decodes catalog YAML.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("catalog: parse tables: %w", err)
	}
	return t, nil
}

// LoadFile builds a registry from a catalog YAML file.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	t, err := ParseTables(data)
	if err != nil {
		return nil, err
	}
	return New(t)
}
