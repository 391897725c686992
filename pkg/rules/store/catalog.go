package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"meridian-hq/veristat/pkg/rules/ast"
)

// Catalog declares the closed set of record categories and the instruments
// the engine knows how to validate. Catalogs are authored alongside the rule
// tree and loaded once at startup.
type Catalog struct {
	// Categories is the closed set of packet classifications.
	Categories []string `yaml:"categories"`

	// Instruments maps instrument names to their declarations.
	Instruments map[string]*ast.Instrument `yaml:"instruments"`
}

// LoadCatalog reads and validates an instrument catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CatalogError{Path: path, Message: "failed to read catalog", Cause: err}
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, &CatalogError{Path: path, Message: "failed to parse catalog", Cause: err}
	}

	if len(cat.Categories) == 0 {
		return nil, &CatalogError{Path: path, Message: "catalog declares no categories"}
	}
	if len(cat.Instruments) == 0 {
		return nil, &CatalogError{Path: path, Message: "catalog declares no instruments"}
	}

	for name, inst := range cat.Instruments {
		if inst == nil {
			return nil, &CatalogError{Path: path, Message: fmt.Sprintf("instrument %q has no declaration", name)}
		}
		if inst.Name == "" {
			inst.Name = name
		}
		if inst.Kind == "" {
			inst.Kind = ast.KindStatic
		}
		if err := validateInstrument(inst); err != nil {
			return nil, &CatalogError{Path: path, Message: fmt.Sprintf("instrument %q", name), Cause: err}
		}
	}

	return &cat, nil
}

// Instrument returns the declaration for a named instrument.
func (c *Catalog) Instrument(name string) (*ast.Instrument, bool) {
	inst, ok := c.Instruments[name]
	return inst, ok
}

// HasCategory reports whether the catalog declares the given category.
func (c *Catalog) HasCategory(category string) bool {
	for _, known := range c.Categories {
		if known == category {
			return true
		}
	}
	return false
}

// validateInstrument enforces the tagged-union invariants: dynamic
// instruments need a discriminant field and at least one variant, static
// instruments must not declare either.
func validateInstrument(inst *ast.Instrument) error {
	switch inst.Kind {
	case ast.KindStatic:
		if inst.DiscriminantField != "" || len(inst.Variants) > 0 {
			return fmt.Errorf("static instrument must not declare discriminant or variants")
		}
	case ast.KindDynamic:
		if inst.DiscriminantField == "" {
			return fmt.Errorf("dynamic instrument must declare a discriminant field")
		}
		if len(inst.Variants) == 0 {
			return fmt.Errorf("dynamic instrument must declare at least one variant")
		}
		for value, ruleID := range inst.Variants {
			if value == "" || ruleID == "" {
				return fmt.Errorf("variant mapping entries must be non-empty")
			}
		}
	default:
		return fmt.Errorf("unknown instrument kind %q", inst.Kind)
	}

	inst.DiscriminantField = ast.CanonicalFieldName(inst.DiscriminantField)
	return nil
}
