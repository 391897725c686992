package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"meridian-hq/veristat/pkg/rules/ast"
)

// Config contains configuration for the rule store.
type Config struct {
	// Root is the directory holding one subdirectory per category.
	Root string

	// MaxFileSize is the maximum rule file size in bytes (default: 5MB).
	MaxFileSize int64

	// Extension is the rule file extension (default: ".yaml").
	Extension string
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:        root,
		MaxFileSize: 5 * 1024 * 1024,
		Extension:   ".yaml",
	}
}

// Store loads rule documents from the file system. Layout:
//
//	<root>/<category>/<instrument>.yaml          base document
//	<root>/<category>/<ruleFileID>.yaml          variant document
//
// Store is a pure reader: no caching, no fallback. Callers own both.
type Store struct {
	config *Config
}

// New creates a rule store over the given configuration.
func New(config *Config) *Store {
	if config == nil {
		config = DefaultConfig("rules")
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 5 * 1024 * 1024
	}
	if config.Extension == "" {
		config.Extension = ".yaml"
	}
	return &Store{config: config}
}

// Path returns the file path for a (category, instrument[, variant]) lookup.
// For variants the rule file identifier replaces the instrument name.
func (s *Store) Path(category, instrument, variant string) string {
	name := instrument
	if variant != "" {
		name = variant
	}
	return filepath.Join(s.config.Root, category, name+s.config.Extension)
}

// Exists reports whether the rule document for the lookup is present on
// disk, without attempting to parse it.
func (s *Store) Exists(category, instrument, variant string) bool {
	info, err := os.Stat(s.Path(category, instrument, variant))
	return err == nil && info.Mode().IsRegular()
}

// Load reads and parses the rule document for (category, instrument) or, when
// variant is non-empty, the variant document identified by the variant rule
// file ID. Field-name keys are canonicalized. Failures are reported as
// RuleLoadError with kind NotFound or Malformed.
func (s *Store) Load(category, instrument, variant string) (*ast.RuleSet, error) {
	if strings.TrimSpace(category) == "" || strings.TrimSpace(instrument) == "" {
		return nil, &RuleLoadError{
			Kind:       KindNotFound,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Cause:      fmt.Errorf("category and instrument must be non-empty"),
		}
	}

	path := s.Path(category, instrument, variant)

	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &RuleLoadError{
				Kind:       KindNotFound,
				Category:   category,
				Instrument: instrument,
				Variant:    variant,
				Path:       path,
				Cause:      err,
			}
		}
		return nil, &RuleLoadError{
			Kind:       KindNotFound,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      fmt.Errorf("failed to access file: %w", err),
		}
	}

	if !fileInfo.Mode().IsRegular() {
		return nil, &RuleLoadError{
			Kind:       KindNotFound,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      fmt.Errorf("not a regular file"),
		}
	}

	if fileInfo.Size() > s.config.MaxFileSize {
		return nil, &RuleLoadError{
			Kind:       KindMalformed,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      fmt.Errorf("file size %d bytes exceeds maximum %d bytes", fileInfo.Size(), s.config.MaxFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &RuleLoadError{
			Kind:       KindNotFound,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      fmt.Errorf("failed to read file: %w", err),
		}
	}

	if !utf8.Valid(data) {
		return nil, &RuleLoadError{
			Kind:       KindMalformed,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      fmt.Errorf("file contains invalid UTF-8 encoding"),
		}
	}

	var rs ast.RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, &RuleLoadError{
			Kind:       KindMalformed,
			Category:   category,
			Instrument: instrument,
			Variant:    variant,
			Path:       path,
			Cause:      err,
		}
	}

	canonicalize(&rs)
	return &rs, nil
}

// canonicalize rewrites all field-name keys of a parsed rule set to their
// canonical form.
func canonicalize(rs *ast.RuleSet) {
	rs.Fields = canonicalizeMap(rs.Fields)
	for i := range rs.Compatibility {
		rs.Compatibility[i].If = canonicalizeMap(rs.Compatibility[i].If)
		rs.Compatibility[i].Then = canonicalizeMap(rs.Compatibility[i].Then)
	}
}

func canonicalizeMap(in map[string]ast.FieldConstraint) map[string]ast.FieldConstraint {
	if in == nil {
		return map[string]ast.FieldConstraint{}
	}
	out := make(map[string]ast.FieldConstraint, len(in))
	for name, c := range in {
		out[ast.CanonicalFieldName(name)] = c
	}
	return out
}
