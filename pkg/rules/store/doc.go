// Package store loads rule documents and instrument catalogs from a
// directory tree laid out as <root>/<category>/<instrument>.yaml.
//
// The store is the lowest layer of the resolution stack: it performs pure
// reads with no caching and reports failures as RuleLoadError values
// classified as NotFound or Malformed. Fallback policy and caching belong to
// pkg/rules/resolver.
package store
