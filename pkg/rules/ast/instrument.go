package ast

// InstrumentKind discriminates the instrument tagged union.
type InstrumentKind string

const (
	// KindStatic marks an instrument with one rule document per category.
	KindStatic InstrumentKind = "static"

	// KindDynamic marks an instrument whose rule document is selected per
	// record by a discriminant field.
	KindDynamic InstrumentKind = "dynamic"
)

// Instrument is a named validation unit corresponding to one logical
// data-entry form.
//
// A static instrument resolves directly to its base rule document. A dynamic
// instrument additionally declares DiscriminantField and a map from
// discriminant value to variant rule file identifier; exactly one variant is
// selected per record at resolution time, falling back to the base document
// when the discriminant cannot be resolved.
type Instrument struct {
	// Name identifies the instrument and names its base rule file.
	Name string `yaml:"name"`

	// Kind is the union tag. Defaults to KindStatic when empty.
	Kind InstrumentKind `yaml:"kind,omitempty"`

	// DiscriminantField is the record field whose value selects a variant.
	// Only meaningful for dynamic instruments.
	DiscriminantField string `yaml:"discriminant,omitempty"`

	// Variants maps canonical discriminant values to variant rule file
	// identifiers. Only meaningful for dynamic instruments.
	Variants map[string]string `yaml:"variants,omitempty"`
}

// IsDynamic reports whether the instrument selects rule variants at runtime.
func (i *Instrument) IsDynamic() bool {
	return i.Kind == KindDynamic
}
