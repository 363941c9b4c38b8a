package domain

// Opt is one field of a partial patch. The zero value leaves the target
// untouched; Set overwrites it, including with nil or zero values.
type Opt[T any] struct {
	value T
	set   bool
}

// Set returns a field that overwrites the target with v.
func Set[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// Get returns the carried value and whether the field is set.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the field participates in the patch.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Apply writes the value into dst when set.
func (o Opt[T]) Apply(dst *T) {
	if o.set {
		*dst = o.value
	}
}
