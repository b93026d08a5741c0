package embedded

import "fmt"

// Enum represents an enumeration in the firmware. It maps enumerator names
// to integer values; duplicated names are rejected unless they carry the
// same value.
type Enum struct {
	name   string
	values map[string]int64
	order  []string
}

// NewEnum creates an empty enum with the given name.
func NewEnum(name string) *Enum {
	return &Enum{
		name:   name,
		values: make(map[string]int64),
	}
}

// Name returns the name of the enum.
func (e *Enum) Name() string {
	return e.name
}

// AddValue adds an enumerator name/value pair. Adding the same name twice
// with a different value is an error.
func (e *Enum) AddValue(name string, value int64) error {
	if existing, ok := e.values[name]; ok {
		if existing != value {
			return fmt.Errorf("duplicate enumerator %q in enum %q: can be either %d or %d",
				name, e.name, existing, value)
		}
		return nil
	}
	e.values[name] = value
	e.order = append(e.order, name)
	return nil
}

// Value returns the value associated with an enumerator name.
func (e *Enum) Value(name string) (int64, error) {
	v, ok := e.values[name]
	if !ok {
		return 0, fmt.Errorf("%q is not a valid name for enum %q", name, e.name)
	}
	return v, nil
}

// HasValue reports whether the enum defines an enumerator with that name.
func (e *Enum) HasValue(name string) bool {
	_, ok := e.values[name]
	return ok
}

// FirstNameOf returns the first enumerator name carrying the wanted value,
// in declaration order. Enums may map several names to the same value.
func (e *Enum) FirstNameOf(wanted int64) (string, bool) {
	for _, name := range e.order {
		if e.values[name] == wanted {
			return name, true
		}
	}
	return "", false
}

// Names returns all enumerator names in declaration order.
func (e *Enum) Names() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// Values returns a copy of the name to value mapping.
func (e *Enum) Values() map[string]int64 {
	out := make(map[string]int64, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// HasSignedValue reports whether any enumerator value is negative. Used to
// guess the underlying storage signedness when the debug info does not say.
func (e *Enum) HasSignedValue() bool {
	for _, v := range e.values {
		if v < 0 {
			return true
		}
	}
	return false
}

// Copy returns an independent copy of the enum.
func (e *Enum) Copy() *Enum {
	out := NewEnum(e.name)
	for _, name := range e.order {
		out.values[name] = e.values[name]
		out.order = append(out.order, name)
	}
	return out
}
