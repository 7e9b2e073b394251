package registry

import (
	"github.com/samber/lo"
)

// Args holds the parsed values of a task's parameters.
type Args struct {
	values map[string]any
	set    map[string]bool
}

// NewArgs builds Args from explicit values, all marked as set. Composite
// tasks and tests use it to call a task without a command line.
func NewArgs(values map[string]any) Args {
	a := Args{values: map[string]any{}, set: map[string]bool{}}
	for k, v := range values {
		a.values[k] = v
		a.set[k] = true
	}
	return a
}

func newArgs(params []Param) Args {
	a := Args{values: map[string]any{}, set: map[string]bool{}}
	for _, p := range params {
		a.values[p.Name] = p.Default
	}
	return a
}

func (a Args) put(name string, v any) {
	a.values[name] = v
	a.set[name] = true
}

// IsSet reports whether name was given explicitly.
func (a Args) IsSet(name string) bool {
	return a.set[name]
}

// String returns a string value, or "" when unset.
func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

// Bool returns a boolean value.
func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Int returns an integer value.
func (a Args) Int(name string) int {
	i, _ := a.values[name].(int)
	return i
}

// Float returns a float value.
func (a Args) Float(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

// Map returns a copy of all values, leaving out unset nil defaults.
func (a Args) Map() map[string]any {
	return lo.PickBy(a.values, func(_ string, v any) bool { return v != nil })
}
