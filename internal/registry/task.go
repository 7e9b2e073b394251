// Package registry holds the named tasks chore exposes and dispatches a
// command line to one of them.
package registry

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the value kind of a parameter, inferred from its default.
type Kind int

const (
	KindString Kind = iota
	KindBool
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "string"
	}
}

// Param declares one task parameter.
type Param struct {
	Name  string
	Short string
	// Default decides the kind: string, bool, int or float64. A nil default
	// is an optional string that stays unset unless given.
	Default  any
	Required bool
	Help     string
}

// Kind returns the kind inferred from the default value.
func (p Param) Kind() Kind {
	switch p.Default.(type) {
	case bool:
		return KindBool
	case int:
		return KindInt
	case float64:
		return KindFloat
	default:
		return KindString
	}
}

// FlagName is the command-line spelling of the parameter.
func (p Param) FlagName() string {
	return strings.ReplaceAll(p.Name, "_", "-")
}

func (p Param) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidParameter)
	}
	switch p.Default.(type) {
	case nil, string, bool, int, float64:
	default:
		return fmt.Errorf("%w: %s has unsupported default type %T", ErrInvalidParameter, p.Name, p.Default)
	}
	if p.Required && p.Default != nil {
		return fmt.Errorf("%w: required %s cannot have a default", ErrInvalidParameter, p.Name)
	}
	if len(p.Short) > 1 {
		return fmt.Errorf("%w: %s short flag %q must be one letter", ErrInvalidParameter, p.Name, p.Short)
	}
	return nil
}

// parse converts a positional token to the parameter's kind.
func (p Param) parse(s string) (any, error) {
	switch p.Kind() {
	case KindBool:
		return strconv.ParseBool(s)
	case KindInt:
		return strconv.Atoi(s)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// Func implements a task.
type Func func(ctx context.Context, rt *Runtime, args Args) error

// Task is a named operation with declared parameters.
type Task struct {
	Name    string
	Aliases []string
	Params  []Param
	Help    string
	Run     Func
}

// Names returns every spelling the task answers to: its name, aliases and
// their underscore forms.
func (t *Task) Names() []string {
	var names []string
	seen := map[string]bool{}
	for _, n := range append([]string{t.Name}, t.Aliases...) {
		for _, v := range []string{n, strings.ReplaceAll(n, "-", "_"), strings.ReplaceAll(n, "_", "-")} {
			if !seen[v] {
				seen[v] = true
				names = append(names, v)
			}
		}
	}
	return names
}

// Param returns the parameter called name.
func (t *Task) Param(name string) (Param, bool) {
	for _, p := range t.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (t *Task) positional() []Param {
	var out []Param
	for _, p := range t.Params {
		if p.Required {
			out = append(out, p)
		}
	}
	return out
}
