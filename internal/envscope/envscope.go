// Package envscope scopes process environment overrides to a bounded region
// and builds explicit environments for child processes.
package envscope

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// ErrRestored is returned when a snapshot is restored more than once.
var ErrRestored = errors.New("environment snapshot already restored")

type entry struct {
	key     string
	value   string
	present bool
}

// Snapshot holds the prior state of every variable touched by Apply.
// It is consumed by exactly one Restore.
type Snapshot struct {
	entries  []entry
	restored bool
}

// Apply sets every override in the process environment and returns the
// snapshot needed to undo it. Keys are applied in sorted order. If setting a
// key fails, the keys applied so far are restored before returning.
func Apply(overrides map[string]string) (*Snapshot, error) {
	snap := &Snapshot{}
	for _, key := range sortedKeys(overrides) {
		prev, ok := os.LookupEnv(key)
		if err := os.Setenv(key, overrides[key]); err != nil {
			if rerr := snap.Restore(); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return nil, fmt.Errorf("set %s: %w", key, err)
		}
		snap.entries = append(snap.entries, entry{key: key, value: prev, present: ok})
	}
	return snap, nil
}

// Restore puts back prior values and unsets variables that did not exist
// before Apply. Entries are undone in reverse order.
func (s *Snapshot) Restore() error {
	if s.restored {
		return ErrRestored
	}
	s.restored = true

	var errs []error
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.present {
			if err := os.Setenv(e.key, e.value); err != nil {
				errs = append(errs, fmt.Errorf("restore %s: %w", e.key, err))
			}
			continue
		}
		if err := os.Unsetenv(e.key); err != nil {
			errs = append(errs, fmt.Errorf("unset %s: %w", e.key, err))
		}
	}
	return errors.Join(errs...)
}

// Keys returns the variables captured by the snapshot.
func (s *Snapshot) Keys() []string {
	return lo.Map(s.entries, func(e entry, _ int) string { return e.key })
}

// With applies overrides for the duration of fn. The environment is
// restored on every exit path, including a panic in fn.
func With(overrides map[string]string, fn func() error) (err error) {
	snap, err := Apply(overrides)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := snap.Restore(); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return fn()
}

// Overlay returns base with overrides applied, in KEY=VALUE form, leaving
// the process environment untouched. Entries of base keep their order;
// new keys are appended in sorted order.
func Overlay(base []string, overrides map[string]string) []string {
	out := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}
	for _, key := range sortedKeys(overrides) {
		if !seen[key] {
			out = append(out, key+"="+overrides[key])
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
