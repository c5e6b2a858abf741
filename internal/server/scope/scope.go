// Package scope enumerates the capabilities an identity can hold and
// provides a small set type for containment checks.
package scope

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/khazana/internal/common"
)

type Scope string

const (
	Me               Scope = "me"
	Admin            Scope = "admin"
	TransactionRead  Scope = "transaction_read"
	TransactionWrite Scope = "transaction_write"
)

// catalog order is the canonical order used when a Set is rendered.
var catalog = []Scope{Me, Admin, TransactionRead, TransactionWrite}

// All returns every recognised scope in canonical order.
func All() []Scope {
	out := make([]Scope, len(catalog))
	copy(out, catalog)
	return out
}

func (s Scope) Known() bool {
	for _, c := range catalog {
		if c == s {
			return true
		}
	}
	return false
}

func (s Scope) String() string { return string(s) }

// Set is an unordered collection of scopes.
type Set map[Scope]struct{}

func NewSet(scopes ...Scope) Set {
	s := make(Set, len(scopes))
	for _, sc := range scopes {
		s[sc] = struct{}{}
	}
	return s
}

// Parse builds a Set from scope names. Duplicates collapse; blank names are
// skipped. An unknown name is a validation error.
func Parse(names []string) (Set, error) {
	s := make(Set, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		sc := Scope(n)
		if !sc.Known() {
			return nil, fmt.Errorf("%w: unknown scope %q", common.ErrValidation, n)
		}
		s[sc] = struct{}{}
	}
	return s, nil
}

// FromStrings builds a Set without validation. Unknown names are kept so that
// containment checks against them fail naturally.
func FromStrings(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[Scope(n)] = struct{}{}
	}
	return s
}

func (s Set) Has(sc Scope) bool {
	_, ok := s[sc]
	return ok
}

// SubsetOf reports whether every member of s is also in other.
func (s Set) SubsetOf(other Set) bool {
	for sc := range s {
		if !other.Has(sc) {
			return false
		}
	}
	return true
}

// Missing returns the members of required absent from s, in canonical order.
func (s Set) Missing(required Set) []Scope {
	var out []Scope
	for _, sc := range required.Sorted() {
		if !s.Has(sc) {
			out = append(out, sc)
		}
	}
	return out
}

func (s Set) Intersect(other Set) Set {
	out := make(Set)
	for sc := range s {
		if other.Has(sc) {
			out[sc] = struct{}{}
		}
	}
	return out
}

// Sorted returns catalog scopes first in canonical order, then any unknown
// members alphabetically.
func (s Set) Sorted() []Scope {
	out := make([]Scope, 0, len(s))
	for _, c := range catalog {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	var extra []string
	for sc := range s {
		if !sc.Known() {
			extra = append(extra, string(sc))
		}
	}
	if len(extra) > 0 {
		slices.Sort(extra)
		for _, e := range extra {
			out = append(out, Scope(e))
		}
	}
	return out
}

func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, sc := range sorted {
		out[i] = string(sc)
	}
	return out
}

// String renders the set as a comma-separated list, the form used in logs.
func (s Set) String() string {
	return strings.Join(s.Strings(), ",")
}
