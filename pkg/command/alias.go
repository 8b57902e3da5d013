// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     command
// Description: Commands, switches and the process-scoped command registry
// Author:      Mike Stoffels
// Created:     2026-09-17
// License:     MIT
// ============================================================================

package command

import (
	"sort"
)

// AliasSet is a set of alternative dispatch keys for one entity
type AliasSet map[string]struct{}

// NewAliasSet returns a set holding names
func NewAliasSet(names ...string) AliasSet {
	s := make(AliasSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Add inserts name
func (s AliasSet) Add(name string) {
	s[name] = struct{}{}
}

// Has reports whether name is in the set
func (s AliasSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of aliases
func (s AliasSet) Len() int {
	return len(s)
}

// Sorted returns the aliases in lexical order
func (s AliasSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuildAliases joins every base variant with every sub variant by a single
// space. The canonical pair baseCanonical+" "+subCanonical is the primary key
// and is never part of the result.
func BuildAliases(baseCanonical string, baseAliases []string, subCanonical string, subAliases []string) AliasSet {
	bases := append([]string{baseCanonical}, baseAliases...)
	subs := append([]string{subCanonical}, subAliases...)
	canonical := baseCanonical + " " + subCanonical

	out := make(AliasSet, len(bases)*len(subs))
	for _, b := range bases {
		for _, s := range subs {
			out.Add(b + " " + s)
		}
	}
	delete(out, canonical)
	return out
}
