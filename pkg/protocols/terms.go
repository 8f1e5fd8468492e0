package protocols

import (
	"sort"

	"golang.org/x/text/cases"
)

// FoldTerm returns the case-folded form used for every term comparison.
func FoldTerm(s string) string {
	// Caser is stateful, so each call gets its own.
	return cases.Fold().String(s)
}

// TermSet is an immutable set of case-folded terms.
type TermSet struct {
	terms map[string]struct{}
}

// NewTermSet folds items into a set. Empty strings are ignored.
func NewTermSet(items ...string) TermSet {
	terms := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		terms[FoldTerm(item)] = struct{}{}
	}
	return TermSet{terms: terms}
}

// Len returns the number of distinct terms.
func (s TermSet) Len() int {
	return len(s.terms)
}

// Empty reports whether the set has no terms.
func (s TermSet) Empty() bool {
	return len(s.terms) == 0
}

// Contains reports whether the folded form of term is in the set.
func (s TermSet) Contains(term string) bool {
	_, ok := s.terms[FoldTerm(term)]
	return ok
}

// ContainsAny reports whether any of items is in the set.
func (s TermSet) ContainsAny(items []string) bool {
	if s.Empty() {
		return false
	}
	for _, item := range items {
		if s.Contains(item) {
			return true
		}
	}
	return false
}

// Terms returns the folded terms in sorted order.
func (s TermSet) Terms() []string {
	out := make([]string, 0, len(s.terms))
	for t := range s.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
