// Package match pairs up symbols and sections between two Objects ahead of
// diffing, per spec.md §5 "Symbol & Section Matching". Matching is pure
// data: it never inspects instruction content, only names, addresses and
// optional user overrides.
package match

import (
	"strings"

	"github.com/emutools/objdiff/pkg/obj"
)

// SectionPair links a section in the left Object to its counterpart in the
// right Object, by index into each Object's Sections slice. Either side may
// be -1 if no counterpart exists (section added or removed).
type SectionPair struct {
	Left, Right int
}

// SymbolPair links a symbol in the left Object to its counterpart in the
// right, by SymbolIndex. Either side may be -1.
type SymbolPair struct {
	Left, Right obj.SymbolIndex
}

// Overrides carries user-specified bidirectional name remaps applied before
// automatic matching, per spec.md §5 "explicit user-provided bidirectional
// mapping overrides".
type Overrides map[string]string

// MatchSections pairs sections by exact name.
func MatchSections(left, right *obj.Object) []SectionPair {
	rightByName := make(map[string]int, len(right.Sections))
	for i, s := range right.Sections {
		rightByName[s.Name] = i
	}
	used := make(map[int]bool, len(right.Sections))

	var pairs []SectionPair
	for i, s := range left.Sections {
		if j, ok := rightByName[s.Name]; ok {
			pairs = append(pairs, SectionPair{Left: i, Right: j})
			used[j] = true
		} else {
			pairs = append(pairs, SectionPair{Left: i, Right: -1})
		}
	}
	for j := range right.Sections {
		if !used[j] {
			pairs = append(pairs, SectionPair{Left: -1, Right: j})
		}
	}
	return pairs
}

// MatchSymbols pairs symbols between two Objects using, in priority order:
// explicit overrides, exact name match, "@"-prefixed data/bss address
// match, and common-symbol match, per spec.md §5.
func MatchSymbols(left, right *obj.Object, overrides Overrides) []SymbolPair {
	rightByName := indexByName(right)
	usedRight := make(map[obj.SymbolIndex]bool, len(right.Symbols))

	var pairs []SymbolPair
	for i := range left.Symbols {
		li := obj.SymbolIndex(i)
		ls := &left.Symbols[i]

		if target, ok := overrides[ls.BaseName()]; ok {
			if ri, ok := rightByName[target]; ok && !usedRight[ri] {
				pairs = append(pairs, SymbolPair{Left: li, Right: ri})
				usedRight[ri] = true
				continue
			}
		}

		if ri, ok := rightByName[ls.Name]; ok && !usedRight[ri] {
			pairs = append(pairs, SymbolPair{Left: li, Right: ri})
			usedRight[ri] = true
			continue
		}

		if ri, ok := matchByAddress(left, right, li, usedRight); ok {
			pairs = append(pairs, SymbolPair{Left: li, Right: ri})
			usedRight[ri] = true
			continue
		}

		if ri, ok := matchCommon(left, right, li, usedRight); ok {
			pairs = append(pairs, SymbolPair{Left: li, Right: ri})
			usedRight[ri] = true
			continue
		}

		pairs = append(pairs, SymbolPair{Left: li, Right: -1})
	}

	for j := range right.Symbols {
		rj := obj.SymbolIndex(j)
		if !usedRight[rj] {
			pairs = append(pairs, SymbolPair{Left: -1, Right: rj})
		}
	}
	return pairs
}

func indexByName(o *obj.Object) map[string]obj.SymbolIndex {
	m := make(map[string]obj.SymbolIndex, len(o.Symbols))
	for i, s := range o.Symbols {
		if s.Name != "" {
			m[s.Name] = obj.SymbolIndex(i)
		}
	}
	return m
}

// matchByAddress pairs data/bss symbols by section kind + address when an
// "@"-style relocation suffix has stripped away name equality, e.g. a
// symbol referenced as "foo@sda21" on one side and plain "foo" on the
// other still share the same underlying address.
func matchByAddress(left, right *obj.Object, li obj.SymbolIndex, usedRight map[obj.SymbolIndex]bool) (obj.SymbolIndex, bool) {
	ls := left.Symbols[li]
	if !ls.HasSection() || ls.Section >= len(left.Sections) {
		return 0, false
	}
	lsec := &left.Sections[ls.Section]
	if lsec.Kind != obj.SectionData && lsec.Kind != obj.SectionBss {
		return 0, false
	}

	for j, rs := range right.Symbols {
		rj := obj.SymbolIndex(j)
		if usedRight[rj] || !rs.HasSection() || rs.Section >= len(right.Sections) {
			continue
		}
		rsec := &right.Sections[rs.Section]
		if rsec.Kind != lsec.Kind {
			continue
		}
		if rs.Address == ls.Address && strings.EqualFold(rsec.Name, lsec.Name) {
			return rj, true
		}
	}
	return 0, false
}

// matchCommon pairs COMMON-block symbols (spec.md §4.1 FlagCommon) by name
// when they weren't already resolved by an exact match, since linkers
// place COMMON symbols at whatever address they finally land at.
func matchCommon(left, right *obj.Object, li obj.SymbolIndex, usedRight map[obj.SymbolIndex]bool) (obj.SymbolIndex, bool) {
	ls := left.Symbols[li]
	if !ls.Flags.Has(obj.FlagCommon) {
		return 0, false
	}
	for j, rs := range right.Symbols {
		rj := obj.SymbolIndex(j)
		if usedRight[rj] || !rs.Flags.Has(obj.FlagCommon) {
			continue
		}
		if rs.BaseName() == ls.BaseName() {
			return rj, true
		}
	}
	return 0, false
}
