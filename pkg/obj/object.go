package obj

import (
	"encoding/binary"
	"sort"
)

// Architecture identifies the instruction set an Object's Code sections are
// encoded in.
type Architecture int

const (
	ArchUnknown Architecture = iota
	ArchPPC
	ArchMIPS
	ArchARM
	ArchX86
)

func (a Architecture) String() string {
	switch a {
	case ArchPPC:
		return "ppc"
	case ArchMIPS:
		return "mips"
	case ArchARM:
		return "arm"
	case ArchX86:
		return "x86"
	default:
		return "unknown"
	}
}

// Object is one parsed compiled file: its section list, a flat symbol list
// indexed by SymbolIndex, detected architecture, endianness, word size and
// optional split-object metadata (spec.md §3). An Object is immutable after
// Parse returns; diffs borrow Objects by reference and never mutate them.
type Object struct {
	Path         string
	Architecture Architecture
	ByteOrder    binary.ByteOrder
	WordSize     int // 4 or 8

	Sections []Section
	Symbols  []Symbol

	SplitMeta *SplitMetadata

	// flow holds the PPC data-flow analyzer's per-function annotation
	// tables, keyed by function symbol index. Filled through SetFlowTable
	// by callers of pkg/flow (pkg/report does so) and cached here because it is expensive to recompute and
	// the Object is immutable for the rest of its lifetime (spec.md §3:
	// "stored alongside the Object after parse").
	flow map[SymbolIndex]FlowTable
}

// FlowTable is an opaque per-function table keyed by (instruction address,
// operand index), as specified in spec.md §3. The concrete value type is
// filled in by pkg/flow; obj only needs to cache and hand back the table, so
// it is declared here as a plain map of operand key to annotation string,
// which avoids an import cycle between obj and flow.
type FlowTable = map[FlowKey]string

// FlowKey identifies one annotated operand within a function.
type FlowKey struct {
	Address    uint64
	OperandIdx int
}

// FlowTableFor returns the cached data-flow annotation table for a function
// symbol, if one has been computed and stored via SetFlowTable.
func (o *Object) FlowTableFor(sym SymbolIndex) (FlowTable, bool) {
	t, ok := o.flow[sym]
	return t, ok
}

// SetFlowTable caches a computed data-flow annotation table for a function
// symbol so repeated diffs against this Object don't re-run the analysis.
func (o *Object) SetFlowTable(sym SymbolIndex, table FlowTable) {
	if o.flow == nil {
		o.flow = make(map[SymbolIndex]FlowTable)
	}
	o.flow[sym] = table
}

// Section returns a pointer to the section with the given name, or nil.
func (o *Object) Section(name string) *Section {
	for i := range o.Sections {
		if o.Sections[i].Name == name {
			return &o.Sections[i]
		}
	}
	return nil
}

// SectionContaining returns the section owning the given address, or nil.
func (o *Object) SectionContaining(addr uint64) *Section {
	for i := range o.Sections {
		s := &o.Sections[i]
		if addr >= s.Address && addr < s.Address+s.Size {
			return s
		}
	}
	return nil
}

// SymbolsInSection returns the indices of all symbols belonging to the
// given section index, sorted by (address, size) as required for Code
// sections by spec.md §3 invariant (b).
func (o *Object) SymbolsInSection(sectionIndex int) []SymbolIndex {
	var out []SymbolIndex
	for i := range o.Symbols {
		if o.Symbols[i].Section == sectionIndex {
			out = append(out, SymbolIndex(i))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := o.Symbols[out[i]], o.Symbols[out[j]]
		if a.Address != b.Address {
			return a.Address < b.Address
		}
		return a.Size < b.Size
	})
	return out
}
