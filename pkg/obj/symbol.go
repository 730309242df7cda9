package obj

// SymbolIndex identifies a Symbol by its stable position within an Object's
// flat symbol list. Indices are stable for the lifetime of the Object.
type SymbolIndex int

// SymbolKind classifies what a Symbol names.
type SymbolKind int

const (
	SymbolUnknown SymbolKind = iota
	SymbolFunction
	SymbolObject
	SymbolSection
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolFunction:
		return "function"
	case SymbolObject:
		return "object"
	case SymbolSection:
		return "section"
	default:
		return "unknown"
	}
}

// SymbolFlags is a bitset, spec.md §3: "flag set ⊆ {Global, Local, Weak,
// Common, Hidden, HasExtra, SizeInferred, Ignored}".
type SymbolFlags uint16

const (
	FlagGlobal SymbolFlags = 1 << iota
	FlagLocal
	FlagWeak
	FlagCommon
	FlagHidden
	FlagHasExtra
	FlagSizeInferred
	FlagIgnored
)

func (f SymbolFlags) Has(flag SymbolFlags) bool { return f&flag != 0 }

// Symbol is a named (or anonymous) region of a Section.
type Symbol struct {
	Name           string
	DemangledName  string // empty if not demangled / not applicable
	Address        uint64
	Size           uint64
	Section        int  // index into Object.Sections, -1 if none
	Kind           SymbolKind
	Flags          SymbolFlags
	VirtualAddress *uint64 // from split metadata, nil if absent
	Alignment      *uint64
}

// SizeInferred reports whether Size was computed from the distance to the
// next symbol rather than read from the container's symbol table.
func (s *Symbol) SizeInferred() bool { return s.Flags.Has(FlagSizeInferred) }

// HasSection reports whether the symbol belongs to a retained section.
func (s *Symbol) HasSection() bool { return s.Section >= 0 }

// BaseName strips architecture-specific relocation suffixes such as
// "@sda21" or "@h"/"@l" used by some assemblers to tag the hi/lo half of a
// split address reference, so callers can look symbols up by their real
// name. Mirrors the stripping cucaracha's SymbolReference.BaseName did for
// its own "@lo"/"@hi" suffixes, generalized to the relocation-suffix forms
// seen across the architectures this tool parses.
func (s *Symbol) BaseName() string {
	if i := indexByte(s.Name, '@'); i >= 0 {
		return s.Name[:i]
	}
	return s.Name
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
