package obj

import (
	"debug/macho"

	"github.com/emutools/objdiff/pkg/utils"
)

// ParseMachO parses a Mach-O object file into an Object, per spec.md §4.1.
// debug/macho covers container/symbol/relocation parsing directly; only
// classification and relocation-target resolution need objdiff-specific
// logic layered on top, mirroring the shape of ParseELF.
func ParseMachO(path string, data []byte, cfg Config) (*Object, error) {
	mf, err := macho.NewFile(newReaderAt(data))
	if err != nil {
		return nil, newParseError(path, utils.MakeError(ErrFormat, "not a valid Mach-O file: %v", err))
	}

	o := &Object{Path: path}
	if mf.Magic == macho.Magic64 {
		o.WordSize = 8
	} else {
		o.WordSize = 4
	}
	if mf.ByteOrder.String() == "BigEndian" {
		o.ByteOrder = bigEndianBO{}
	} else {
		o.ByteOrder = littleEndianBO{}
	}
	o.Architecture = machoArchitecture(mf.Cpu)

	secIndex := make(map[int]int)
	for i, s := range mf.Sections {
		if s.Size == 0 {
			continue
		}
		kind := machoSectionKind(s.Flags, s.Name)

		var raw []byte
		if kind != SectionBss {
			raw, err = s.Data()
			if err != nil {
				return nil, newParseError(path, utils.MakeError(ErrFormat, "section %q: %v", s.Name, err))
			}
		} else {
			raw = make([]byte, s.Size)
		}

		secIndex[i] = len(o.Sections)
		o.Sections = append(o.Sections, Section{
			Name:          s.Name,
			Kind:          kind,
			Address:       s.Addr,
			Size:          s.Size,
			Data:          raw,
			OriginalIndex: i,
			LineInfo:      make(map[uint64]uint32),
		})
	}

	symSection := make([]int, 0)
	if mf.Symtab != nil {
		for _, s := range mf.Symtab.Syms {
			secIdx := int(s.Sect) - 1 // macho.Symbol.Sect is 1-based, 0 = NO_SECT
			retained, ok := secIndex[secIdx]
			if !ok {
				symSection = append(symSection, -1)
				continue
			}
			sym := Symbol{
				Name:    s.Name,
				Address: s.Value,
				Section: retained,
				Kind:    machoSymbolKind(s, mf.Sections[secIdx]),
				Flags:   machoSymbolFlags(s),
			}
			o.Symbols = append(o.Symbols, sym)
			symSection = append(symSection, len(o.Symbols)-1)
		}
	}

	if err := machoReadRelocations(o, mf, secIndex, symSection); err != nil {
		return nil, newParseError(path, err)
	}

	disambiguateSymbolNames(o)
	elideLocalLabels(o)

	if cfg.CombineDataSections {
		combineSections(o, SectionData)
	}
	if cfg.CombineTextSections {
		combineSections(o, SectionCode)
	}

	if err := machoReadLineInfo(o, mf); err != nil {
		// best-effort, see §4.2
	}

	ensureNonEmptySections(o)
	return o, nil
}

func machoArchitecture(cpu macho.Cpu) Architecture {
	switch cpu {
	case macho.CpuPpc, macho.CpuPpc64:
		return ArchPPC
	case macho.CpuArm, macho.CpuArm64:
		return ArchARM
	case macho.Cpu386, macho.CpuAmd64:
		return ArchX86
	default:
		return ArchUnknown
	}
}

func machoSectionKind(flags uint32, name string) SectionKind {
	const sectionTypeMask = 0xff
	const sAttrSomeInstructions = 0x00000400
	const sAttrPureInstructions = 0x80000000
	const sZeroFill = 0x1

	typ := flags & sectionTypeMask
	switch {
	case typ == sZeroFill:
		return SectionBss
	case flags&(sAttrPureInstructions|sAttrSomeInstructions) != 0:
		return SectionCode
	case name == "__text":
		return SectionCode
	default:
		return SectionData
	}
}

func machoSymbolKind(s macho.Symbol, sec *macho.Section) SymbolKind {
	if sec != nil && machoSectionKind(sec.Flags, sec.Name) == SectionCode {
		return SymbolFunction
	}
	return SymbolObject
}

func machoSymbolFlags(s macho.Symbol) SymbolFlags {
	var f SymbolFlags
	const (
		nExt  = 0x01
		nPext = 0x10
	)
	if s.Type&nExt != 0 {
		f |= FlagGlobal
	} else {
		f |= FlagLocal
	}
	if s.Type&nPext != 0 {
		f |= FlagHidden
	}
	return f
}

// machoReadRelocations copies debug/macho's already-decoded relocation
// entries into Object Relocations, resolving Mach-O's symbol-or-section
// addressing scheme (Extern selects a symbol, otherwise Value is a section
// index) into a SymbolIndex the same way ELF/COFF readers do.
func machoReadRelocations(o *Object, mf *macho.File, secIndex map[int]int, symSection []int) error {
	for i, s := range mf.Sections {
		dstIdx, ok := secIndex[i]
		if !ok || len(s.Relocs) == 0 {
			continue
		}
		for _, r := range s.Relocs {
			var target SymbolIndex
			var ok bool
			if r.Extern {
				if int(r.Value) < len(symSection) && symSection[r.Value] >= 0 {
					target = SymbolIndex(symSection[r.Value])
					ok = true
				}
			} else {
				target, ok = machoResolveSectionSymbol(o, int(r.Value)-1, secIndex)
			}
			if !ok {
				continue
			}
			o.Sections[dstIdx].Relocations = append(o.Sections[dstIdx].Relocations, Relocation{
				Offset: uint64(r.Addr),
				Flags:  uint32(r.Type),
				Target: target,
			})
		}
	}
	return nil
}

func machoResolveSectionSymbol(o *Object, rawSectionIdx int, secIndex map[int]int) (SymbolIndex, bool) {
	retained, ok := secIndex[rawSectionIdx]
	if !ok {
		return 0, false
	}
	placeholder := Symbol{
		Address: o.Sections[retained].Address,
		Section: retained,
		Kind:    SymbolUnknown,
		Flags:   FlagSizeInferred,
	}
	o.Symbols = append(o.Symbols, placeholder)
	return SymbolIndex(len(o.Symbols) - 1), true
}

// machoReadLineInfo extracts DWARF2+ line info from a Mach-O object's
// __DWARF segment the same way extractDWARF2LineInfo does for ELF, since
// debug/macho.File.DWARF() returns the identical *dwarf.Data type.
func machoReadLineInfo(o *Object, mf *macho.File) error {
	d, err := mf.DWARF()
	if err != nil {
		return nil
	}
	return walkDWARFLineProgram(o, d)
}
