package obj

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/emutools/objdiff/pkg/utils"
)

// ParseELF parses an ELF32/64, little- or big-endian object file into an
// Object, per spec.md §4.1. It generalizes the pattern already used by the
// teacher's ELF reader (which opened a fixed 32-bit little-endian
// cucaracha ".o" via debug/elf) to arbitrary class/endianness/architecture.
func ParseELF(path string, data []byte, cfg Config) (*Object, error) {
	ef, err := elf.NewFile(newReaderAt(data))
	if err != nil {
		return nil, newParseError(path, utils.MakeError(ErrFormat, "not a valid ELF file: %v", err))
	}

	o := &Object{Path: path}
	if ef.Class == elf.ELFCLASS64 {
		o.WordSize = 8
	} else {
		o.WordSize = 4
	}
	if ef.Data == elf.ELFDATA2MSB {
		o.ByteOrder = binary.BigEndian
	} else {
		o.ByteOrder = binary.LittleEndian
	}
	o.Architecture = elfArchitecture(ef.Machine)

	secIndex := make(map[int]int) // ELF section index -> retained Section index
	for i, s := range ef.Sections {
		if s.Size == 0 {
			continue
		}
		kind := classifySection(s.Flags&elf.SHF_ALLOC != 0, s.Flags&elf.SHF_EXECINSTR != 0, s.Type == elf.SHT_NOBITS)

		var raw []byte
		if s.Type != elf.SHT_NOBITS {
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

	syms, err := ef.Symbols()
	if err != nil && len(syms) == 0 {
		// Objects with no symbol table (rare, stripped) are still valid.
		syms = nil
	}

	rawSyms := elfAppendSymbols(o, syms, secIndex)

	if err := readArchRelocations(o, ef, secIndex, rawSyms); err != nil {
		return nil, newParseError(path, err)
	}

	disambiguateSymbolNames(o)
	elideLocalLabels(o)

	if err := loadSplitMeta(o); err != nil {
		// Split metadata is optional and best-effort; a bad section does
		// not fail the parse (spec.md §4.2 applies the same policy to the
		// sibling line-info extractors).
		o.SplitMeta = nil
	}

	if cfg.CombineDataSections {
		combineSections(o, SectionData)
	}
	if cfg.CombineTextSections {
		combineSections(o, SectionCode)
	}

	if err := extractDWARF2LineInfo(o, ef); err != nil {
		// best-effort, see §4.2
	}
	if err := extractDWARF1LineInfo(o); err != nil {
		// best-effort, see §4.2; legacy MIPS/early-PPC toolchains only.
	}
	if err := extractMDebugLineInfo(o); err != nil {
		// best-effort, see §4.2; MIPS .mdebug toolchains only.
	}

	ensureNonEmptySections(o)

	return o, nil
}

func elfArchitecture(m elf.Machine) Architecture {
	switch m {
	case elf.EM_PPC:
		return ArchPPC
	case elf.EM_MIPS:
		return ArchMIPS
	case elf.EM_ARM:
		return ArchARM
	case elf.EM_386, elf.EM_X86_64:
		return ArchX86
	default:
		return ArchUnknown
	}
}

// rawSymInfo records, for every raw ELF symbol-table entry, how it maps
// onto our retained Symbol list so relocations (which reference symbols by
// raw table index) can resolve correctly even for STT_SECTION symbols we
// deliberately don't surface in the public list (spec.md §4.1).
type rawSymInfo struct {
	ourIndex   SymbolIndex // valid if isSection == false
	isSection  bool
	sectionIdx int // valid if isSection == true
	ok         bool
}

// elfAppendSymbols builds the visible Symbol list and returns the raw ELF
// symbol table index -> rawSymInfo map used by relocation resolution.
// debug/elf.File.Symbols excludes the implicit null symbol at index 0, so
// raw index i (1-based, as relocation r_info encodes it) maps to syms[i-1].
func elfAppendSymbols(o *Object, syms []elf.Symbol, secIndex map[int]int) []rawSymInfo {
	raw := make([]rawSymInfo, len(syms)+1) // index 0 is the null symbol

	for i, s := range syms {
		st := elf.ST_TYPE(s.Info)
		rawIdx := i + 1

		secIdx, ok := secIndex[int(s.Section)]
		if !ok {
			continue // symbol belongs to a dropped/absent section
		}

		if st == elf.STT_SECTION {
			raw[rawIdx] = rawSymInfo{isSection: true, sectionIdx: secIdx, ok: true}
			continue
		}
		if st != elf.STT_FUNC && st != elf.STT_OBJECT && st != elf.STT_NOTYPE {
			continue
		}

		sym := Symbol{
			Name:    s.Name,
			Address: s.Value,
			Size:    s.Size,
			Section: secIdx,
			Kind:    elfSymbolKind(st),
			Flags:   elfSymbolFlags(s),
		}
		o.Symbols = append(o.Symbols, sym)
		raw[rawIdx] = rawSymInfo{ourIndex: SymbolIndex(len(o.Symbols) - 1), ok: true}
	}
	return raw
}

func elfSymbolKind(t elf.SymType) SymbolKind {
	switch t {
	case elf.STT_FUNC:
		return SymbolFunction
	case elf.STT_OBJECT:
		return SymbolObject
	default:
		return SymbolUnknown
	}
}

func elfSymbolFlags(s elf.Symbol) SymbolFlags {
	var f SymbolFlags
	switch elf.ST_BIND(s.Info) {
	case elf.STB_GLOBAL:
		f |= FlagGlobal
	case elf.STB_LOCAL:
		f |= FlagLocal
	case elf.STB_WEAK:
		f |= FlagWeak
	}
	if s.Section == elf.SHN_COMMON {
		f |= FlagCommon
	}
	if elf.ST_VISIBILITY(s.Other) == elf.STV_HIDDEN {
		f |= FlagHidden
	}
	return f
}

func disambiguateSymbolNames(o *Object) {
	seen := make(map[string]int)
	// Reverse encounter order, per spec.md §4.1.
	for i := len(o.Symbols) - 1; i >= 0; i-- {
		name := o.Symbols[i].Name
		if name == "" {
			continue
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			o.Symbols[i].Name = fmt.Sprintf("%s %d", name, n-1)
		}
	}
}

const localLabelPrefix = "lbl_"

func elideLocalLabels(o *Object) {
	filtered := o.Symbols[:0]
	for _, s := range o.Symbols {
		if s.Section >= 0 && s.Section < len(o.Sections) &&
			o.Sections[s.Section].Kind == SectionCode &&
			len(s.Name) >= len(localLabelPrefix) && s.Name[:len(localLabelPrefix)] == localLabelPrefix &&
			s.Size == 0 {
			continue
		}
		filtered = append(filtered, s)
	}
	o.Symbols = filtered
}

func loadSplitMeta(o *Object) error {
	s := o.Section(".splitmeta")
	if s == nil {
		return nil
	}
	meta, err := ParseSplitMeta(s.Data, o.ByteOrder, o.WordSize)
	if err != nil {
		return err
	}
	meta.Apply(o.Symbols)
	o.SplitMeta = meta
	return nil
}

// extractDWARF2LineInfo populates Section.LineInfo from DWARF2+ line number
// programs, per spec.md §4.2. Only the first compilation unit's line
// program is honored; a second compile unit is logged and skipped rather
// than failing the parse, since objdiff only ever diffs single-TU object
// files.
func extractDWARF2LineInfo(o *Object, ef *elf.File) error {
	d, err := ef.DWARF()
	if err != nil {
		// No (or unparsable) DWARF is common for stripped or hand-written
		// objects; this returns silently and the dwarf1.go and mdebug.go
		// extractors, which ParseELF runs afterwards, may still fill in
		// line info.
		return nil
	}
	return walkDWARFLineProgram(o, d)
}

// walkDWARFLineProgram populates Section.LineInfo from a *dwarf.Data's line
// number program, honoring only the first compilation unit (spec.md §4.2:
// objdiff only ever diffs single-TU object files; a second unit is skipped
// rather than failing the parse). Shared by the ELF and Mach-O readers,
// since both expose the identical debug/dwarf type.
func walkDWARFLineProgram(o *Object, d *dwarf.Data) error {
	r := d.Reader()
	seenUnit := false
	for {
		entry, err := r.Next()
		if err != nil || entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		if seenUnit {
			slog.Warn("only the first DWARF compilation unit is read", "path", o.Path)
			break
		}
		seenUnit = true

		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			if !le.IsStmt {
				continue
			}
			sec := o.SectionContaining(uint64(le.Address))
			if sec == nil {
				continue
			}
			sec.LineInfo[uint64(le.Address)] = uint32(le.Line)
		}
	}
	return nil
}

// ensureNonEmptySections synthesizes a dummy `[<section>]` symbol spanning
// any retained section with no symbols, per spec.md §8 "Empty section"
// boundary behavior.
func ensureNonEmptySections(o *Object) {
	for i := range o.Sections {
		if o.Sections[i].Kind == SectionUnknown {
			continue
		}
		hasSymbol := false
		for _, s := range o.Symbols {
			if s.Section == i {
				hasSymbol = true
				break
			}
		}
		if !hasSymbol {
			o.Symbols = append(o.Symbols, Symbol{
				Name:    "[" + o.Sections[i].Name + "]",
				Address: o.Sections[i].Address,
				Size:    o.Sections[i].Size,
				Section: i,
				Kind:    SymbolUnknown,
				Flags:   FlagSizeInferred,
			})
		}
	}
}
