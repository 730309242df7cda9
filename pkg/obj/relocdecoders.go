package obj

import (
	"bytes"
	"debug/elf"
	"io"
)

// ImplicitAddendFunc computes the addend for a Rel-style relocation (one
// with no explicit addend field) by reading the instruction word the
// relocation patches, per spec.md §3: "The addend may be explicit or
// implicit; when implicit the architecture-specific decoder supplies it by
// reading the instruction word."
type ImplicitAddendFunc func(sectionData []byte, offset uint64, relType uint32) int64

var implicitAddendFuncs = map[Architecture]ImplicitAddendFunc{}

// RegisterImplicitAddend lets an arch package (pkg/arch/ppc, mips, arm,
// x86) install its implicit-addend reader without obj importing arch and
// creating a cycle — the same "driver registration" pattern database/sql
// uses for its drivers.
func RegisterImplicitAddend(a Architecture, fn ImplicitAddendFunc) {
	implicitAddendFuncs[a] = fn
}

func newReaderAt(data []byte) io.ReaderAt {
	return bytes.NewReader(data)
}

func readArchRelocations(o *Object, ef *elf.File, secIndex map[int]int, rawSyms []rawSymInfo) error {
	implicit := implicitAddendFuncs[o.Architecture]

	for i, s := range ef.Sections {
		if s.Type != elf.SHT_REL && s.Type != elf.SHT_RELA {
			continue
		}
		targetELFIdx := int(s.Info)
		targetIdx, ok := secIndex[targetELFIdx]
		if !ok {
			continue
		}
		raw, err := s.Data()
		if err != nil {
			continue
		}

		entrySize := 8
		if o.WordSize == 8 {
			entrySize = 16
		}
		if s.Type == elf.SHT_RELA {
			entrySize += o.WordSize
		}

		for off := 0; off+entrySize <= len(raw); off += entrySize {
			entry := raw[off : off+entrySize]
			var offset uint64
			var symIdx uint32
			var relType uint32
			var addend int64
			var hasAddend bool

			bo := o.ByteOrder

			if o.WordSize == 8 {
				offset = bo.Uint64(entry[0:8])
				info := bo.Uint64(entry[8:16])
				symIdx = uint32(info >> 32)
				relType = uint32(info & 0xffffffff)
				if s.Type == elf.SHT_RELA {
					addend = int64(bo.Uint64(entry[16:24]))
					hasAddend = true
				}
			} else {
				offset = uint64(bo.Uint32(entry[0:4]))
				info := bo.Uint32(entry[4:8])
				symIdx = info >> 8
				relType = info & 0xff
				if s.Type == elf.SHT_RELA {
					addend = int64(int32(bo.Uint32(entry[8:12])))
					hasAddend = true
				}
			}

			targetSym, ok := elfResolveSymbolIndex(o, rawSyms, symIdx, targetIdx, addend)
			if !ok {
				continue
			}

			if !hasAddend && implicit != nil {
				sec := &o.Sections[targetIdx]
				addend = implicit(sec.Data, offset, relType)
			}

			o.Sections[targetIdx].Relocations = append(o.Sections[targetIdx].Relocations, Relocation{
				Offset: offset,
				Flags:  relType,
				Target: targetSym,
				Addend: addend,
			})
		}
	}
	return nil
}

// elfResolveSymbolIndex maps a raw ELF symbol-table index to our
// SymbolIndex. If the ELF symbol is a SECTION symbol, the parser searches
// the target section for a named symbol at the addend offset; failing
// that, it synthesizes a nameless placeholder with SizeInferred set, per
// spec.md §4.1.
func elfResolveSymbolIndex(o *Object, rawSyms []rawSymInfo, rawIdx uint32, targetSection int, addend int64) (SymbolIndex, bool) {
	if int(rawIdx) >= len(rawSyms) {
		return 0, false
	}
	info := rawSyms[rawIdx]
	if !info.ok {
		return 0, false
	}
	if !info.isSection {
		return info.ourIndex, true
	}

	target := addend
	if target < 0 {
		target = 0
	}
	for i := range o.Symbols {
		s := &o.Symbols[i]
		if s.Section == info.sectionIdx && s.Address == uint64(target) && s.Name != "" {
			return SymbolIndex(i), true
		}
	}

	placeholder := Symbol{
		Name:    "",
		Address: uint64(target),
		Section: info.sectionIdx,
		Kind:    SymbolUnknown,
		Flags:   FlagSizeInferred,
	}
	o.Symbols = append(o.Symbols, placeholder)
	return SymbolIndex(len(o.Symbols) - 1), true
}