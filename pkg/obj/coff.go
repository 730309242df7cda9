package obj

import (
	"github.com/emutools/objdiff/pkg/utils"
)

// COFF machine type constants (file header IMAGE_FILE_MACHINE_*), per
// spec.md §4.1. debug/pe only parses linked PE images, not bare ".obj"
// object files, so unlinked COFF is parsed by hand here end to end.
const (
	coffMachineI386  = 0x014c
	coffMachineAMD64 = 0x8664
	coffMachinePPC   = 0x01f0
	coffMachineARM   = 0x01c0
	coffMachineARMNT = 0x01c4
)

const (
	coffFileHeaderSize    = 20
	coffSectionHeaderSize = 40
	coffSymbolSize        = 18
	coffRelocationSize    = 10
)

// coffSectionFlags, the subset objdiff cares about for kind classification.
const (
	coffSTYPCode = 0x00000020
	coffSTYPData = 0x00000040
	coffSTYPBss  = 0x00000080
)

// coffSection is the decoded form of one IMAGE_SECTION_HEADER, tracked
// alongside the index it landed at in the Object's retained Section list
// (-1 if dropped for having zero size).
type coffSection struct {
	name      string
	size      uint32
	scnptr    uint32
	relptr    uint32
	nreloc    uint16
	lnnoptr   uint32
	nlnno     uint16
	flags     uint32
	ourIndex  int
	dataBytes []byte
}

// ParseCOFF parses an unlinked COFF object file (as produced by classic
// Windows/DOS-era x86 and PPC toolchains) into an Object, per spec.md §4.1.
func ParseCOFF(path string, data []byte, cfg Config) (*Object, error) {
	if len(data) < coffFileHeaderSize {
		return nil, newParseError(path, utils.MakeError(ErrFormat, "COFF header truncated"))
	}

	order := coffByteOrder(data)

	machine := order.Uint16(data[0:2])
	nsections := int(order.Uint16(data[2:4]))
	symTabPtr := order.Uint32(data[8:12])
	nsyms := int(order.Uint32(data[12:16]))

	o := &Object{Path: path, ByteOrder: order, WordSize: 4}
	o.Architecture = coffArchitecture(machine)
	if o.Architecture == ArchX86 && machine == coffMachineAMD64 {
		o.WordSize = 8
	}

	strTabOff := symTabPtr + uint32(nsyms)*coffSymbolSize
	strTab := []byte{}
	if int(strTabOff)+4 <= len(data) {
		strLen := order.Uint32(data[strTabOff : strTabOff+4])
		end := strTabOff + strLen
		if int(end) <= len(data) {
			strTab = data[strTabOff:end]
		}
	}

	sections := make([]coffSection, 0, nsections)

	headerOff := coffFileHeaderSize
	for i := 0; i < nsections; i++ {
		off := headerOff + i*coffSectionHeaderSize
		if off+coffSectionHeaderSize > len(data) {
			break
		}
		h := data[off : off+coffSectionHeaderSize]
		name := coffSectionName(h[0:8], strTab)
		size := order.Uint32(h[16:20])
		scnptr := order.Uint32(h[20:24])
		relptr := order.Uint32(h[24:28])
		lnnoptr := order.Uint32(h[28:32])
		nreloc := order.Uint16(h[32:34])
		nlnno := order.Uint16(h[34:36])
		flags := order.Uint32(h[36:40])

		var raw []byte
		if flags&coffSTYPBss == 0 && size > 0 && int(scnptr+size) <= len(data) {
			raw = data[scnptr : scnptr+size]
		} else {
			raw = make([]byte, size)
		}

		sections = append(sections, coffSection{
			name: name, size: size, scnptr: scnptr, relptr: relptr,
			nreloc: nreloc, lnnoptr: lnnoptr, nlnno: nlnno,
			flags: flags, ourIndex: -1, dataBytes: raw,
		})
	}

	for i := range sections {
		s := &sections[i]
		if s.size == 0 {
			continue
		}
		kind := coffSectionKind(s.flags)
		s.ourIndex = len(o.Sections)
		o.Sections = append(o.Sections, Section{
			Name:          s.name,
			Kind:          kind,
			Size:          uint64(s.size),
			Data:          s.dataBytes,
			OriginalIndex: i,
			LineInfo:      make(map[uint64]uint32),
		})
	}

	rawSyms, numaux := coffReadSymbols(o, data, order, symTabPtr, nsyms, strTab, sections)

	for _, s := range sections {
		if s.ourIndex < 0 || s.nreloc == 0 {
			continue
		}
		for r := 0; r < int(s.nreloc); r++ {
			roff := s.relptr + uint32(r)*coffRelocationSize
			if int(roff+coffRelocationSize) > len(data) {
				break
			}
			rec := data[roff : roff+coffRelocationSize]
			vaddr := order.Uint32(rec[0:4])
			symIdx := order.Uint32(rec[4:8])
			relType := uint32(order.Uint16(rec[8:10]))

			target, ok := coffResolveSymbol(o, rawSyms, symIdx)
			if !ok {
				continue
			}
			o.Sections[s.ourIndex].Relocations = append(o.Sections[s.ourIndex].Relocations, Relocation{
				Offset: uint64(vaddr),
				Flags:  relType,
				Target: target,
			})
		}
	}

	if err := extractCOFFLineInfo(o, data, order, symTabPtr, sections, rawSyms, numaux); err != nil {
		// best-effort, see §4.2
	}

	disambiguateSymbolNames(o)
	elideLocalLabels(o)

	if cfg.CombineDataSections {
		combineSections(o, SectionData)
	}
	if cfg.CombineTextSections {
		combineSections(o, SectionCode)
	}

	ensureNonEmptySections(o)
	return o, nil
}

func coffArchitecture(machine uint16) Architecture {
	switch machine {
	case coffMachineI386, coffMachineAMD64:
		return ArchX86
	case coffMachinePPC:
		return ArchPPC
	case coffMachineARM, coffMachineARMNT:
		return ArchARM
	default:
		return ArchUnknown
	}
}

func coffSectionKind(flags uint32) SectionKind {
	switch {
	case flags&coffSTYPCode != 0:
		return SectionCode
	case flags&coffSTYPBss != 0:
		return SectionBss
	case flags&coffSTYPData != 0:
		return SectionData
	default:
		return SectionUnknown
	}
}

// coffByteOrder detects endianness from the file header's flags field: COFF
// itself carries no explicit endianness marker, but every machine type this
// parser targets (x86, PPC-COFF, ARM) stores the header little-endian
// except classic big-endian PPC toolchains, which set IMAGE_FILE_BYTES_REVERSED_HI.
func coffByteOrder(data []byte) ccfByteOrder {
	if len(data) < 20 {
		return littleEndianBO{}
	}
	flags := uint16(data[18]) | uint16(data[19])<<8
	const bytesReversedHi = 0x8000
	if flags&bytesReversedHi != 0 {
		return bigEndianBO{}
	}
	return littleEndianBO{}
}

// ccfByteOrder is the binary.ByteOrder subset used while decoding the file
// header before an Object (and therefore its own ByteOrder field) exists.
type ccfByteOrder interface {
	Uint16([]byte) uint16
	Uint32([]byte) uint32
	Uint64([]byte) uint64
	String() string
}

type littleEndianBO struct{}

func (littleEndianBO) Uint16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func (littleEndianBO) Uint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
func (littleEndianBO) Uint64(b []byte) uint64 {
	return uint64(littleEndianBO{}.Uint32(b[0:4])) | uint64(littleEndianBO{}.Uint32(b[4:8]))<<32
}
func (littleEndianBO) String() string { return "LittleEndian" }

type bigEndianBO struct{}

func (bigEndianBO) Uint16(b []byte) uint16 { return uint16(b[1]) | uint16(b[0])<<8 }
func (bigEndianBO) Uint32(b []byte) uint32 {
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}
func (bigEndianBO) Uint64(b []byte) uint64 {
	return uint64(bigEndianBO{}.Uint32(b[4:8])) | uint64(bigEndianBO{}.Uint32(b[0:4]))<<32
}
func (bigEndianBO) String() string { return "BigEndian" }

func coffSectionName(raw []byte, strTab []byte) string {
	if raw[0] == 0 && raw[1] == 0 && raw[2] == 0 && raw[3] == 0 {
		off := littleEndianBO{}.Uint32(raw[4:8])
		return coffStringAt(strTab, off)
	}
	return cstringTrim(raw)
}

func coffStringAt(strTab []byte, off uint32) string {
	if int(off) >= len(strTab) {
		return ""
	}
	end := int(off)
	for end < len(strTab) && strTab[end] != 0 {
		end++
	}
	return string(strTab[off:end])
}

func cstringTrim(b []byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

// coffRawSymbol mirrors rawSymInfo for COFF, mapping raw symbol-table index
// to our retained Symbol list (or marking it a section/aux entry to skip).
type coffRawSymbol struct {
	ourIndex SymbolIndex
	ok       bool
}

// COFF storage classes this parser distinguishes (IMAGE_SYM_CLASS_*); the
// rest are treated as classStatic for visibility purposes.
const (
	coffClassExternal = 2
	coffClassStatic   = 3
)

func coffReadSymbols(o *Object, data []byte, order ccfByteOrder, symTabPtr uint32, nsyms int, strTab []byte, sections []coffSection) ([]coffRawSymbol, []int) {
	raw := make([]coffRawSymbol, nsyms)
	numaux := make([]int, nsyms)

	i := 0
	for i < nsyms {
		off := symTabPtr + uint32(i)*coffSymbolSize
		if int(off+coffSymbolSize) > len(data) {
			break
		}
		rec := data[off : off+coffSymbolSize]
		name := coffSymbolName(rec[0:8], strTab)
		value := order.Uint32(rec[8:12])
		scnum := int16(order.Uint16(rec[12:14]))
		sclass := rec[16]
		naux := int(rec[17])
		numaux[i] = naux

		if scnum >= 1 && int(scnum) <= len(sections) {
			sec := sections[scnum-1]
			if sec.ourIndex >= 0 && name != "" && name != ".text" && name != ".data" && name != ".bss" {
				flags := SymbolFlags(0)
				if sclass == coffClassExternal {
					flags |= FlagGlobal
				} else {
					flags |= FlagLocal
				}
				kind := SymbolObject
				if sec.flags&coffSTYPCode != 0 {
					kind = SymbolFunction
				}
				o.Symbols = append(o.Symbols, Symbol{
					Name:    name,
					Address: uint64(value),
					Section: sec.ourIndex,
					Kind:    kind,
					Flags:   flags,
				})
				raw[i] = coffRawSymbol{ourIndex: SymbolIndex(len(o.Symbols) - 1), ok: true}
			}
		}

		i += 1 + naux
	}
	return raw, numaux
}

func coffSymbolName(raw []byte, strTab []byte) string {
	if raw[0] == 0 && raw[1] == 0 && raw[2] == 0 && raw[3] == 0 {
		off := littleEndianBO{}.Uint32(raw[4:8])
		return coffStringAt(strTab, off)
	}
	return cstringTrim(raw)
}

func coffResolveSymbol(o *Object, rawSyms []coffRawSymbol, idx uint32) (SymbolIndex, bool) {
	if int(idx) >= len(rawSyms) {
		return 0, false
	}
	r := rawSyms[idx]
	if !r.ok {
		return 0, false
	}
	return r.ourIndex, true
}
