package obj

import (
	"encoding/binary"

	"github.com/emutools/objdiff/pkg/utils"
)

// SplitMetadata is the decoded content of an optional ".splitmeta" section,
// encoding provenance information for objects produced by splitting a
// monolithic binary (spec.md §4.1, GLOSSARY "Split metadata").
type SplitMetadata struct {
	Generator  string
	ModuleName string
	ModuleID   uint32
	// Virt holds the original virtual address for symbol number i, indexed
	// the same way as Object.Symbols.
	Virt []uint64
}

const splitMetaMagic = "SPMD"

// ParseSplitMeta decodes the TLV records of a ".splitmeta" section, per
// spec.md §4.1. Unknown records are skipped by their declared size; a
// truncated record yields ErrBounds rather than failing the whole parse,
// consistent with the best-effort policy for optional metadata.
func ParseSplitMeta(data []byte, order binary.ByteOrder, wordSize int) (*SplitMetadata, error) {
	if len(data) < 4 || string(data[:4]) != splitMetaMagic {
		return nil, utils.MakeError(ErrFormat, "splitmeta: bad magic")
	}

	meta := &SplitMetadata{}
	pos := 4

	for pos+8 <= len(data) {
		tag := string(data[pos : pos+4])
		size := int(order.Uint32(data[pos+4 : pos+8]))
		pos += 8

		if pos+size > len(data) {
			return meta, utils.MakeError(ErrBounds, "splitmeta: record %q size %d exceeds section bounds", tag, size)
		}
		record := data[pos : pos+size]

		switch tag {
		case "GENR":
			meta.Generator = string(record)
		case "MODN":
			meta.ModuleName = string(record)
		case "MODI":
			if len(record) >= 4 {
				meta.ModuleID = order.Uint32(record)
			}
		case "VIRT":
			meta.Virt = decodeVirtArray(record, order, wordSize)
		default:
			// Unknown records are skipped by size.
		}

		pos += size
	}

	return meta, nil
}

func decodeVirtArray(record []byte, order binary.ByteOrder, wordSize int) []uint64 {
	if wordSize == 8 {
		out := make([]uint64, len(record)/8)
		for i := range out {
			out[i] = order.Uint64(record[i*8 : i*8+8])
		}
		return out
	}
	out := make([]uint64, len(record)/4)
	for i := range out {
		out[i] = uint64(order.Uint32(record[i*4 : i*4+4]))
	}
	return out
}

// Apply annotates symbols with their original virtual address, indexed by
// symbol number, per spec.md §4.1.
func (m *SplitMetadata) Apply(symbols []Symbol) {
	for i := range symbols {
		if i < len(m.Virt) {
			v := m.Virt[i]
			symbols[i].VirtualAddress = &v
		}
	}
}
