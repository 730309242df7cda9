package obj

import (
	"github.com/emutools/objdiff/pkg/utils"
)

// mdebugMagic is the HDRR symbolic-header magic number old MIPS toolchains
// stamp at the start of a ".mdebug" section (spec.md §4.2).
const mdebugMagic = 0x7009

// mdebugHeader mirrors the fields of the HDRR symbolic header this parser
// actually consumes; the many unrelated offsets (symbol/string/aux tables)
// the real format also carries are irrelevant to line-number extraction and
// are skipped over rather than modeled.
type mdebugHeader struct {
	magic      uint16
	lineOffset uint32
	lineLen    uint32
	fdOffset   uint32
	fdCount    uint32
}

// fdrRecord is one File Descriptor record: the subset of fields needed to
// locate a file's procedure table and its slice of the packed line stream.
type fdrRecord struct {
	address   uint64
	lineBase  uint32 // byte offset into the .line stream for this file
	lineBytes uint32
	pdrOffset uint32
	pdrCount  uint32
}

// pdrRecord is one Procedure Descriptor record.
type pdrRecord struct {
	address  uint64
	lineBase uint32 // offset within the file's line-byte range
	lineNum  uint32 // starting source line
}

const (
	hdrrSize = 96
	fdrSize  = 72
	pdrSize  = 52
)

// extractMDebugLineInfo decodes the MIPS ".mdebug" symbolic debug section's
// packed line-delta stream into Section.LineInfo, per spec.md §4.2. Absent
// the section (non-MIPS objects, or MIPS objects built with DWARF instead),
// this is a no-op.
func extractMDebugLineInfo(o *Object) error {
	s := o.Section(".mdebug")
	if s == nil {
		return nil
	}
	data := s.Data
	order := o.ByteOrder

	if len(data) < hdrrSize {
		return utils.MakeError(ErrBounds, ".mdebug: header truncated")
	}
	hdr := mdebugHeader{
		magic:      order.Uint16(data[0:2]),
		lineOffset: order.Uint32(data[8:12]),
		lineLen:    order.Uint32(data[12:16]),
		fdOffset:   order.Uint32(data[16:20]),
		fdCount:    order.Uint32(data[20:24]),
	}
	if hdr.magic != mdebugMagic {
		return utils.MakeError(ErrFormat, ".mdebug: bad magic %#x", hdr.magic)
	}
	if int(hdr.lineOffset+hdr.lineLen) > len(data) {
		return utils.MakeError(ErrBounds, ".mdebug: line stream exceeds section bounds")
	}
	lineStream := data[hdr.lineOffset : hdr.lineOffset+hdr.lineLen]

	for i := uint32(0); i < hdr.fdCount; i++ {
		off := hdr.fdOffset + i*fdrSize
		if int(off+fdrSize) > len(data) {
			break
		}
		fdr := fdrRecord{
			address:   uint64(order.Uint32(data[off : off+4])),
			pdrOffset: order.Uint32(data[off+8 : off+12]),
			pdrCount:  order.Uint32(data[off+12 : off+16]),
			lineBase:  order.Uint32(data[off+16 : off+20]),
			lineBytes: order.Uint32(data[off+20 : off+24]),
		}
		decodeFDRLines(o, order, data, lineStream, fdr)
	}
	return nil
}

func decodeFDRLines(o *Object, order fdrByteOrder, data, lineStream []byte, fdr fdrRecord) {
	for i := uint32(0); i < fdr.pdrCount; i++ {
		off := fdr.pdrOffset + i*pdrSize
		if int(off+pdrSize) > len(data) {
			break
		}
		pdr := pdrRecord{
			address:  uint64(order.Uint32(data[off : off+4])),
			lineBase: order.Uint32(data[off+8 : off+12]),
			lineNum:  order.Uint32(data[off+12 : off+16]),
		}
		decodePDRLineDeltas(o, lineStream, fdr, pdr)
	}
}

// decodePDRLineDeltas walks the packed line-delta stream for one procedure.
// Each byte encodes a signed line delta in [-7, 7]; a 0 byte followed by two
// more bytes carries a 16-bit signed delta for out-of-range jumps (typical
// MIPS compiler packed-line encoding, mirrored from the equivalent unpacking
// objdiff-core performs over the same stream shape).
func decodePDRLineDeltas(o *Object, lineStream []byte, fdr fdrRecord, pdr pdrRecord) {
	start := fdr.lineBase + pdr.lineBase
	if int(start) > len(lineStream) {
		return
	}
	stream := lineStream[start:]

	addr := pdr.address
	line := int32(pdr.lineNum)
	pos := 0
	for pos < len(stream) {
		b := stream[pos]
		pos++
		if b == 0 {
			if pos+2 > len(stream) {
				break
			}
			delta := int16(uint16(stream[pos])<<8 | uint16(stream[pos+1]))
			pos += 2
			line += int32(delta)
		} else {
			line += int32(int8(b))
		}
		if sec := o.SectionContaining(addr); sec != nil {
			sec.LineInfo[addr] = uint32(line)
		}
		addr += 4 // MIPS instructions are fixed 4 bytes wide.
	}
}

// fdrByteOrder is the minimal subset of binary.ByteOrder this file needs;
// kept as an interface alias so callers can pass Object.ByteOrder directly.
type fdrByteOrder interface {
	Uint16([]byte) uint16
	Uint32([]byte) uint32
}
