package obj

import (
	"github.com/emutools/objdiff/pkg/utils"
)

// extractDWARF1LineInfo decodes a legacy DWARF 1.1 ".line" section into
// Section.LineInfo, per spec.md §4.2. DWARF1 predates debug/dwarf's line
// table support entirely (the stdlib package only understands DWARF2+), so
// this format is parsed by hand directly from the raw section bytes.
//
// Layout (per section, MIPS/early-PPC toolchains): a 4-byte section-relative
// size, a 4-byte base address, then a packed stream of
// (line uint16, statement-pos uint8, address-delta uint32) tuples running to
// the end of the declared size.
func extractDWARF1LineInfo(o *Object) error {
	s := o.Section(".line")
	if s == nil {
		return nil
	}
	data := s.Data
	order := o.ByteOrder

	const tupleSize = 2 + 1 + 4
	pos := 0
	for pos+8 <= len(data) {
		size := order.Uint32(data[pos : pos+4])
		base := order.Uint32(data[pos+4 : pos+8])
		pos += 8

		end := pos + int(size)
		if end > len(data) {
			return utils.MakeError(ErrBounds, ".line: record size %d exceeds section bounds", size)
		}

		addr := uint64(base)
		for pos+tupleSize <= end {
			line := order.Uint16(data[pos : pos+2])
			// data[pos+2] is the statement-position byte; objdiff only
			// tracks line numbers, not column/statement markers.
			delta := order.Uint32(data[pos+3 : pos+7])
			pos += tupleSize

			addr += uint64(delta)
			if sec := o.SectionContaining(addr); sec != nil {
				sec.LineInfo[addr] = uint32(line)
			}
		}
		pos = end
	}
	return nil
}
