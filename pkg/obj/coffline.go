package obj

// extractCOFFLineInfo decodes each section's IMAGE_LINENUMBER table into
// Section.LineInfo, per spec.md §4.2. Each 6-byte record is either a
// function marker (Linenumber == 0; the 4-byte field names the function's
// .bf auxiliary symbol and carries no address) or a line entry (the 4-byte
// field is a section-relative virtual address, Linenumber is the 1-based
// source line relative to the enclosing function's first line).
func extractCOFFLineInfo(o *Object, data []byte, order ccfByteOrder, symTabPtr uint32, sections []coffSection, rawSyms []coffRawSymbol, numaux []int) error {
	const lineRecordSize = 6

	for _, s := range sections {
		if s.ourIndex < 0 || s.nlnno == 0 {
			continue
		}
		sec := &o.Sections[s.ourIndex]

		base := uint64(0)
		for r := 0; r < int(s.nlnno); r++ {
			off := s.lnnoptr + uint32(r)*lineRecordSize
			if int(off+lineRecordSize) > len(data) {
				break
			}
			rec := data[off : off+lineRecordSize]
			field := order.Uint32(rec[0:4])
			lineNum := order.Uint16(rec[4:6])

			if lineNum == 0 {
				// Function-start marker: field is a symbol table index
				// for the associated .bf aux record, whose value is the
				// base source line objdiff reports subsequent deltas
				// against (spec.md §4.2).
				if int(field) < len(rawSyms) {
					base = coffFunctionBaseLine(data, order, symTabPtr, field, numaux)
				}
				continue
			}

			addr := uint64(field)
			sec.LineInfo[addr] = uint32(base) + uint32(lineNum)
		}
	}
	return nil
}

// coffFunctionBaseLine reads the starting source line out of a function
// symbol's .bf auxiliary record (the linenumber field of IMAGE_AUX_SYMBOL),
// which classic COFF toolchains emit as the aux entry immediately following
// the function's primary symbol-table entry.
func coffFunctionBaseLine(data []byte, order ccfByteOrder, symTabPtr, symIdx uint32, numaux []int) uint64 {
	if int(symIdx) >= len(numaux) || numaux[symIdx] == 0 {
		return 0
	}
	auxOff := symTabPtr + (symIdx+1)*coffSymbolSize
	if int(auxOff+coffSymbolSize) > len(data) {
		return 0
	}
	aux := data[auxOff : auxOff+coffSymbolSize]
	return uint64(order.Uint16(aux[4:6]))
}
