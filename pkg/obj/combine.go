package obj

// combineSections merges all retained sections of the given kind into the
// first one encountered, rewriting section indices on every Symbol and
// Relocation that referenced a merged-away section, per spec.md §4.1
// "Section combining" (objdiff-core merges .data/.rodata/.bss or .text/.init
// so split-compiler output lines up with a single-section original).
//
// Addresses and relocation offsets are rebased by the byte offset the
// section's data lands at inside the combined section; LineInfo keys, which
// are addresses, are rebased the same way.
func combineSections(o *Object, kind SectionKind) {
	var keep int = -1
	remap := make(map[int]int, len(o.Sections)) // old index -> new (possibly combined) index
	var delta = make(map[int]uint64, len(o.Sections))

	for i := range o.Sections {
		remap[i] = i
	}

	var merged []Section
	for i := range o.Sections {
		s := &o.Sections[i]
		if s.Kind != kind {
			merged = append(merged, *s)
			remap[i] = len(merged) - 1
			continue
		}
		if keep == -1 {
			keep = len(merged)
			merged = append(merged, *s)
			remap[i] = keep
			delta[i] = 0
			continue
		}

		dst := &merged[keep]
		off := align(uint64(len(dst.Data)), 4)
		dst.Data = append(dst.Data[:off:off], s.Data...)
		for addr, line := range s.LineInfo {
			dst.LineInfo[off+addr] = line
		}
		for _, r := range s.Relocations {
			r.Offset += off
			dst.Relocations = append(dst.Relocations, r)
		}
		dst.Size = uint64(len(dst.Data))

		remap[i] = keep
		delta[i] = off
	}

	if keep == -1 {
		return
	}

	o.Sections = merged
	for i := range o.Symbols {
		sym := &o.Symbols[i]
		if !sym.HasSection() {
			continue
		}
		if d, ok := delta[sym.Section]; ok {
			sym.Address += d
		}
		sym.Section = remap[sym.Section]
	}
}

func align(v uint64, to uint64) uint64 {
	if to == 0 {
		return v
	}
	if r := v % to; r != 0 {
		return v + (to - r)
	}
	return v
}
