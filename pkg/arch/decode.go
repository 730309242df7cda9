package arch

import (
	"sort"
	"strings"

	"github.com/emutools/objdiff/pkg/obj"
)

// DecodeRange decodes every instruction in [sym.Address, sym.Address+sym.Size)
// of its owning section, relocation-aware per instruction. A decode failure
// on one instruction does not abort the run: the byte at the failure point
// is emitted as a 1-byte raw Instruction and decoding resumes at the next
// address, per spec.md §5 "Decode failure" edge case.
//
// For architectures whose registered decoder implements HintedDecoder (ARM),
// a mapping-symbol pre-pass over the owning section classifies each address
// as ARM/Thumb/Data before decoding, rather than leaving the decoder to
// trial-decode blind (spec.md §5 ARM "$a"/"$t"/"$d" mapping symbols).
func DecodeRange(o *obj.Object, sym obj.Symbol) ([]Instruction, error) {
	dec, ok := For(o.Architecture)
	if !ok {
		return nil, obj.ErrUnsupported
	}
	sec := &o.Sections[sym.Section]

	start := sym.Address - sec.Address
	end := start + sym.Size
	if end > uint64(len(sec.Data)) {
		end = uint64(len(sec.Data))
	}

	hd, hinted := dec.(HintedDecoder)
	var bounds []modeBoundary
	if hinted && o.Architecture == obj.ArchARM {
		bounds = armMappingModes(o, sym)
	}

	var out []Instruction
	addr := sym.Address
	for off := start; off < end; {
		code := sec.Data[off:end]
		// Widest instruction this tool decodes (x86) is 15 bytes; a
		// relocation's offset always falls somewhere inside the
		// instruction it patches, so this window can't miss one while
		// still letting the decoder itself pin down the exact operand.
		const maxInstructionWidth = 16
		var relPtr *obj.Relocation
		if rel, hasRel := sec.RelocationAt(off, maxInstructionWidth); hasRel {
			relPtr = &rel
		}

		var inst Instruction
		var err error
		if hinted && bounds != nil {
			inst, err = hd.DecodeHinted(code, addr, relPtr, hintFromMode(modeAt(bounds, addr)))
		} else {
			inst, err = dec.Decode(code, addr, relPtr)
		}
		if err != nil || inst.Size == 0 {
			out = append(out, Instruction{Address: addr, Size: 1, Mnemonic: ".byte", Raw: code[:1]})
			off++
			addr++
			continue
		}

		out = append(out, inst)
		off += uint64(inst.Size)
		addr += uint64(inst.Size)
	}
	return out, nil
}

// mappingMode is one ARM ELF mapping-symbol mode.
type mappingMode int

const (
	modeARM mappingMode = iota
	modeThumb
	modeData
)

type modeBoundary struct {
	addr uint64
	mode mappingMode
}

// armMappingModes collects the ARM mapping symbols ("$a"/"$t"/"$d") covering
// sym's owning section, sorted by address. disambiguateSymbolNames (pkg/obj)
// appends " N" to duplicate names, so matching strips everything from the
// first space rather than comparing for exact equality.
func armMappingModes(o *obj.Object, sym obj.Symbol) []modeBoundary {
	var bounds []modeBoundary
	for _, s := range o.Symbols {
		if s.Section != sym.Section {
			continue
		}
		if mode, ok := mappingModeOf(s.Name); ok {
			bounds = append(bounds, modeBoundary{addr: s.Address, mode: mode})
		}
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].addr < bounds[j].addr })
	return bounds
}

func mappingModeOf(name string) (mappingMode, bool) {
	if i := strings.IndexByte(name, ' '); i >= 0 {
		name = name[:i]
	}
	switch name {
	case "$a":
		return modeARM, true
	case "$t":
		return modeThumb, true
	case "$d":
		return modeData, true
	}
	return 0, false
}

// modeAt returns the mapping mode in effect at addr, defaulting to ARM when
// a section carries no mapping symbol at or before addr.
func modeAt(bounds []modeBoundary, addr uint64) mappingMode {
	mode := modeARM
	for _, b := range bounds {
		if b.addr > addr {
			break
		}
		mode = b.mode
	}
	return mode
}

func hintFromMode(m mappingMode) ModeHint {
	switch m {
	case modeThumb:
		return HintThumb
	case modeData:
		return HintData
	default:
		return HintARM
	}
}
