// Package arch defines the architecture-neutral instruction model the code
// differ and display projector operate on, plus the registry architecture
// packages (ppc, mips, arm, x86) install their decoders into.
package arch

import "github.com/emutools/objdiff/pkg/obj"

// OperandKind discriminates the payload an Operand carries, mirroring the
// tagged-union style the teacher used for its own operand-value type
// (pkg/utils + the cucaracha instruction set's OperandValue).
type OperandKind int

const (
	OperandImmediate OperandKind = iota
	OperandRegister
	OperandSymbol
	OperandBranchTarget
	OperandMemory
)

// Operand is one decoded operand of an Instruction. Exactly the fields
// matching Kind are meaningful; callers switch on Kind rather than probing
// zero values.
type Operand struct {
	Kind OperandKind

	Immediate int64
	Register  string

	// Symbol/BranchTarget: resolved from the owning section's relocation at
	// this operand's byte range, if any.
	SymbolName string
	TargetAddr uint64

	// Memory: base register plus signed displacement, e.g. "4(r3)".
	BaseRegister string
	Displacement int64

	// HasReloc/RelocTarget carry the relocation attached to this operand (if
	// any) through to pkg/flow, which resolves RelocTarget against the
	// owning Object's symbol table itself rather than needing operand
	// display names pre-resolved.
	HasReloc    bool
	RelocTarget obj.SymbolIndex
}

// Instruction is one decoded machine instruction, architecture-neutral
// enough for pkg/diff to compare across architectures it doesn't itself
// understand (spec.md §5: "the differ never switches on architecture").
type Instruction struct {
	Address  uint64
	Size     int
	Mnemonic string
	Operands []Operand

	// Raw is the undecoded instruction bytes, used as a last-resort compare
	// when a decoder fails (spec.md §5 "Decode failure" edge case).
	Raw []byte
}

// Decoder decodes a single instruction at the front of code, returning the
// Instruction and whichever relocation (if any) targets a byte within it.
type Decoder interface {
	Decode(code []byte, addr uint64, rel *obj.Relocation) (Instruction, error)
}

// ModeHint is decode-mode guidance DecodeRange derives from container
// metadata that spans more than a single instruction (e.g. ARM's "$a"/"$t"/
// "$d" ELF mapping symbols), for decoders whose instruction mode can't be
// inferred from trial decoding alone.
type ModeHint int

const (
	HintNone ModeHint = iota
	HintARM
	HintThumb
	HintData
)

// HintedDecoder is implemented by decoders that want ModeHint guidance.
// DecodeRange prefers it over Decode when both the decoder implements it
// and the architecture has mode metadata to offer.
type HintedDecoder interface {
	DecodeHinted(code []byte, addr uint64, rel *obj.Relocation, hint ModeHint) (Instruction, error)
}

var decoders = map[obj.Architecture]Decoder{}

// Register installs a Decoder for an Architecture. Called from each arch
// subpackage's init(), the same registration shape pkg/obj uses for
// implicit-addend functions, so pkg/arch itself never imports ppc/mips/arm/x86
// and those packages stay free to import pkg/arch and pkg/obj without a cycle.
func Register(a obj.Architecture, d Decoder) {
	decoders[a] = d
}

// For returns the registered Decoder for an architecture, if any.
func For(a obj.Architecture) (Decoder, bool) {
	d, ok := decoders[a]
	return d, ok
}
