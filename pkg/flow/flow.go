// Package flow implements the PPC data-flow analyzer: an abstract
// interpreter that tracks what value flows into each operand of each
// instruction in a function, so the differ can annotate an immediate as
// "this is really input register 3" instead of just a bare number
// (spec.md §5 "PPC data-flow analysis").
package flow

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
)

// ValueKind is the lattice's lowest-level discriminant: Unknown is the
// bottom element, Variable the top (spec.md §5 lattice: "Unknown <
// {IntConstant|FloatConstant|DoubleConstant|InputRegister(n)|Symbol(idx)} <
// Variable").
type ValueKind int

const (
	Unknown ValueKind = iota
	IntConstant
	FloatConstant
	DoubleConstant
	InputRegister
	Symbol
	Variable
)

// Value is one lattice element attached to a register at a program point.
type Value struct {
	Kind ValueKind

	Int         int64           // IntConstant: the raw 32-bit pattern.
	Float       float64         // FloatConstant/DoubleConstant.
	Reg         string          // InputRegister: the entry register's canonical name ("r3", "f1").
	Str         string          // Symbol: the resolved symbol/string text.
	SymbolIndex obj.SymbolIndex // Symbol: the target symbol's index.
}

// Join computes the lattice join of two values observed for the same
// register from different incoming edges: equal values stay themselves,
// Unknown on one side yields the other side's value, and any other pair
// (including either side already being Variable) widens to Variable, since
// the analysis no longer knows a single constant value reaches that program
// point.
func Join(a, b Value) Value {
	if a == b {
		return a
	}
	if a.Kind == Unknown {
		return b
	}
	if b.Kind == Unknown {
		return a
	}
	return Value{Kind: Variable}
}

// maxVisitedBranches bounds the worklist so a function with unbounded
// (or cyclic) control flow can't hang the analyzer, per spec.md §5 "256
// branch visit cap".
const maxVisitedBranches = 256

// registerState tracks the lattice value of every register at one program
// point, across the two parallel register files the ISA exposes: 32 GPRs
// and 32 FPRs (spec.md §5 "Two parallel register files").
type registerState struct {
	gpr [32]Value
	fpr [32]Value
}

// Analyze runs the data-flow analysis over one function's decoded
// instructions and returns the per-(address, operand) annotation table,
// matching the shape obj.FlowTable expects so callers can cache it via
// Object.SetFlowTable. o is the owning Object, needed to resolve
// relocation targets and their data for the load-inference and
// save/restore-stub rules.
func Analyze(o *obj.Object, insts []arch.Instruction) obj.FlowTable {
	table := make(obj.FlowTable)
	if len(insts) == 0 {
		return table
	}

	byAddr := make(map[uint64]int, len(insts))
	for i, in := range insts {
		byAddr[in.Address] = i
	}

	initial := registerState{}
	for r := 3; r <= 13; r++ { // r3-r13: PPC EABI integer argument registers.
		initial.gpr[r] = Value{Kind: InputRegister, Reg: fmt.Sprintf("r%d", r)}
	}
	for f := 1; f <= 13; f++ { // f1-f13: PPC EABI float argument registers.
		initial.fpr[f] = Value{Kind: InputRegister, Reg: fmt.Sprintf("f%d", f)}
	}

	type work struct {
		idx   int
		state registerState
	}
	queue := []work{{idx: 0, state: initial}}
	visited := make(map[int]registerState)
	branchesVisited := 0

	// First pass: walk the control-flow graph to a fixed point, tracking
	// only the register lattice at each instruction's entry. Annotations
	// are deliberately not recorded here: a register can still widen to
	// Variable on a later-arriving join, and writing the table mid-walk
	// would leave stale entries from a premature, not-yet-joined visit.
	for len(queue) > 0 && branchesVisited < maxVisitedBranches {
		w := queue[0]
		queue = queue[1:]

		if prev, ok := visited[w.idx]; ok {
			merged := joinStates(prev, w.state)
			if merged == prev {
				continue
			}
			w.state = merged
		}
		visited[w.idx] = w.state

		if w.idx >= len(insts) {
			continue
		}
		in := insts[w.idx]
		next := transition(o, in, w.state)

		if isUnconditionalBranch(in) {
			branchesVisited++
			if target, ok := byAddr[branchTargetOf(in)]; ok {
				queue = append(queue, work{idx: target, state: next})
			}
			continue
		}
		if isConditionalBranch(in) {
			branchesVisited++
			if target, ok := byAddr[branchTargetOf(in)]; ok {
				queue = append(queue, work{idx: target, state: next})
			}
		}
		queue = append(queue, work{idx: w.idx + 1, state: next})
	}

	// Second pass: now that every instruction's entry state has reached
	// its fixed point, emit annotations from that final state.
	for idx, state := range visited {
		if idx < 0 || idx >= len(insts) {
			continue
		}
		annotate(o, insts[idx], state, table)
	}

	return table
}

func joinStates(a, b registerState) registerState {
	var out registerState
	for i := range out.gpr {
		out.gpr[i] = Join(a.gpr[i], b.gpr[i])
	}
	for i := range out.fpr {
		out.fpr[i] = Join(a.fpr[i], b.fpr[i])
	}
	return out
}

// annotate emits the operand annotation(s) for one instruction given its
// fixed-point entry state (spec.md §5 "for each instruction and each source
// operand ... record a textual annotation derived from the operand's
// register's current content"). Run only after the worklist in Analyze has
// converged, so a register that widens to Variable on some incoming edge
// never leaves behind a stale annotation from an earlier, not-yet-joined
// visit.
//
// Source operands start at index 1 (index 0 is normally the destination),
// except for stores, where index 0 is the value being stored rather than a
// destination. A register source is annotated with its tracked value, when
// known. A relocation-carrying memory operand is left alone unless the load
// it feeds resolves to an actual constant (the relocation display already
// names the bare symbol, so a Symbol-only result adds nothing).
func annotate(o *obj.Object, in arch.Instruction, state registerState, table obj.FlowTable) {
	start := 1
	if isStoreMnemonic(in.Mnemonic) {
		start = 0
	}
	for opIdx := start; opIdx < len(in.Operands); opIdx++ {
		op := in.Operands[opIdx]
		switch op.Kind {
		case arch.OperandRegister:
			v := lookupRegister(state, op.Register)
			if v.Kind == Unknown || v.Kind == Variable {
				continue
			}
			table[obj.FlowKey{Address: in.Address, OperandIdx: opIdx}] = describe(v)
		case arch.OperandMemory:
			if !op.HasReloc {
				continue
			}
			if v, _, _, ok := inferLoadValue(o, in, state); ok {
				if v.Kind == IntConstant || v.Kind == FloatConstant || v.Kind == DoubleConstant {
					table[obj.FlowKey{Address: in.Address, OperandIdx: opIdx}] = describe(v)
				}
			}
		}
	}
}

// transition applies one instruction's effect on the register state and
// returns the successor state, with no side effects on the annotation
// table (see annotate). This implements spec.md §5's effect table.
func transition(o *obj.Object, in arch.Instruction, state registerState) registerState {
	next := state

	if isSaveRestoreStub(o, in) {
		// Calls to the compiler-generated register save/restore helpers
		// don't perturb the tracked registers: their real effect (spilling
		// r14-r31/f14-f31 to the stack) is opaque to this analysis and
		// irrelevant to operand annotation.
		return next
	}

	if v, fpr, idx, ok := inferLoadValue(o, in, state); ok {
		if fpr {
			next.fpr[idx] = v
		} else {
			next.gpr[idx] = v
		}
		return next
	}

	switch in.Mnemonic {
	case "or":
		// The decoder never emits the assembler's "mr" pseudo-op, only the
		// real "or RA,RS,RB" X-form it aliases; a register move is "or
		// rA,rB,rB" with RS==RB.
		if len(in.Operands) == 3 && sameRegister(in.Operands[1], in.Operands[2]) {
			if rd, rs := gprNum(in.Operands[0].Register), gprNum(in.Operands[1].Register); rd >= 0 && rs >= 0 {
				next.gpr[rd] = state.gpr[rs]
				return next
			}
		}
	case "fmr":
		if len(in.Operands) == 2 {
			if fd, fs := fprNum(in.Operands[0].Register), fprNum(in.Operands[1].Register); fd >= 0 && fs >= 0 {
				next.fpr[fd] = state.fpr[fs]
				return next
			}
		}
	case "addi", "addic":
		if applyAddImmediate(o, in, state, &next) {
			return next
		}
	case "lmw":
		if len(in.Operands) > 0 {
			if rd := gprNum(in.Operands[0].Register); rd >= 0 {
				for r := rd; r <= 31; r++ {
					next.gpr[r] = Value{Kind: Variable}
				}
			}
		}
		return next
	case "bl", "bcctr", "bcctrl":
		clearVolatiles(&next)
		return next
	}

	if idx, ok := updateBaseRegisterIndex(in); ok {
		if ra := gprNum(in.Operands[idx].Register); ra >= 0 {
			next.gpr[ra] = Value{Kind: Variable}
		}
	}

	if isStoreMnemonic(in.Mnemonic) {
		return next
	}

	if len(in.Operands) > 0 && in.Operands[0].Kind == arch.OperandRegister {
		reg := in.Operands[0].Register
		if rd := gprNum(reg); rd >= 0 {
			next.gpr[rd] = Value{Kind: Variable}
		} else if fd := fprNum(reg); fd >= 0 {
			next.fpr[fd] = Value{Kind: Variable}
		}
	}
	return next
}

// applyAddImmediate implements the "addi rA,r0,simm -> IntConstant" and
// "@stringBase" special cases for "addi"/"addic". It reports whether it
// produced a value; the caller falls back to the default destination-clear
// when it returns false.
func applyAddImmediate(o *obj.Object, in arch.Instruction, state registerState, next *registerState) bool {
	if len(in.Operands) != 3 {
		return false
	}
	dst, base, imm := in.Operands[0], in.Operands[1], in.Operands[2]
	if dst.Kind != arch.OperandRegister || base.Kind != arch.OperandRegister || imm.Kind != arch.OperandImmediate {
		return false
	}
	rd := gprNum(dst.Register)
	ra := gprNum(base.Register)
	if rd < 0 || ra < 0 {
		return false
	}
	simm := imm.Immediate
	if ra == 0 {
		next.gpr[rd] = Value{Kind: IntConstant, Int: simm}
		return true
	}
	if simm == 0 {
		return false
	}
	baseVal := state.gpr[ra]
	if baseVal.Kind != Symbol {
		return false
	}
	text, ok := resolveStringLiteral(o, baseVal, simm)
	if !ok {
		return false
	}
	next.gpr[rd] = Value{Kind: Symbol, Str: text, SymbolIndex: baseVal.SymbolIndex}
	return true
}

// inferLoadValue implements "load instructions with a relocation" (spec.md
// §5): lfs/lfd reading a constant symbol's bytes infer Float/DoubleConstant;
// any other load with a relocated memory operand infers Symbol(target).
func inferLoadValue(o *obj.Object, in arch.Instruction, state registerState) (v Value, isFPR bool, regIdx int, ok bool) {
	if in.Mnemonic == "lmw" || !strings.HasPrefix(in.Mnemonic, "l") {
		return Value{}, false, 0, false
	}
	if len(in.Operands) == 0 || in.Operands[0].Kind != arch.OperandRegister {
		return Value{}, false, 0, false
	}
	var memOp *arch.Operand
	for i := range in.Operands {
		if in.Operands[i].Kind == arch.OperandMemory && in.Operands[i].HasReloc {
			memOp = &in.Operands[i]
			break
		}
	}
	if memOp == nil {
		return Value{}, false, 0, false
	}
	sym, ok := o.TargetSymbol(obj.Relocation{Target: memOp.RelocTarget})
	if !ok {
		return Value{}, false, 0, false
	}

	destReg := in.Operands[0].Register
	if fd := fprNum(destReg); fd >= 0 {
		if in.Mnemonic == "lfs" || in.Mnemonic == "lfd" {
			if fv, ok := readFloatSymbol(o, sym, in.Mnemonic == "lfd"); ok {
				return fv, true, fd, true
			}
		}
		return Value{Kind: Symbol, Str: sym.BaseName(), SymbolIndex: memOp.RelocTarget}, true, fd, true
	}
	if rd := gprNum(destReg); rd >= 0 {
		return Value{Kind: Symbol, Str: sym.BaseName(), SymbolIndex: memOp.RelocTarget}, false, rd, true
	}
	return Value{}, false, 0, false
}

// readFloatSymbol reads sym's bytes out of its owning section's data with
// the Object's endianness, interpreting them as an IEEE-754 single (wide
// false) or double (wide true).
func readFloatSymbol(o *obj.Object, sym *obj.Symbol, wide bool) (Value, bool) {
	if !sym.HasSection() {
		return Value{}, false
	}
	sec := &o.Sections[sym.Section]
	if sym.Address < sec.Address {
		return Value{}, false
	}
	off := sym.Address - sec.Address
	size := uint64(4)
	if wide {
		size = 8
	}
	if off+size > uint64(len(sec.Data)) {
		return Value{}, false
	}
	data := sec.Data[off : off+size]
	if wide {
		bits := o.ByteOrder.Uint64(data)
		return Value{Kind: DoubleConstant, Float: math.Float64frombits(bits)}, true
	}
	bits := o.ByteOrder.Uint32(data)
	return Value{Kind: FloatConstant, Float: float64(math.Float32frombits(bits))}, true
}

// maxStringDisplay clamps a resolved "@stringBase" literal's display length
// (spec.md §5 "clamped to 20 display chars").
const maxStringDisplay = 20

// resolveStringLiteral reads the NUL-terminated C string living at offset
// bytes into the section backing base's target symbol.
func resolveStringLiteral(o *obj.Object, base Value, offset int64) (string, bool) {
	if offset < 0 {
		return "", false
	}
	sym, ok := o.TargetSymbol(obj.Relocation{Target: base.SymbolIndex})
	if !ok || !sym.HasSection() {
		return "", false
	}
	sec := &o.Sections[sym.Section]
	if sym.Address < sec.Address {
		return "", false
	}
	start := sym.Address - sec.Address + uint64(offset)
	if start >= uint64(len(sec.Data)) {
		return "", false
	}
	data := sec.Data[start:]
	end := 0
	for end < len(data) && end < maxStringDisplay && data[end] != 0 {
		end++
	}
	if end == 0 {
		return "", false
	}
	return string(data[:end]), true
}

func lookupRegister(state registerState, reg string) Value {
	if r := gprNum(reg); r >= 0 {
		return state.gpr[r]
	}
	if f := fprNum(reg); f >= 0 {
		return state.fpr[f]
	}
	return Value{}
}

func clearVolatiles(state *registerState) {
	state.gpr[0] = Value{Kind: Variable}
	for r := 3; r <= 13; r++ {
		state.gpr[r] = Value{Kind: Variable}
	}
	for f := 0; f <= 13; f++ {
		state.fpr[f] = Value{Kind: Variable}
	}
}

func sameRegister(a, b arch.Operand) bool {
	return a.Kind == arch.OperandRegister && b.Kind == arch.OperandRegister && a.Register == b.Register
}

// storeUpdateD/storeUpdateX name the D-form and X-form load/store-with-update
// mnemonics: the base register RA is written as a side effect of address
// computation for both families, not just the stores spec.md §5 names
// explicitly, so both are covered identically here.
var storeUpdateD = map[string]bool{
	"stbu": true, "sthu": true, "stwu": true, "stfsu": true, "stfdu": true,
	"lbzu": true, "lhau": true, "lhzu": true, "lwzu": true, "lfsu": true, "lfdu": true,
}
var storeUpdateX = map[string]bool{
	"stbux": true, "sthux": true, "stwux": true, "stfsux": true, "stfdux": true,
	"lbzux": true, "lhaux": true, "lhzux": true, "lwzux": true, "lfsux": true, "lfdux": true,
}

// updateBaseRegisterIndex returns the operand index holding RA for an
// update-form load or store, per the X-form's [dest, RA, RB] and D-form's
// [dest, Offset, RA] argument layouts.
func updateBaseRegisterIndex(in arch.Instruction) (int, bool) {
	if storeUpdateX[in.Mnemonic] && len(in.Operands) > 1 {
		return 1, true
	}
	if storeUpdateD[in.Mnemonic] && len(in.Operands) > 2 {
		return 2, true
	}
	return 0, false
}

func isStoreMnemonic(m string) bool {
	return strings.HasPrefix(m, "st")
}

func describe(v Value) string {
	switch v.Kind {
	case InputRegister:
		return "input " + v.Reg
	case IntConstant:
		return fmt.Sprintf("0x%x", uint32(v.Int))
	case FloatConstant:
		return formatFloat(v.Float, false)
	case DoubleConstant:
		return formatFloat(v.Float, true)
	case Symbol:
		return v.Str
	default:
		return "variable"
	}
}

func formatFloat(f float64, wide bool) string {
	bits := 32
	if wide {
		bits = 64
	}
	s := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	if !wide {
		s += "f"
	}
	return s
}

// saveRestorePrefixes name the compiler-generated PPC register save/restore
// helper families (e.g. Metrowerks CodeWarrior's "_savegpr_14") this
// analysis treats as no-ops on the tracked register state.
var saveRestorePrefixes = []string{
	"_savegpr_", "_restgpr_", "_savefpr_", "_restfpr_", "_savev", "_restv",
}

// isSaveRestoreStub reports whether a call instruction targets one of the
// known save/restore helpers, resolved through the branch operand's
// relocation target rather than any pre-resolved symbol name, since nothing
// upstream of this analysis fills operand display names in at decode time.
func isSaveRestoreStub(o *obj.Object, in arch.Instruction) bool {
	if in.Mnemonic != "bl" {
		return false
	}
	for _, op := range in.Operands {
		if op.Kind != arch.OperandBranchTarget || !op.HasReloc {
			continue
		}
		sym, ok := o.TargetSymbol(obj.Relocation{Target: op.RelocTarget})
		if !ok {
			continue
		}
		name := sym.BaseName()
		for _, p := range saveRestorePrefixes {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
	}
	return false
}

func isUnconditionalBranch(in arch.Instruction) bool {
	return in.Mnemonic == "b"
}

func isConditionalBranch(in arch.Instruction) bool {
	switch in.Mnemonic {
	case "beq", "bne", "blt", "bgt", "ble", "bge", "bdnz", "bdz":
		return true
	}
	return false
}

func branchTargetOf(in arch.Instruction) uint64 {
	for _, op := range in.Operands {
		if op.Kind == arch.OperandBranchTarget {
			return op.TargetAddr
		}
	}
	return 0
}

func gprNum(reg string) int {
	if len(reg) < 2 || reg[0] != 'r' {
		return -1
	}
	n := 0
	for _, c := range reg[1:] {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	if n < 0 || n > 31 {
		return -1
	}
	return n
}

func fprNum(reg string) int {
	if len(reg) < 2 || reg[0] != 'f' {
		return -1
	}
	n := 0
	for _, c := range reg[1:] {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	if n < 0 || n > 31 {
		return -1
	}
	return n
}
