package diff

import (
	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/obj"
)

// RelocTolerance controls how strictly a Reloc-vs-Reloc operand comparison
// treats differences, per spec.md §4.6 point 4 "function_reloc_diffs".
type RelocTolerance int

const (
	// RelocNone always treats two relocation operands as matching.
	RelocNone RelocTolerance = iota
	// RelocNameAddress requires equal target names; address differences
	// between equally-named targets are tolerated.
	RelocNameAddress
	// RelocDataValue additionally compares the target's underlying data
	// bytes when both targets live in Data sections.
	RelocDataValue
	// RelocAll is strict on both name and data.
	RelocAll
)

// RowTag classifies one aligned row of a code diff.
type RowTag int

const (
	RowNone RowTag = iota
	RowOpMismatch
	RowReplace
	RowInsert
	RowDelete
)

// OperandDiff records whether one operand position differs and, if it's a
// mismatching string, the color index assigned to it (spec.md §4.6 point 6).
type OperandDiff struct {
	Mismatch bool
	Color    int
}

// Row is one aligned instruction pair (or one-sided entry) in a code diff.
type Row struct {
	Tag RowTag

	Left, Right       *arch.Instruction
	LeftIndex, RightIndex int // -1 if absent

	Operands []OperandDiff

	// BranchTo/BranchFrom link this row to others by row index when this
	// instruction (or another) is a branch whose destination resolves
	// within the function, per spec.md §4.6 point 5.
	BranchTo    *BranchLink
	BranchFrom  []BranchLink
}

// BranchLink names a branch edge's endpoint row and its assigned color.
type BranchLink struct {
	RowIndex int
	Color    int
}

// CodeDiff is the full result of diffing one matched pair of code symbols.
type CodeDiff struct {
	Rows        []Row
	MatchPercent float64
}

// CodeDiffConfig bundles the tunables spec.md §4.6/§6.3 exposes.
type CodeDiffConfig struct {
	Algorithm AlignAlgorithm
	Tolerance RelocTolerance
}

// DiffCode compares two decoded instruction streams for a matched symbol
// pair, per spec.md §4.6.
func DiffCode(left, right *obj.Object, leftInsts, rightInsts []arch.Instruction, cfg CodeDiffConfig) CodeDiff {
	ops := Align(len(leftInsts), len(rightInsts), func(i, j int) bool {
		return sameOpcode(leftInsts[i], rightInsts[j])
	}, cfg.Algorithm)

	rows := make([]Row, 0, len(ops))
	colorMap := map[string]int{}
	nextColor := 0

	addrToRow := map[uint64]int{}

	for _, op := range ops {
		var row Row
		switch op.Kind {
		case OpEqual:
			li, ri := &leftInsts[op.LeftIndex], &rightInsts[op.RightIndex]
			row = Row{Tag: RowNone, Left: li, Right: ri, LeftIndex: op.LeftIndex, RightIndex: op.RightIndex}
			if li.Mnemonic != ri.Mnemonic {
				row.Tag = RowOpMismatch
			}
			row.Operands = diffOperands(li, ri, left, right, cfg.Tolerance, colorMap, &nextColor)
			for _, d := range row.Operands {
				if d.Mismatch {
					row.Tag = RowOpMismatch
					break
				}
			}
		case OpReplace:
			li, ri := &leftInsts[op.LeftIndex], &rightInsts[op.RightIndex]
			row = Row{Tag: RowReplace, Left: li, Right: ri, LeftIndex: op.LeftIndex, RightIndex: op.RightIndex}
		case OpDelete:
			li := &leftInsts[op.LeftIndex]
			row = Row{Tag: RowDelete, Left: li, LeftIndex: op.LeftIndex, RightIndex: -1}
		case OpInsert:
			ri := &rightInsts[op.RightIndex]
			row = Row{Tag: RowInsert, Right: ri, LeftIndex: -1, RightIndex: op.RightIndex}
		}

		rowIdx := len(rows)
		if row.Left != nil {
			addrToRow[row.Left.Address] = rowIdx
		}
		rows = append(rows, row)
	}

	linkBranches(rows, addrToRow)

	diffRows := 0
	for _, r := range rows {
		if r.Tag != RowNone {
			diffRows++
		}
	}
	total := len(leftInsts)
	if len(rightInsts) > total {
		total = len(rightInsts)
	}
	pct := 100.0
	if total > 0 {
		pct = float64(total-diffRows) / float64(total) * 100.0
	}

	return CodeDiff{Rows: rows, MatchPercent: pct}
}

// sameOpcode treats two instructions as alignment-equal when they share a
// mnemonic; operand differences are surfaced later as a row-level
// OpMismatch/operand color rather than a Replace, per spec.md §4.6 point 3.
func sameOpcode(a, b arch.Instruction) bool {
	return a.Mnemonic == b.Mnemonic
}

func diffOperands(l, r *arch.Instruction, leftObj, rightObj *obj.Object, tol RelocTolerance, colorMap map[string]int, nextColor *int) []OperandDiff {
	n := len(l.Operands)
	if len(r.Operands) > n {
		n = len(r.Operands)
	}
	out := make([]OperandDiff, n)
	for i := 0; i < n; i++ {
		if i >= len(l.Operands) || i >= len(r.Operands) {
			out[i] = OperandDiff{Mismatch: true, Color: assignColor(colorMap, nextColor, operandKey(l, i))}
			continue
		}
		lo, ro := l.Operands[i], r.Operands[i]
		if operandsMatch(lo, ro, leftObj, rightObj, tol) {
			continue
		}
		out[i] = OperandDiff{Mismatch: true, Color: assignColor(colorMap, nextColor, operandKey(l, i))}
	}
	return out
}

func operandKey(in *arch.Instruction, idx int) string {
	if idx >= len(in.Operands) {
		return ""
	}
	o := in.Operands[idx]
	switch o.Kind {
	case arch.OperandRegister:
		return "reg:" + o.Register
	case arch.OperandSymbol:
		return "sym:" + o.SymbolName
	default:
		return "imm"
	}
}

func assignColor(colorMap map[string]int, nextColor *int, key string) int {
	if key == "" {
		key = "_"
	}
	if c, ok := colorMap[key]; ok {
		return c
	}
	c := *nextColor
	colorMap[key] = c
	*nextColor++
	return c
}

// operandsMatch implements spec.md §4.6 point 4's per-kind rules.
func operandsMatch(l, r arch.Operand, leftObj, rightObj *obj.Object, tol RelocTolerance) bool {
	if l.Kind == arch.OperandSymbol && r.Kind == arch.OperandSymbol {
		return relocsMatch(l, r, leftObj, rightObj, tol)
	}
	if (l.Kind == arch.OperandSymbol) != (r.Kind == arch.OperandSymbol) {
		// A relocated operand on one side may match a plain operand on the
		// other when the target object simply lacks relocations.
		return tol == RelocNone
	}
	if l.Kind != r.Kind {
		return false
	}
	switch l.Kind {
	case arch.OperandImmediate:
		return l.Immediate == r.Immediate
	case arch.OperandRegister:
		return l.Register == r.Register
	case arch.OperandBranchTarget:
		return true // resolved separately by linkBranches; row-level only.
	case arch.OperandMemory:
		return l.BaseRegister == r.BaseRegister && l.Displacement == r.Displacement
	default:
		return l.Immediate == r.Immediate
	}
}

func relocsMatch(l, r arch.Operand, leftObj, rightObj *obj.Object, tol RelocTolerance) bool {
	if tol == RelocNone {
		return true
	}
	if l.SymbolName != r.SymbolName {
		return false
	}
	if tol == RelocNameAddress {
		return true
	}
	// RelocDataValue / RelocAll: compare referenced data bytes when both
	// names resolve to a Data-section symbol in their respective Objects.
	lsym := findSymbolByName(leftObj, l.SymbolName)
	rsym := findSymbolByName(rightObj, r.SymbolName)
	if lsym == nil || rsym == nil {
		return tol != RelocAll
	}
	if !lsym.HasSection() || !rsym.HasSection() {
		return true
	}
	lsec, rsec := &leftObj.Sections[lsym.Section], &rightObj.Sections[rsym.Section]
	if lsec.Kind != obj.SectionData || rsec.Kind != obj.SectionData {
		return true
	}
	return dataBytesEqual(lsec, lsym, rsec, rsym)
}

func findSymbolByName(o *obj.Object, name string) *obj.Symbol {
	for i := range o.Symbols {
		if o.Symbols[i].Name == name {
			return &o.Symbols[i]
		}
	}
	return nil
}

func dataBytesEqual(lsec *obj.Section, lsym *obj.Symbol, rsec *obj.Section, rsym *obj.Symbol) bool {
	lo, ro := lsym.Address-lsec.Address, rsym.Address-rsec.Address
	if lsym.Size != rsym.Size {
		return false
	}
	n := lsym.Size
	if lo+n > uint64(len(lsec.Data)) || ro+n > uint64(len(rsec.Data)) {
		return false
	}
	lb, rb := lsec.Data[lo:lo+n], rsec.Data[ro:ro+n]
	for i := range lb {
		if lb[i] != rb[i] {
			return false
		}
	}
	return true
}

// linkBranches resolves each row's branch-target operand to a row index
// within the same function and records the bidirectional edge, per spec.md
// §4.6 point 5. Color indices increment per unique branch-source set (here
// approximated as one color per distinct target row, which is the
// observable effect for single-source branches and degrades gracefully for
// multi-source join points).
func linkBranches(rows []Row, addrToRow map[uint64]int) {
	targetColor := map[int]int{}
	nextColor := 0
	for i := range rows {
		in := rows[i].Left
		if in == nil {
			continue
		}
		for _, op := range in.Operands {
			if op.Kind != arch.OperandBranchTarget {
				continue
			}
			targetRow, ok := addrToRow[op.TargetAddr]
			if !ok {
				continue
			}
			c, ok := targetColor[targetRow]
			if !ok {
				c = nextColor
				targetColor[targetRow] = c
				nextColor++
			}
			rows[i].BranchTo = &BranchLink{RowIndex: targetRow, Color: c}
			rows[targetRow].BranchFrom = append(rows[targetRow].BranchFrom, BranchLink{RowIndex: i, Color: c})
		}
	}
}
