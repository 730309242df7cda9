package diff

import (
	"fmt"

	"github.com/emutools/objdiff/pkg/arch"
)

// SegmentKind discriminates a DisplaySegment's text payload, spec.md §4.8.
type SegmentKind int

const (
	SegBasic SegmentKind = iota
	SegLine
	SegAddress
	SegOpcode
	SegArgument
	SegBranchDest
	SegSymbol
	SegAddend
	SegSpacing
	SegEol
)

// Color names the display-agnostic color class a renderer maps onto its
// own palette (terminal ANSI codes, GUI brushes, HTML classes), spec.md
// §4.8.
type Color int

const (
	ColorNormal Color = iota
	ColorDim
	ColorBright
	ColorReplace
	ColorDelete
	ColorInsert
	ColorDataFlow
)

// RotatingBase offsets the Rotating(n) palette so it never collides with
// the fixed named colors above; a renderer resolves ColorRotating+n modulo
// its own palette size.
const RotatingBase = 1000

func ColorRotating(n int) Color { return Color(RotatingBase + n) }

// DisplaySegment is one token of the architecture-neutral display stream a
// renderer (terminal, GUI, HTML) consumes without any knowledge of
// architecture specifics, per spec.md §4.8.
type DisplaySegment struct {
	Kind  SegmentKind
	Text  string
	Color Color
	PadTo int // 0 means "no padding"
}

// RenderRow projects one code-diff Row into a display segment slice for one
// side (left or right), printing each instruction's absolute address and
// threading in the flow-annotation table for operand annotations (spec.md
// §4.4/§4.8).
func RenderRow(row Row, side Side, flow map[uint64]map[int]string) []DisplaySegment {
	var in *arch.Instruction
	if side == SideLeft {
		in = row.Left
	} else {
		in = row.Right
	}
	if in == nil {
		return []DisplaySegment{{Kind: SegBasic, Text: "", Color: rowColor(row), PadTo: 0}, {Kind: SegEol}}
	}

	var segs []DisplaySegment
	segs = append(segs, DisplaySegment{Kind: SegAddress, Text: fmt.Sprintf("%08x", in.Address), Color: ColorDim, PadTo: 10})
	segs = append(segs, DisplaySegment{Kind: SegSpacing, PadTo: 1})
	segs = append(segs, DisplaySegment{Kind: SegOpcode, Text: in.Mnemonic, Color: rowColor(row), PadTo: 8})

	annot := flow[in.Address]
	for i, op := range in.Operands {
		segs = append(segs, DisplaySegment{Kind: SegSpacing, PadTo: 1})
		segs = append(segs, operandSegment(op, row, i))
		if annot != nil {
			if text, ok := annot[i]; ok {
				segs = append(segs, DisplaySegment{Kind: SegBasic, Text: "  ; " + text, Color: ColorDataFlow})
			}
		}
	}

	if row.BranchTo != nil {
		segs = append(segs, DisplaySegment{Kind: SegBranchDest, Text: fmt.Sprintf("-> row %d", row.BranchTo.RowIndex), Color: ColorRotating(row.BranchTo.Color)})
	}

	segs = append(segs, DisplaySegment{Kind: SegEol})
	return segs
}

// Side selects which half of a Row to render.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func rowColor(row Row) Color {
	switch row.Tag {
	case RowReplace, RowOpMismatch:
		return ColorReplace
	case RowDelete:
		return ColorDelete
	case RowInsert:
		return ColorInsert
	default:
		return ColorNormal
	}
}

// formatSignedHex renders a signed immediate as hex with the sign outside
// the "0x" literal. Go's "%x" verb puts the minus sign in front of the
// digits for a negative operand (e.g. -4 -> "-4"), so naively formatting
// "0x%x" on a negative value reads as "0x-4" -- a sign stranded inside the
// radix prefix. Collapsing it to "-0x4" avoids that double-negative look
// (spec.md §4.3 x86: "signed immediates... collapsed into a positive
// signed value to avoid double negation").
func formatSignedHex(v int64) string {
	if v < 0 {
		return fmt.Sprintf("-0x%x", -v)
	}
	return fmt.Sprintf("0x%x", v)
}

func operandSegment(op arch.Operand, row Row, idx int) DisplaySegment {
	color := Color(ColorNormal)
	if idx < len(row.Operands) && row.Operands[idx].Mismatch {
		color = ColorRotating(row.Operands[idx].Color)
	}

	switch op.Kind {
	case arch.OperandRegister:
		return DisplaySegment{Kind: SegArgument, Text: op.Register, Color: color}
	case arch.OperandImmediate:
		return DisplaySegment{Kind: SegArgument, Text: formatSignedHex(op.Immediate), Color: color}
	case arch.OperandSymbol:
		return DisplaySegment{Kind: SegSymbol, Text: op.SymbolName, Color: color}
	case arch.OperandBranchTarget:
		return DisplaySegment{Kind: SegBranchDest, Text: fmt.Sprintf("0x%x", op.TargetAddr), Color: color}
	case arch.OperandMemory:
		text := fmt.Sprintf("%d(%s)", op.Displacement, op.BaseRegister)
		return DisplaySegment{Kind: SegArgument, Text: text, Color: color}
	default:
		return DisplaySegment{Kind: SegBasic, Text: "?", Color: color}
	}
}

// RenderDataRun projects one DataRun into a display segment describing its
// byte range and classification, used by hex-dump style data-section
// renderers.
func RenderDataRun(run DataRun) []DisplaySegment {
	color := ColorNormal
	switch run.Tag {
	case RowReplace:
		color = ColorReplace
	case RowDelete:
		color = ColorDelete
	case RowInsert:
		color = ColorInsert
	}
	text := fmt.Sprintf("+0x%x (%d bytes)", run.LeftStart, run.LeftLen)
	if run.Tag == RowInsert {
		text = fmt.Sprintf("+0x%x (%d bytes)", run.RightStart, run.RightLen)
	}
	return []DisplaySegment{
		{Kind: SegBasic, Text: text, Color: color},
		{Kind: SegEol},
	}
}
