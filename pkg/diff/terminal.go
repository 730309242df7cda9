package diff

import (
	"strings"

	"github.com/fatih/color"
)

// terminal color attribute sets, one per named Color plus a small rotating
// palette for Rotating(n) — mirrors pkg/utils/syntax_highlight.go's
// per-token-kind color variables, generalized from C-syntax token kinds to
// diff-row/operand color classes.
var (
	termNormal   = color.New(color.FgWhite)
	termDim      = color.New(color.FgHiBlack)
	termBright   = color.New(color.FgHiWhite, color.Bold)
	termReplace  = color.New(color.FgYellow)
	termDelete   = color.New(color.FgRed)
	termInsert   = color.New(color.FgGreen)
	termDataFlow = color.New(color.FgCyan)

	termRotatingPalette = []*color.Color{
		color.New(color.FgMagenta),
		color.New(color.FgBlue),
		color.New(color.FgHiMagenta),
		color.New(color.FgHiBlue),
		color.New(color.FgHiCyan),
		color.New(color.FgHiGreen),
	}
)

func terminalColorFor(c Color) *color.Color {
	if int(c) >= RotatingBase {
		idx := int(c) - RotatingBase
		return termRotatingPalette[idx%len(termRotatingPalette)]
	}
	switch c {
	case ColorDim:
		return termDim
	case ColorBright:
		return termBright
	case ColorReplace:
		return termReplace
	case ColorDelete:
		return termDelete
	case ColorInsert:
		return termInsert
	case ColorDataFlow:
		return termDataFlow
	default:
		return termNormal
	}
}

// RenderTerminal renders a display segment stream as an ANSI-colored
// single line, the terminal flavor of the Display Projector referenced by
// spec.md §4.8 ("Renderers (terminal, GUI, HTML) consume this stream
// without knowledge of architecture specifics").
func RenderTerminal(segs []DisplaySegment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == SegEol {
			continue
		}
		text := s.Text
		if s.PadTo > len(text) {
			text += strings.Repeat(" ", s.PadTo-len(text))
		}
		b.WriteString(terminalColorFor(s.Color).Sprint(text))
	}
	return b.String()
}
