package cmd

import (
	"fmt"
	"os"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/diff"
	"github.com/emutools/objdiff/pkg/flow"
	"github.com/emutools/objdiff/pkg/match"
	"github.com/emutools/objdiff/pkg/obj"
	"github.com/emutools/objdiff/pkg/utils"
	"github.com/spf13/cobra"

	_ "github.com/emutools/objdiff/pkg/arch/arm"
	_ "github.com/emutools/objdiff/pkg/arch/mips"
	_ "github.com/emutools/objdiff/pkg/arch/ppc"
	_ "github.com/emutools/objdiff/pkg/arch/x86"
)

var diffSymbol string

var diffCmd = &cobra.Command{
	Use:   "diff <target> <base>",
	Short: "Diff matched functions and data between two object files",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().StringVar(&diffSymbol, "symbol", "", "limit output to one function symbol by name")
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg := obj.DefaultConfig()

	baseObj, err := loadObject(args[1], cfg)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	targetObj, err := loadObject(args[0], cfg)
	if err != nil {
		return fmt.Errorf("target: %w", err)
	}

	symPairs := match.MatchSymbols(baseObj, targetObj, nil)
	algo := algorithmForCmd(cfg)

	for _, sp := range symPairs {
		if sp.Left < 0 || sp.Right < 0 {
			continue
		}
		ls, rs := baseObj.Symbols[sp.Left], targetObj.Symbols[sp.Right]
		if ls.Kind != obj.SymbolFunction {
			continue
		}
		if diffSymbol != "" && ls.Name != diffSymbol {
			continue
		}

		lins, err := arch.DecodeRange(baseObj, ls)
		if err != nil {
			Logger.Warn("decode failed", "symbol", ls.Name, "error", err)
			continue
		}
		rins, err := arch.DecodeRange(targetObj, rs)
		if err != nil {
			Logger.Warn("decode failed", "symbol", rs.Name, "error", err)
			continue
		}

		var flowTable obj.FlowTable
		if baseObj.Architecture == obj.ArchPPC {
			flowTable = flow.Analyze(baseObj, lins)
		}

		cd := diff.DiffCode(baseObj, targetObj, lins, rins, diff.CodeDiffConfig{Algorithm: algo})
		printCodeDiff(ls.Name, cd, flowTable, cfg.ShowSymbolSizes, ls.Size, rs.Size)
	}
	return nil
}

// formatSymbolSize renders a symbol size suffix per the show_symbol_sizes
// property, or "" when the property is off. Both sizes are shown even when
// they agree.
func formatSymbolSize(mode obj.SymbolSizeDisplay, baseSize, targetSize uint64) string {
	switch mode {
	case obj.SymbolSizeDecimal:
		return fmt.Sprintf(" [%d -> %d bytes]", baseSize, targetSize)
	case obj.SymbolSizeHex:
		return fmt.Sprintf(" [%s -> %s]", utils.FormatUintHex(baseSize, 4), utils.FormatUintHex(targetSize, 4))
	default:
		return ""
	}
}

func loadObject(path string, cfg obj.Config) (*obj.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return obj.Parse(path, data, cfg)
}

func printCodeDiff(name string, cd diff.CodeDiff, flowTable obj.FlowTable, sizeMode obj.SymbolSizeDisplay, baseSize, targetSize uint64) {
	fmt.Printf("=== %s (%.1f%% match)%s ===\n", name, cd.MatchPercent, formatSymbolSize(sizeMode, baseSize, targetSize))

	flowByAddr := map[uint64]map[int]string{}
	for k, v := range flowTable {
		if flowByAddr[k.Address] == nil {
			flowByAddr[k.Address] = map[int]string{}
		}
		flowByAddr[k.Address][k.OperandIdx] = v
	}

	for _, row := range cd.Rows {
		left := diff.RenderTerminal(diff.RenderRow(row, diff.SideLeft, flowByAddr))
		right := diff.RenderTerminal(diff.RenderRow(row, diff.SideRight, flowByAddr))
		fmt.Printf("%-50s | %s\n", left, right)
	}
}

func algorithmForCmd(cfg obj.Config) diff.AlignAlgorithm {
	switch cfg.DiffAlgorithm {
	case obj.AlgorithmLCS:
		return diff.AlignLCS
	case obj.AlgorithmMyers:
		return diff.AlignMyers
	default:
		return diff.AlignPatience
	}
}
