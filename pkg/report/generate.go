package report

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/emutools/objdiff/pkg/arch"
	"github.com/emutools/objdiff/pkg/diff"
	"github.com/emutools/objdiff/pkg/flow"
	"github.com/emutools/objdiff/pkg/match"
	"github.com/emutools/objdiff/pkg/obj"
)

// Unit is one declared (target, base) object pair to diff, the input to
// Generate. Project-config/build-orchestration that discovers these from a
// build system is out of scope (spec.md §1); callers supply the list
// directly (spec.md SUPPLEMENTED FEATURES, `objdiff-cli/src/cmd/report.rs`).
type Unit struct {
	Name       string
	TargetPath string
	BasePath   string
	Overrides  match.Overrides
}

// Generate runs the full parse/match/diff pipeline over each declared unit
// and aggregates the results into a Report, per spec.md §6.2 and the
// SUPPLEMENTED `report generate` subcommand. Units run concurrently across
// a small worker pool (spec.md §5 "fanned out across a worker pool (one
// pair per task)"); ctx cancellation is checked between units and returns
// whatever units have already completed.
func Generate(ctx context.Context, units []Unit, cfg obj.Config, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	results := make([]ReportUnit, len(units))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workerCount())
	var firstErr error
	var mu sync.Mutex

	for i, u := range units {
		select {
		case <-ctx.Done():
			mu.Lock()
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			mu.Unlock()
		default:
		}
		if firstErr != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, u Unit) {
			defer wg.Done()
			defer func() { <-sem }()

			ru, err := diffUnit(u, cfg, logger)
			if err != nil {
				logger.Warn("unit diff failed", "unit", u.Name, "error", err)
				return
			}
			results[i] = ru
		}(i, u)
	}
	wg.Wait()

	r := Report{Version: CurrentVersion}
	for _, ru := range results {
		if ru.Name == "" {
			continue
		}
		r.Units = append(r.Units, ru)
		r.Measures.Add(ru.Measures)
	}
	return r, firstErr
}

func workerCount() int {
	n := 4
	return n
}

func diffUnit(u Unit, cfg obj.Config, logger *slog.Logger) (ReportUnit, error) {
	targetData, err := os.ReadFile(u.TargetPath)
	if err != nil {
		return ReportUnit{}, err
	}
	baseData, err := os.ReadFile(u.BasePath)
	if err != nil {
		return ReportUnit{}, err
	}

	targetObj, err := obj.Parse(u.TargetPath, targetData, cfg)
	if err != nil {
		return ReportUnit{}, err
	}
	baseObj, err := obj.Parse(u.BasePath, baseData, cfg)
	if err != nil {
		return ReportUnit{}, err
	}

	ru := ReportUnit{
		Name: u.Name,
		Metadata: ReportUnitMetadata{
			TargetPath: u.TargetPath,
			BasePath:   u.BasePath,
		},
	}

	sectionPairs := match.MatchSections(baseObj, targetObj)
	symPairs := match.MatchSymbols(baseObj, targetObj, u.Overrides)

	algo := algorithmFor(cfg.DiffAlgorithm)
	tol := toleranceFor(cfg.FunctionRelocDiffs)

	for _, sp := range sectionPairs {
		item, ok := diffSection(baseObj, targetObj, sp, algo)
		if !ok {
			continue
		}
		ru.Sections = append(ru.Sections, item)
		ru.Measures.TotalData += item.Size
		ru.Measures.MatchedData += uint64(float32(item.Size) * item.FuzzyMatchPercent / 100)
	}

	for _, sp := range symPairs {
		item, ok := diffSymbolPair(baseObj, targetObj, sp, algo, tol, logger)
		if !ok {
			continue
		}
		ru.Functions = append(ru.Functions, item)
		ru.Measures.TotalFunctions++
		if item.FuzzyMatchPercent >= 100 {
			ru.Measures.MatchedFunctions++
		}
		ru.Measures.TotalCode += item.Size
		ru.Measures.MatchedCode += uint64(float32(item.Size) * item.FuzzyMatchPercent / 100)
	}

	ru.Measures.TotalUnits = 1
	if ru.Measures.MatchedFunctions == ru.Measures.TotalFunctions && ru.Measures.TotalFunctions > 0 {
		ru.Metadata.Complete = true
		ru.Measures.CompleteUnits = 1
	}
	finalizeMeasures(&ru.Measures)
	return ru, nil
}

func diffSection(base, target *obj.Object, sp match.SectionPair, algo diff.AlignAlgorithm) (ReportItem, bool) {
	if sp.Left < 0 || sp.Right < 0 {
		return ReportItem{}, false
	}
	lsec, rsec := &base.Sections[sp.Left], &target.Sections[sp.Right]
	if lsec.Kind != obj.SectionData {
		return ReportItem{}, false
	}
	d := diff.DiffData(lsec.Data, rsec.Data, algo)
	return ReportItem{Name: lsec.Name, Size: uint64(len(lsec.Data)), FuzzyMatchPercent: float32(d.MatchPercent)}, true
}

func diffSymbolPair(base, target *obj.Object, sp match.SymbolPair, algo diff.AlignAlgorithm, tol diff.RelocTolerance, logger *slog.Logger) (ReportItem, bool) {
	if sp.Left < 0 || sp.Right < 0 {
		return ReportItem{}, false
	}
	ls, rs := base.Symbols[sp.Left], target.Symbols[sp.Right]
	if ls.Kind != obj.SymbolFunction {
		return ReportItem{}, false
	}

	lins, err := arch.DecodeRange(base, ls)
	if err != nil {
		logger.Warn("decode failed", "symbol", ls.Name, "error", err)
		return ReportItem{}, false
	}
	rins, err := arch.DecodeRange(target, rs)
	if err != nil {
		logger.Warn("decode failed", "symbol", rs.Name, "error", err)
		return ReportItem{}, false
	}

	if base.Architecture == obj.ArchPPC {
		if table := flow.Analyze(base, lins); table != nil {
			base.SetFlowTable(sp.Left, table)
		}
	}

	cd := diff.DiffCode(base, target, lins, rins, diff.CodeDiffConfig{Algorithm: algo, Tolerance: tol})

	item := ReportItem{
		Name:              ls.Name,
		Size:              ls.Size,
		FuzzyMatchPercent: float32(cd.MatchPercent),
		Metadata:          ReportItemMetadata{DemangledName: ls.DemangledName},
	}
	if ls.VirtualAddress != nil {
		item.Metadata.VirtualAddress = ls.VirtualAddress
	}
	return item, true
}

func finalizeMeasures(m *Measures) {
	if m.TotalCode > 0 {
		m.MatchedCodePercent = float32(m.MatchedCode) / float32(m.TotalCode) * 100
	}
	if m.TotalData > 0 {
		m.MatchedDataPercent = float32(m.MatchedData) / float32(m.TotalData) * 100
	}
	if m.TotalFunctions > 0 {
		m.MatchedFunctionsPercent = float32(m.MatchedFunctions) / float32(m.TotalFunctions) * 100
	}
	if m.TotalCode > 0 && m.TotalData > 0 {
		m.FuzzyMatchPercent = (m.MatchedCodePercent + m.MatchedDataPercent) / 2
	} else if m.TotalCode > 0 {
		m.FuzzyMatchPercent = m.MatchedCodePercent
	} else if m.TotalData > 0 {
		m.FuzzyMatchPercent = m.MatchedDataPercent
	}
	m.CompleteCode = m.MatchedCodePercent >= 100
	m.CompleteData = m.MatchedDataPercent >= 100
}

func algorithmFor(a obj.DiffAlgorithm) diff.AlignAlgorithm {
	switch a {
	case obj.AlgorithmLCS:
		return diff.AlignLCS
	case obj.AlgorithmMyers:
		return diff.AlignMyers
	default:
		return diff.AlignPatience
	}
}

func toleranceFor(r obj.FunctionRelocDiffs) diff.RelocTolerance {
	switch r {
	case obj.RelocDiffsNameAddress:
		return diff.RelocNameAddress
	case obj.RelocDiffsDataValue:
		return diff.RelocDataValue
	case obj.RelocDiffsAll:
		return diff.RelocAll
	default:
		return diff.RelocNone
	}
}
