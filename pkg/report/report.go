// Package report defines the Report/Changes persisted-output schema
// (spec.md §6.2) and its protobuf and JSON wire encodings.
package report

// Measures is the set of aggregate match statistics carried at both the
// top-level Report and per-unit scope, spec.md §6.2.
type Measures struct {
	FuzzyMatchPercent     float32 `json:"fuzzy_match_percent"`
	TotalCode             uint64  `json:"total_code"`
	MatchedCode           uint64  `json:"matched_code"`
	MatchedCodePercent    float32 `json:"matched_code_percent"`
	TotalData             uint64  `json:"total_data"`
	MatchedData           uint64  `json:"matched_data"`
	MatchedDataPercent    float32 `json:"matched_data_percent"`
	TotalFunctions        uint32  `json:"total_functions"`
	MatchedFunctions      uint32  `json:"matched_functions"`
	MatchedFunctionsPercent float32 `json:"matched_functions_percent"`
	CompleteCode          bool    `json:"complete_code"`
	CompleteData          bool    `json:"complete_data"`
	CompleteUnits         uint32  `json:"complete_units"`
	TotalUnits            uint32  `json:"total_units"`
}

// Add accumulates another unit's Measures into this one in place, used by
// report-generation's top-level aggregation (spec.md §8 "Report
// aggregation" invariant).
func (m *Measures) Add(o Measures) {
	m.TotalCode += o.TotalCode
	m.MatchedCode += o.MatchedCode
	m.TotalData += o.TotalData
	m.MatchedData += o.MatchedData
	m.TotalFunctions += o.TotalFunctions
	m.MatchedFunctions += o.MatchedFunctions
	if o.CompleteUnits > 0 || o.CompleteCode && o.CompleteData {
		m.CompleteUnits++
	}
	m.TotalUnits++
	m.recomputePercents()
}

func (m *Measures) recomputePercents() {
	if m.TotalCode > 0 {
		m.MatchedCodePercent = float32(m.MatchedCode) / float32(m.TotalCode) * 100
	}
	if m.TotalData > 0 {
		m.MatchedDataPercent = float32(m.MatchedData) / float32(m.TotalData) * 100
	}
	if m.TotalFunctions > 0 {
		m.MatchedFunctionsPercent = float32(m.MatchedFunctions) / float32(m.TotalFunctions) * 100
	}
	denom := float32(0)
	numer := float32(0)
	if m.TotalCode > 0 {
		denom++
		numer += m.MatchedCodePercent
	}
	if m.TotalData > 0 {
		denom++
		numer += m.MatchedDataPercent
	}
	if denom > 0 {
		m.FuzzyMatchPercent = numer / denom
	}
}

// ReportItemMetadata carries the optional per-item extras, spec.md §6.2.
type ReportItemMetadata struct {
	DemangledName  string  `json:"demangled_name,omitempty"`
	VirtualAddress *uint64 `json:"virtual_address,omitempty"`
}

// ReportItem is one section or function row within a ReportUnit.
type ReportItem struct {
	Name              string             `json:"name"`
	Size              uint64             `json:"size"`
	FuzzyMatchPercent float32            `json:"fuzzy_match_percent"`
	Metadata          ReportItemMetadata `json:"metadata"`
}

// ReportUnitMetadata carries per-unit bookkeeping (source paths, etc).
type ReportUnitMetadata struct {
	TargetPath string `json:"target_path,omitempty"`
	BasePath   string `json:"base_path,omitempty"`
	Complete   bool   `json:"complete,omitempty"`
}

// ReportUnit is one diffed (target, base) object pair's results.
type ReportUnit struct {
	Name      string             `json:"name"`
	Measures  Measures           `json:"measures"`
	Sections  []ReportItem       `json:"sections"`
	Functions []ReportItem       `json:"functions"`
	Metadata  ReportUnitMetadata `json:"metadata"`
}

// ReportCategory groups units for dashboard display (spec.md §1 "Report
// generation for progress-tracking dashboards").
type ReportCategory struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Units []string `json:"units"`
}

// Report is the top-level persisted output of a `report generate` run.
type Report struct {
	Measures   Measures         `json:"measures"`
	Units      []ReportUnit     `json:"units"`
	Version    uint32           `json:"version"`
	Categories []ReportCategory `json:"categories"`
}

const CurrentVersion = 1

// ChangeItem carries a before/after pair for one item within a ChangeUnit;
// either side is nil when the item was added or removed.
type ChangeItem struct {
	Name string      `json:"name"`
	From *ReportItem `json:"from,omitempty"`
	To   *ReportItem `json:"to,omitempty"`
}

// ChangeUnit is one unit's outer-joined item list between two Reports.
type ChangeUnit struct {
	Name  string       `json:"name"`
	From  *Measures    `json:"from,omitempty"`
	To    *Measures    `json:"to,omitempty"`
	Items []ChangeItem `json:"items"`
}

// Changes is the result of diffing two Reports, spec.md §6.2.
type Changes struct {
	From  Measures     `json:"from"`
	To    Measures     `json:"to"`
	Units []ChangeUnit `json:"units"`
}

// DiffReports outer-joins two Reports on unit name, then on item name
// within each matched unit, per spec.md §6.2.
func DiffReports(from, to Report) Changes {
	toByName := make(map[string]ReportUnit, len(to.Units))
	for _, u := range to.Units {
		toByName[u.Name] = u
	}
	seen := make(map[string]bool, len(from.Units))

	var units []ChangeUnit
	for _, fu := range from.Units {
		seen[fu.Name] = true
		tu, ok := toByName[fu.Name]
		if ok {
			units = append(units, joinUnit(&fu, &tu))
		} else {
			units = append(units, joinUnit(&fu, nil))
		}
	}
	for _, tu := range to.Units {
		if !seen[tu.Name] {
			units = append(units, joinUnit(nil, &tu))
		}
	}

	return Changes{From: from.Measures, To: to.Measures, Units: units}
}

func joinUnit(from, to *ReportUnit) ChangeUnit {
	cu := ChangeUnit{}
	var fromItems, toItems []ReportItem
	if from != nil {
		cu.Name = from.Name
		m := from.Measures
		cu.From = &m
		fromItems = append(append([]ReportItem{}, from.Sections...), from.Functions...)
	}
	if to != nil {
		cu.Name = to.Name
		m := to.Measures
		cu.To = &m
		toItems = append(append([]ReportItem{}, to.Sections...), to.Functions...)
	}
	cu.Items = joinItems(fromItems, toItems)
	return cu
}

func joinItems(from, to []ReportItem) []ChangeItem {
	toByName := make(map[string]*ReportItem, len(to))
	for i := range to {
		toByName[to[i].Name] = &to[i]
	}
	seen := make(map[string]bool, len(from))

	var items []ChangeItem
	for i := range from {
		f := &from[i]
		seen[f.Name] = true
		if t, ok := toByName[f.Name]; ok {
			items = append(items, ChangeItem{Name: f.Name, From: f, To: t})
		} else {
			items = append(items, ChangeItem{Name: f.Name, From: f})
		}
	}
	for i := range to {
		t := &to[i]
		if !seen[t.Name] {
			items = append(items, ChangeItem{Name: t.Name, To: t})
		}
	}
	return items
}
