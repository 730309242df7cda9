package report

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes a Report as JSON with field names matching the
// protobuf schema (snake_case, not camelCased), per spec.md §6.2.
func MarshalJSON(r Report) ([]byte, error) {
	return json.Marshal(r)
}

// legacyReport is the flat schema an older objdiff-core release emitted,
// before Measures was split out per-unit and nested under "measures"; kept
// so `report changes` can still read historical reports, per spec.md §6.2
// "Legacy JSON fallback".
type legacyReport struct {
	FuzzyMatchPercent float32            `json:"fuzzy_match_percent"`
	TotalCode         uint64             `json:"total_code"`
	MatchedCode       uint64             `json:"matched_code"`
	TotalData         uint64             `json:"total_data"`
	MatchedData       uint64             `json:"matched_data"`
	Units             []legacyReportUnit `json:"units"`
}

type legacyReportUnit struct {
	Name      string       `json:"name"`
	Sections  []ReportItem `json:"sections"`
	Functions []ReportItem `json:"functions"`
}

// UnmarshalJSON decodes a Report from JSON, retrying against the legacy
// flat schema when the current shape fails with a data-shape error (as
// opposed to a syntax error, which is returned immediately) or decodes with
// neither a version nor measures, as a legacy document does, per spec.md
// §6.2.
func UnmarshalJSON(data []byte) (Report, error) {
	var r Report
	err := json.Unmarshal(data, &r)
	if err == nil && (r.Version != 0 || r.Measures != (Measures{})) {
		return r, nil
	}
	if err != nil {
		if _, syntaxErr := err.(*json.SyntaxError); syntaxErr {
			return r, fmt.Errorf("report: invalid JSON: %w", err)
		}
	}

	var legacy legacyReport
	if lerr := json.Unmarshal(data, &legacy); lerr != nil {
		if err != nil {
			return r, err
		}
		return r, lerr
	}
	return liftLegacy(legacy), nil
}

// liftLegacy converts the flat legacy schema into the current nested
// Report shape, reconstructing per-unit Measures from totals that the
// legacy format only tracked at top level (units lose unit-level
// granularity for the fields the legacy schema never split out).
func liftLegacy(l legacyReport) Report {
	r := Report{
		Version: CurrentVersion,
		Measures: Measures{
			FuzzyMatchPercent: l.FuzzyMatchPercent,
			TotalCode:         l.TotalCode,
			MatchedCode:       l.MatchedCode,
			TotalData:         l.TotalData,
			MatchedData:       l.MatchedData,
		},
	}
	r.Measures.recomputePercents()

	for _, lu := range l.Units {
		u := ReportUnit{Name: lu.Name, Sections: lu.Sections, Functions: lu.Functions}
		var totalSize, matchedSize uint64
		for _, it := range lu.Functions {
			totalSize += it.Size
			matchedSize += uint64(float32(it.Size) * it.FuzzyMatchPercent / 100)
		}
		u.Measures.TotalCode = totalSize
		u.Measures.MatchedCode = matchedSize
		u.Measures.recomputePercents()
		r.Units = append(r.Units, u)
		r.Measures.TotalUnits++
	}
	return r
}

// MarshalChangesJSON encodes a Changes document as JSON.
func MarshalChangesJSON(c Changes) ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalChangesJSON decodes a Changes document from JSON.
func UnmarshalChangesJSON(data []byte) (Changes, error) {
	var c Changes
	err := json.Unmarshal(data, &c)
	return c, err
}

// DetectFormat implements spec.md §6.2's parser-detection rule: a leading
// '{' means JSON, anything else is protobuf.
func DetectFormat(data []byte) string {
	if len(data) > 0 && data[0] == '{' {
		return "json"
	}
	return "proto"
}

// Marshal encodes a Report as protobuf, the default persisted wire form.
func Marshal(r Report) []byte { return MarshalProto(r) }

// Unmarshal decodes a Report, auto-detecting JSON vs protobuf via
// DetectFormat.
func Unmarshal(data []byte) (Report, error) {
	if DetectFormat(data) == "json" {
		return UnmarshalJSON(data)
	}
	return UnmarshalProto(data)
}
