package report

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers for the hand-written wire schema, assigned in the order
// spec.md §6.2 lists each message's fields. There is no .proto source (the
// schema lives here, in code) so these numbers are the source of truth;
// changing them is a wire-format break.
const (
	fieldMeasures          = 1
	fieldReportUnits       = 2
	fieldReportVersion     = 3
	fieldReportCategories  = 4

	fieldMeasuresFuzzyPct       = 1
	fieldMeasuresTotalCode      = 2
	fieldMeasuresMatchedCode    = 3
	fieldMeasuresMatchedCodePct = 4
	fieldMeasuresTotalData      = 5
	fieldMeasuresMatchedData    = 6
	fieldMeasuresMatchedDataPct = 7
	fieldMeasuresTotalFuncs     = 8
	fieldMeasuresMatchedFuncs   = 9
	fieldMeasuresMatchedFuncPct = 10
	fieldMeasuresCompleteCode   = 11
	fieldMeasuresCompleteData   = 12
	fieldMeasuresCompleteUnits  = 13
	fieldMeasuresTotalUnits     = 14

	fieldUnitName      = 1
	fieldUnitMeasures  = 2
	fieldUnitSections  = 3
	fieldUnitFunctions = 4
	fieldUnitMetadata  = 5

	fieldItemName     = 1
	fieldItemSize     = 2
	fieldItemFuzzyPct = 3
	fieldItemMetadata = 4

	fieldItemMetaDemangled = 1
	fieldItemMetaVAddr     = 2

	fieldUnitMetaTarget   = 1
	fieldUnitMetaBase     = 2
	fieldUnitMetaComplete = 3

	fieldCategoryID    = 1
	fieldCategoryName  = 2
	fieldCategoryUnits = 3

	fieldChangesFrom  = 1
	fieldChangesTo    = 2
	fieldChangesUnits = 3

	fieldChangeUnitName  = 1
	fieldChangeUnitFrom  = 2
	fieldChangeUnitTo    = 3
	fieldChangeUnitItems = 4

	fieldChangeItemName = 1
	fieldChangeItemFrom = 2
	fieldChangeItemTo   = 3
)

// MarshalProto encodes a Report into the protobuf wire format described in
// spec.md §6.2, hand-written against protowire (no protoc/generated code).
func MarshalProto(r Report) []byte {
	var b []byte
	b = appendMeasuresField(b, fieldMeasures, r.Measures)
	for _, u := range r.Units {
		b = appendBytesField(b, fieldReportUnits, marshalUnit(u))
	}
	b = protowire.AppendTag(b, fieldReportVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Version))
	for _, c := range r.Categories {
		b = appendBytesField(b, fieldReportCategories, marshalCategory(c))
	}
	return b
}

// UnmarshalProto decodes bytes produced by MarshalProto.
func UnmarshalProto(data []byte) (Report, error) {
	var r Report
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return r, fmt.Errorf("report: malformed tag")
		}
		data = data[n:]
		switch {
		case num == fieldMeasures && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, fmt.Errorf("report: malformed measures")
			}
			data = data[n:]
			m, err := unmarshalMeasures(v)
			if err != nil {
				return r, err
			}
			r.Measures = m
		case num == fieldReportUnits && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, fmt.Errorf("report: malformed unit")
			}
			data = data[n:]
			u, err := unmarshalUnit(v)
			if err != nil {
				return r, err
			}
			r.Units = append(r.Units, u)
		case num == fieldReportVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return r, fmt.Errorf("report: malformed version")
			}
			data = data[n:]
			r.Version = uint32(v)
		case num == fieldReportCategories && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return r, fmt.Errorf("report: malformed category")
			}
			data = data[n:]
			r.Categories = append(r.Categories, unmarshalCategory(v))
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return r, fmt.Errorf("report: malformed field %d", num)
			}
			data = data[n:]
		}
	}
	return r, nil
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFixed32Field(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, float32bits(v))
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarintField(b, num, 1)
}

func appendMeasuresField(b []byte, num protowire.Number, m Measures) []byte {
	return appendBytesField(b, num, marshalMeasures(m))
}

func marshalMeasures(m Measures) []byte {
	var b []byte
	b = appendFixed32Field(b, fieldMeasuresFuzzyPct, m.FuzzyMatchPercent)
	b = appendVarintField(b, fieldMeasuresTotalCode, m.TotalCode)
	b = appendVarintField(b, fieldMeasuresMatchedCode, m.MatchedCode)
	b = appendFixed32Field(b, fieldMeasuresMatchedCodePct, m.MatchedCodePercent)
	b = appendVarintField(b, fieldMeasuresTotalData, m.TotalData)
	b = appendVarintField(b, fieldMeasuresMatchedData, m.MatchedData)
	b = appendFixed32Field(b, fieldMeasuresMatchedDataPct, m.MatchedDataPercent)
	b = appendVarintField(b, fieldMeasuresTotalFuncs, uint64(m.TotalFunctions))
	b = appendVarintField(b, fieldMeasuresMatchedFuncs, uint64(m.MatchedFunctions))
	b = appendFixed32Field(b, fieldMeasuresMatchedFuncPct, m.MatchedFunctionsPercent)
	b = appendBoolField(b, fieldMeasuresCompleteCode, m.CompleteCode)
	b = appendBoolField(b, fieldMeasuresCompleteData, m.CompleteData)
	b = appendVarintField(b, fieldMeasuresCompleteUnits, uint64(m.CompleteUnits))
	b = appendVarintField(b, fieldMeasuresTotalUnits, uint64(m.TotalUnits))
	return b
}

func unmarshalMeasures(data []byte) (Measures, error) {
	var m Measures
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m, fmt.Errorf("report: malformed measures tag")
		}
		data = data[n:]
		switch {
		case typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return m, fmt.Errorf("report: malformed fixed32")
			}
			data = data[n:]
			f := float32frombits(v)
			switch num {
			case fieldMeasuresFuzzyPct:
				m.FuzzyMatchPercent = f
			case fieldMeasuresMatchedCodePct:
				m.MatchedCodePercent = f
			case fieldMeasuresMatchedDataPct:
				m.MatchedDataPercent = f
			case fieldMeasuresMatchedFuncPct:
				m.MatchedFunctionsPercent = f
			}
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m, fmt.Errorf("report: malformed varint")
			}
			data = data[n:]
			switch num {
			case fieldMeasuresTotalCode:
				m.TotalCode = v
			case fieldMeasuresMatchedCode:
				m.MatchedCode = v
			case fieldMeasuresTotalData:
				m.TotalData = v
			case fieldMeasuresMatchedData:
				m.MatchedData = v
			case fieldMeasuresTotalFuncs:
				m.TotalFunctions = uint32(v)
			case fieldMeasuresMatchedFuncs:
				m.MatchedFunctions = uint32(v)
			case fieldMeasuresCompleteCode:
				m.CompleteCode = v != 0
			case fieldMeasuresCompleteData:
				m.CompleteData = v != 0
			case fieldMeasuresCompleteUnits:
				m.CompleteUnits = uint32(v)
			case fieldMeasuresTotalUnits:
				m.TotalUnits = uint32(v)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m, fmt.Errorf("report: malformed measures field")
			}
			data = data[n:]
		}
	}
	return m, nil
}

func marshalItem(it ReportItem) []byte {
	var b []byte
	b = appendStringField(b, fieldItemName, it.Name)
	b = appendVarintField(b, fieldItemSize, it.Size)
	b = appendFixed32Field(b, fieldItemFuzzyPct, it.FuzzyMatchPercent)
	if it.Metadata.DemangledName != "" || it.Metadata.VirtualAddress != nil {
		b = appendBytesField(b, fieldItemMetadata, marshalItemMetadata(it.Metadata))
	}
	return b
}

func marshalItemMetadata(m ReportItemMetadata) []byte {
	var b []byte
	b = appendStringField(b, fieldItemMetaDemangled, m.DemangledName)
	if m.VirtualAddress != nil {
		b = appendVarintField(b, fieldItemMetaVAddr, *m.VirtualAddress)
	}
	return b
}

func unmarshalItem(data []byte) (ReportItem, error) {
	var it ReportItem
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return it, fmt.Errorf("report: malformed item tag")
		}
		data = data[n:]
		switch {
		case num == fieldItemName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return it, fmt.Errorf("report: malformed item name")
			}
			data = data[n:]
			it.Name = v
		case num == fieldItemSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return it, fmt.Errorf("report: malformed item size")
			}
			data = data[n:]
			it.Size = v
		case num == fieldItemFuzzyPct && typ == protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return it, fmt.Errorf("report: malformed item pct")
			}
			data = data[n:]
			it.FuzzyMatchPercent = float32frombits(v)
		case num == fieldItemMetadata && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return it, fmt.Errorf("report: malformed item metadata")
			}
			data = data[n:]
			it.Metadata = unmarshalItemMetadata(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return it, fmt.Errorf("report: malformed item field")
			}
			data = data[n:]
		}
	}
	return it, nil
}

func unmarshalItemMetadata(data []byte) ReportItemMetadata {
	var m ReportItemMetadata
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m
		}
		data = data[n:]
		switch {
		case num == fieldItemMetaDemangled && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m
			}
			data = data[n:]
			m.DemangledName = v
		case num == fieldItemMetaVAddr && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m
			}
			data = data[n:]
			addr := v
			m.VirtualAddress = &addr
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m
			}
			data = data[n:]
		}
	}
	return m
}

func marshalUnit(u ReportUnit) []byte {
	var b []byte
	b = appendStringField(b, fieldUnitName, u.Name)
	b = appendMeasuresField(b, fieldUnitMeasures, u.Measures)
	for _, s := range u.Sections {
		b = appendBytesField(b, fieldUnitSections, marshalItem(s))
	}
	for _, f := range u.Functions {
		b = appendBytesField(b, fieldUnitFunctions, marshalItem(f))
	}
	b = appendBytesField(b, fieldUnitMetadata, marshalUnitMetadata(u.Metadata))
	return b
}

func marshalUnitMetadata(m ReportUnitMetadata) []byte {
	var b []byte
	b = appendStringField(b, fieldUnitMetaTarget, m.TargetPath)
	b = appendStringField(b, fieldUnitMetaBase, m.BasePath)
	b = appendBoolField(b, fieldUnitMetaComplete, m.Complete)
	return b
}

func unmarshalUnit(data []byte) (ReportUnit, error) {
	var u ReportUnit
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return u, fmt.Errorf("report: malformed unit tag")
		}
		data = data[n:]
		switch {
		case num == fieldUnitName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit name")
			}
			data = data[n:]
			u.Name = v
		case num == fieldUnitMeasures && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit measures")
			}
			data = data[n:]
			m, err := unmarshalMeasures(v)
			if err != nil {
				return u, err
			}
			u.Measures = m
		case num == fieldUnitSections && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit section")
			}
			data = data[n:]
			it, err := unmarshalItem(v)
			if err != nil {
				return u, err
			}
			u.Sections = append(u.Sections, it)
		case num == fieldUnitFunctions && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit function")
			}
			data = data[n:]
			it, err := unmarshalItem(v)
			if err != nil {
				return u, err
			}
			u.Functions = append(u.Functions, it)
		case num == fieldUnitMetadata && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit metadata")
			}
			data = data[n:]
			u.Metadata = unmarshalUnitMetadata(v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return u, fmt.Errorf("report: malformed unit field")
			}
			data = data[n:]
		}
	}
	return u, nil
}

func unmarshalUnitMetadata(data []byte) ReportUnitMetadata {
	var m ReportUnitMetadata
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return m
		}
		data = data[n:]
		switch {
		case num == fieldUnitMetaTarget && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m
			}
			data = data[n:]
			m.TargetPath = v
		case num == fieldUnitMetaBase && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return m
			}
			data = data[n:]
			m.BasePath = v
		case num == fieldUnitMetaComplete && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return m
			}
			data = data[n:]
			m.Complete = v != 0
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return m
			}
			data = data[n:]
		}
	}
	return m
}

func marshalCategory(c ReportCategory) []byte {
	var b []byte
	b = appendStringField(b, fieldCategoryID, c.ID)
	b = appendStringField(b, fieldCategoryName, c.Name)
	for _, u := range c.Units {
		b = appendStringField(b, fieldCategoryUnits, u)
	}
	return b
}

func unmarshalCategory(data []byte) ReportCategory {
	var c ReportCategory
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return c
		}
		data = data[n:]
		switch {
		case num == fieldCategoryID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return c
			}
			data = data[n:]
			c.ID = v
		case num == fieldCategoryName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return c
			}
			data = data[n:]
			c.Name = v
		case num == fieldCategoryUnits && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return c
			}
			data = data[n:]
			c.Units = append(c.Units, v)
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return c
			}
			data = data[n:]
		}
	}
	return c
}

// MarshalChangesProto encodes a Changes document using the same hand-written
// wire scheme as MarshalProto.
func MarshalChangesProto(c Changes) []byte {
	var b []byte
	b = appendMeasuresField(b, fieldChangesFrom, c.From)
	b = appendMeasuresField(b, fieldChangesTo, c.To)
	for _, u := range c.Units {
		b = appendBytesField(b, fieldChangesUnits, marshalChangeUnit(u))
	}
	return b
}

func marshalChangeUnit(u ChangeUnit) []byte {
	var b []byte
	b = appendStringField(b, fieldChangeUnitName, u.Name)
	if u.From != nil {
		b = appendBytesField(b, fieldChangeUnitFrom, marshalMeasures(*u.From))
	}
	if u.To != nil {
		b = appendBytesField(b, fieldChangeUnitTo, marshalMeasures(*u.To))
	}
	for _, it := range u.Items {
		b = appendBytesField(b, fieldChangeUnitItems, marshalChangeItem(it))
	}
	return b
}

func marshalChangeItem(it ChangeItem) []byte {
	var b []byte
	b = appendStringField(b, fieldChangeItemName, it.Name)
	if it.From != nil {
		b = appendBytesField(b, fieldChangeItemFrom, marshalItem(*it.From))
	}
	if it.To != nil {
		b = appendBytesField(b, fieldChangeItemTo, marshalItem(*it.To))
	}
	return b
}

func float32bits(f float32) uint32    { return math.Float32bits(f) }
func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
