package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	vaddr := uint64(0x8000_1000)
	return Report{
		Version: CurrentVersion,
		Measures: Measures{
			FuzzyMatchPercent: 87.5,
			TotalCode:         1024,
			MatchedCode:       896,
			TotalUnits:        1,
		},
		Units: []ReportUnit{
			{
				Name:     "main.o",
				Measures: Measures{TotalCode: 1024, MatchedCode: 896, MatchedCodePercent: 87.5},
				Sections: []ReportItem{{Name: ".text", Size: 1024, FuzzyMatchPercent: 87.5}},
				Functions: []ReportItem{
					{Name: "doStuff", Size: 64, FuzzyMatchPercent: 100, Metadata: ReportItemMetadata{
						DemangledName: "doStuff(int)", VirtualAddress: &vaddr,
					}},
				},
				Metadata: ReportUnitMetadata{TargetPath: "/build/main.o", BasePath: "/orig/main.o", Complete: true},
			},
		},
		Categories: []ReportCategory{
			{ID: "core", Name: "Core", Units: []string{"main.o"}},
		},
	}
}

func TestMarshalUnmarshalProto_RoundTrip(t *testing.T) {
	want := sampleReport()
	data := MarshalProto(want)
	require.NotEmpty(t, data)

	got, err := UnmarshalProto(data)
	require.NoError(t, err)

	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Measures, got.Measures)
	require.Len(t, got.Units, 1)
	assert.Equal(t, want.Units[0].Name, got.Units[0].Name)
	assert.Equal(t, want.Units[0].Metadata, got.Units[0].Metadata)
	require.Len(t, got.Units[0].Functions, 1)
	require.NotNil(t, got.Units[0].Functions[0].Metadata.VirtualAddress)
	assert.Equal(t, *want.Units[0].Functions[0].Metadata.VirtualAddress, *got.Units[0].Functions[0].Metadata.VirtualAddress)
	require.Len(t, got.Categories, 1)
	assert.Equal(t, want.Categories[0], got.Categories[0])
}

func TestUnmarshalProto_SkipsUnknownFields(t *testing.T) {
	data := MarshalProto(sampleReport())
	// Append an unknown field (number 99, varint) to confirm ConsumeFieldValue
	// skips it rather than breaking decoding of the rest of the message.
	data = append(data, 0x98, 0x06, 0x01)

	got, err := UnmarshalProto(data)
	require.NoError(t, err)
	assert.Equal(t, "main.o", got.Units[0].Name)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, "json", DetectFormat([]byte(`{"version":1}`)))
	assert.Equal(t, "proto", DetectFormat(MarshalProto(sampleReport())))
}
