package obj

import (
	"strconv"
	"strings"

	"github.com/emutools/objdiff/pkg/utils"
)

// PropertyKind distinguishes the two property shapes the config surface
// supports (spec.md §6.3).
type PropertyKind int

const (
	PropertyBoolean PropertyKind = iota
	PropertyChoice
)

// ChoiceVariant is one value a Choice property may take.
type ChoiceVariant struct {
	Value       string
	Name        string
	Description string
}

// PropertyDescriptor describes one entry of the flat configuration property
// bag: a stable id, display metadata, and (for Choice properties) the
// closed list of accepted variants.
type PropertyDescriptor struct {
	ID          string
	DisplayName string
	Description string
	Kind        PropertyKind

	DefaultBool   bool
	DefaultChoice string
	Variants      []ChoiceVariant
}

// FunctionRelocDiffs is the §4.6 function_reloc_diffs Choice property.
type FunctionRelocDiffs string

const (
	RelocDiffsNone        FunctionRelocDiffs = "none"
	RelocDiffsNameAddress FunctionRelocDiffs = "name_address"
	RelocDiffsDataValue   FunctionRelocDiffs = "data_value"
	RelocDiffsAll         FunctionRelocDiffs = "all"
)

// DiffAlgorithm is the §4.6 step-2 diff_algorithm Choice property.
type DiffAlgorithm string

const (
	AlgorithmPatience DiffAlgorithm = "patience"
	AlgorithmLCS      DiffAlgorithm = "lcs"
	AlgorithmMyers    DiffAlgorithm = "myers"
)

// X86Formatter is the §4.3 x86_formatter Choice property.
type X86Formatter string

const (
	X86Intel X86Formatter = "intel"
	X86Gas   X86Formatter = "gas"
	X86Nasm  X86Formatter = "nasm"
	X86Masm  X86Formatter = "masm"
)

// MipsABI is the §6.3 mips_abi Choice property.
type MipsABI string

const (
	MipsABIAuto MipsABI = "auto"
	MipsABIO32  MipsABI = "o32"
	MipsABIN32  MipsABI = "n32"
	MipsABIN64  MipsABI = "n64"
)

// MipsInstrCategory is the §6.3 mips_instr_category Choice property.
type MipsInstrCategory string

const (
	MipsCategoryAuto       MipsInstrCategory = "auto"
	MipsCategoryCPU        MipsInstrCategory = "cpu"
	MipsCategoryRSP        MipsInstrCategory = "rsp"
	MipsCategoryR3000GTE   MipsInstrCategory = "r3000gte"
	MipsCategoryR4000Alleg MipsInstrCategory = "r4000allegrex"
	MipsCategoryR5900      MipsInstrCategory = "r5900"
)

// ArmArchVersion is the §6.3 arm_arch_version Choice property.
type ArmArchVersion string

const (
	ArmAuto ArmArchVersion = "auto"
	ArmV4T  ArmArchVersion = "v4t"
	ArmV5TE ArmArchVersion = "v5te"
	ArmV6K  ArmArchVersion = "v6k"
)

// SymbolSizeDisplay is the §6.3 show_symbol_sizes Choice property.
type SymbolSizeDisplay string

const (
	SymbolSizeNone    SymbolSizeDisplay = "none"
	SymbolSizeDecimal SymbolSizeDisplay = "decimal"
	SymbolSizeHex     SymbolSizeDisplay = "hex"
)

// Config is the typed configuration surface backing the flat property bag
// of spec.md §6.3. It generalizes objdiff-core's DiffObjConfig
// (_examples/original_source/objdiff-core/src/diff/mod.rs). Every field
// except ArmR9Usage, ArmSLUsage, ArmFPUsage, ArmIPUsage and
// DataDiffDeadlineMilli has a matching PropertyDescriptor in Properties(),
// so the CLI's `objdiff config` subcommand can enumerate, get and set those
// generically; the five listed fields are reachable only from Go code.
type Config struct {
	FunctionRelocDiffs    FunctionRelocDiffs
	SpaceBetweenArgs      bool
	CombineDataSections   bool
	CombineTextSections   bool
	X86Formatter          X86Formatter
	MipsABI               MipsABI
	MipsInstrCategory     MipsInstrCategory
	ArmArchVersion        ArmArchVersion
	ArmUnifiedSyntax      bool
	ArmAVRegisters        bool
	ArmR9Usage            string
	ArmSLUsage            string
	ArmFPUsage            string
	ArmIPUsage            string
	ShowDataFlow          bool
	ShowSymbolSizes       SymbolSizeDisplay
	DiffAlgorithm         DiffAlgorithm
	DataDiffDeadlineMilli int64 // default 5000, spec.md §7 Deadline
}

// DefaultConfig returns the property bag defaults described in spec.md §6.3.
func DefaultConfig() Config {
	return Config{
		FunctionRelocDiffs:    RelocDiffsNone,
		SpaceBetweenArgs:      true,
		CombineDataSections:   false,
		CombineTextSections:   false,
		X86Formatter:          X86Intel,
		MipsABI:               MipsABIAuto,
		MipsInstrCategory:     MipsCategoryAuto,
		ArmArchVersion:        ArmAuto,
		ArmUnifiedSyntax:      true,
		ArmAVRegisters:        false,
		ArmR9Usage:            "r9",
		ArmSLUsage:            "sl",
		ArmFPUsage:            "fp",
		ArmIPUsage:            "ip",
		ShowDataFlow:          false,
		ShowSymbolSizes:       SymbolSizeNone,
		DiffAlgorithm:         AlgorithmPatience,
		DataDiffDeadlineMilli: 5000,
	}
}

// Properties returns the full property descriptor table, grounded in
// objdiff-core's config_gen.rs declarative property list.
func Properties() []PropertyDescriptor {
	return []PropertyDescriptor{
		{ID: "function_reloc_diffs", DisplayName: "Function relocation diffs", Kind: PropertyChoice, DefaultChoice: string(RelocDiffsNone), Variants: []ChoiceVariant{
			{Value: "none", Name: "None"},
			{Value: "name_address", Name: "Name and address"},
			{Value: "data_value", Name: "Data value"},
			{Value: "all", Name: "All"},
		}},
		{ID: "space_between_args", DisplayName: "Space between arguments", Kind: PropertyBoolean, DefaultBool: true},
		{ID: "combine_data_sections", DisplayName: "Combine data sections", Kind: PropertyBoolean, DefaultBool: false},
		{ID: "combine_text_sections", DisplayName: "Combine text sections", Kind: PropertyBoolean, DefaultBool: false},
		{ID: "x86_formatter", DisplayName: "x86 syntax", Kind: PropertyChoice, DefaultChoice: string(X86Intel), Variants: []ChoiceVariant{
			{Value: "intel", Name: "Intel"},
			{Value: "gas", Name: "AT&T (gas)"},
			{Value: "nasm", Name: "NASM"},
			{Value: "masm", Name: "MASM"},
		}},
		{ID: "mips_abi", DisplayName: "MIPS ABI", Kind: PropertyChoice, DefaultChoice: string(MipsABIAuto), Variants: []ChoiceVariant{
			{Value: "auto", Name: "Auto"}, {Value: "o32", Name: "O32"}, {Value: "n32", Name: "N32"}, {Value: "n64", Name: "N64"},
		}},
		{ID: "mips_instr_category", DisplayName: "MIPS instruction category", Kind: PropertyChoice, DefaultChoice: string(MipsCategoryAuto), Variants: []ChoiceVariant{
			{Value: "auto", Name: "Auto"}, {Value: "cpu", Name: "CPU"}, {Value: "rsp", Name: "RSP"},
			{Value: "r3000gte", Name: "R3000 GTE"}, {Value: "r4000allegrex", Name: "R4000 Allegrex"}, {Value: "r5900", Name: "R5900"},
		}},
		{ID: "arm_arch_version", DisplayName: "ARM architecture version", Kind: PropertyChoice, DefaultChoice: string(ArmAuto), Variants: []ChoiceVariant{
			{Value: "auto", Name: "Auto"}, {Value: "v4t", Name: "ARMv4T"}, {Value: "v5te", Name: "ARMv5TE"}, {Value: "v6k", Name: "ARMv6K"},
		}},
		{ID: "arm_unified_syntax", DisplayName: "ARM unified syntax", Kind: PropertyBoolean, DefaultBool: true},
		{ID: "arm_av_registers", DisplayName: "ARM a1-a4/v1-v5 register names", Kind: PropertyBoolean, DefaultBool: false},
		{ID: "show_data_flow", DisplayName: "Show data flow", Kind: PropertyBoolean, DefaultBool: false},
		{ID: "show_symbol_sizes", DisplayName: "Show symbol sizes", Kind: PropertyChoice, DefaultChoice: string(SymbolSizeNone), Variants: []ChoiceVariant{
			{Value: "none", Name: "None"}, {Value: "decimal", Name: "Decimal"}, {Value: "hex", Name: "Hex"},
		}},
		{ID: "diff_algorithm", DisplayName: "Diff algorithm", Kind: PropertyChoice, DefaultChoice: string(AlgorithmPatience), Variants: []ChoiceVariant{
			{Value: "patience", Name: "Patience"}, {Value: "lcs", Name: "LCS"}, {Value: "myers", Name: "Myers"},
		}},
	}
}

func findProperty(id string) (PropertyDescriptor, bool) {
	for _, p := range Properties() {
		if p.ID == id {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

// Get returns the current value of a property id as a string.
func (c *Config) Get(id string) (string, error) {
	switch id {
	case "function_reloc_diffs":
		return string(c.FunctionRelocDiffs), nil
	case "space_between_args":
		return strconv.FormatBool(c.SpaceBetweenArgs), nil
	case "combine_data_sections":
		return strconv.FormatBool(c.CombineDataSections), nil
	case "combine_text_sections":
		return strconv.FormatBool(c.CombineTextSections), nil
	case "x86_formatter":
		return string(c.X86Formatter), nil
	case "mips_abi":
		return string(c.MipsABI), nil
	case "mips_instr_category":
		return string(c.MipsInstrCategory), nil
	case "arm_arch_version":
		return string(c.ArmArchVersion), nil
	case "arm_unified_syntax":
		return strconv.FormatBool(c.ArmUnifiedSyntax), nil
	case "arm_av_registers":
		return strconv.FormatBool(c.ArmAVRegisters), nil
	case "show_data_flow":
		return strconv.FormatBool(c.ShowDataFlow), nil
	case "show_symbol_sizes":
		return string(c.ShowSymbolSizes), nil
	case "diff_algorithm":
		return string(c.DiffAlgorithm), nil
	default:
		return "", utils.MakeError(ErrConfig, "unknown property id %q", id)
	}
}

// SetFromString parses a string value (case-insensitively, accepting either
// the canonical value or the display name) and assigns it to the named
// property, per spec.md §6.3.
func (c *Config) SetFromString(id, value string) error {
	desc, ok := findProperty(id)
	if !ok {
		return utils.MakeError(ErrConfig, "unknown property id %q", id)
	}

	switch desc.Kind {
	case PropertyBoolean:
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return utils.MakeError(ErrConfig, "property %q expects a boolean, got %q", id, value)
		}
		return c.setBool(id, b)
	case PropertyChoice:
		canonical, err := resolveVariant(desc, value)
		if err != nil {
			return err
		}
		return c.setChoice(id, canonical)
	default:
		return utils.MakeError(ErrConfig, "property %q has unknown kind", id)
	}
}

func resolveVariant(desc PropertyDescriptor, value string) (string, error) {
	lower := strings.ToLower(value)
	for _, v := range desc.Variants {
		if strings.ToLower(v.Value) == lower || strings.ToLower(v.Name) == lower {
			return v.Value, nil
		}
	}
	return "", utils.MakeError(ErrConfig, "property %q has no variant matching %q", desc.ID, value)
}

func (c *Config) setBool(id string, b bool) error {
	switch id {
	case "space_between_args":
		c.SpaceBetweenArgs = b
	case "combine_data_sections":
		c.CombineDataSections = b
	case "combine_text_sections":
		c.CombineTextSections = b
	case "arm_unified_syntax":
		c.ArmUnifiedSyntax = b
	case "arm_av_registers":
		c.ArmAVRegisters = b
	case "show_data_flow":
		c.ShowDataFlow = b
	default:
		return utils.MakeError(ErrConfig, "property %q is not boolean", id)
	}
	return nil
}

func (c *Config) setChoice(id, value string) error {
	switch id {
	case "function_reloc_diffs":
		c.FunctionRelocDiffs = FunctionRelocDiffs(value)
	case "x86_formatter":
		c.X86Formatter = X86Formatter(value)
	case "mips_abi":
		c.MipsABI = MipsABI(value)
	case "mips_instr_category":
		c.MipsInstrCategory = MipsInstrCategory(value)
	case "arm_arch_version":
		c.ArmArchVersion = ArmArchVersion(value)
	case "show_symbol_sizes":
		c.ShowSymbolSizes = SymbolSizeDisplay(value)
	case "diff_algorithm":
		c.DiffAlgorithm = DiffAlgorithm(value)
	default:
		return utils.MakeError(ErrConfig, "property %q is not a choice", id)
	}
	return nil
}
