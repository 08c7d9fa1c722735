// Package wasm implements the module-level state machine that turns a
// stream of decoded section payloads into validated, typed index spaces:
// types, functions, tables, memories, globals, tags, elements, and data.
package wasm

import "github.com/wazvalid/wasmvalid/api"

// SectionID identifies one of the standard WebAssembly module sections.
type SectionID byte

const (
	SectionIDCustom SectionID = iota
	SectionIDType
	SectionIDImport
	SectionIDFunction
	SectionIDTable
	SectionIDMemory
	SectionIDGlobal
	SectionIDExport
	SectionIDStart
	SectionIDElement
	SectionIDCode
	SectionIDData
	SectionIDDataCount
	SectionIDTag
)

// SectionIDName returns the name used in the WebAssembly binary format
// specification for a given section.
func SectionIDName(id SectionID) string {
	switch id {
	case SectionIDCustom:
		return "custom"
	case SectionIDType:
		return "type"
	case SectionIDImport:
		return "import"
	case SectionIDFunction:
		return "function"
	case SectionIDTable:
		return "table"
	case SectionIDMemory:
		return "memory"
	case SectionIDGlobal:
		return "global"
	case SectionIDExport:
		return "export"
	case SectionIDStart:
		return "start"
	case SectionIDElement:
		return "element"
	case SectionIDCode:
		return "code"
	case SectionIDData:
		return "data"
	case SectionIDDataCount:
		return "data count"
	case SectionIDTag:
		return "tag"
	}
	return "unknown"
}

// Phase is the current position in the section-ordering state machine
// described by §4.3 of the module validator's specification: sections must
// appear in non-decreasing phase order, and at most one non-custom section
// of each kind is permitted.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseType
	PhaseImport
	PhaseFunction
	PhaseTable
	PhaseMemory
	PhaseTag
	PhaseGlobal
	PhaseExport
	PhaseStartSection
	PhaseElement
	PhaseDataCount
	PhaseCode
	PhaseData
	PhaseEnd
)

// ExternType classifies imports and exports. Re-exported from api so
// internal callers do not need to import both packages for this one type.
type ExternType = api.ExternType

const (
	ExternTypeFunc   = api.ExternTypeFunc
	ExternTypeTable  = api.ExternTypeTable
	ExternTypeMemory = api.ExternTypeMemory
	ExternTypeGlobal = api.ExternTypeGlobal
	ExternTypeTag    = api.ExternTypeTag
)

// ExternTypeName returns the WebAssembly text-format field name for et.
func ExternTypeName(et ExternType) string { return api.ExternTypeName(et) }

// Index is a module-local index into one of the per-kind index spaces.
type Index = uint32
