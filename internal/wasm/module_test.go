package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/types"
)

func addFuncType(t *testing.T, m *ModuleIndexSpaces, params, results []types.ValType) Index {
	t.Helper()
	rec := types.RecGroup{Types: []types.SubType{{
		Composite: types.CompositeType{Kind: types.CompositeFunc, Func: types.FuncType{Params: params, Results: results}},
		Final:     true,
	}}}
	require.NoError(t, m.AddType(rec, 0))
	return Index(len(m.Types) - 1)
}

func TestModuleIndexSpaces_AddFunction(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, []types.ValType{types.I32(), types.I32()}, []types.ValType{types.I32()})

	require.NoError(t, m.AddFunction(typeIdx, 1))
	require.Equal(t, []Index{typeIdx}, m.Functions)

	err := m.AddFunction(100, 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "type index out of range")
}

func TestModuleIndexSpaces_AddTable_SecondTableRequiresReferenceTypes(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV1, DefaultLimits())
	table := &TableType{ElemType: types.FUNCREF, Limit: LimitsType{Min: 1}}
	require.NoError(t, m.AddTable(table, 0))

	err := m.AddTable(table, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reference-types")
}

func TestModuleIndexSpaces_AddMemory_InvalidLimits(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	err := m.AddMemory(&MemoryType{Limit: LimitsType{Min: 0x20000}}, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid limits")
}

func TestModuleIndexSpaces_AddMemory_SharedRequiresMaximum(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesGC|api.CoreFeatureSharedEverythingThreads, DefaultLimits())
	err := m.AddMemory(&MemoryType{Limit: LimitsType{Min: 1, Shared: true}}, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "shared memory must declare a maximum")
}

func TestModuleIndexSpaces_AddImport_MutableGlobalRequiresFeature(t *testing.T) {
	m := NewModuleIndexSpaces(0, DefaultLimits())
	imp := &Import{Module: "env", Name: "g", Type: EntityType{
		Kind:   ExternTypeGlobal,
		Global: GlobalType{ValType: types.I32(), Mutable: true},
	}}
	err := m.AddImport(imp, 3)
	require.Error(t, err)
	require.Contains(t, err.Error(), "mutable-global")
}

func TestModuleIndexSpaces_AddGlobal_ConstExprTypeMismatch(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	global := &GlobalType{ValType: types.I64()}
	init := &ConstantExpression{Instructions: []ConstInstruction{{Opcode: OpcodeI32Const}}}
	err := m.AddGlobal(global, init, 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "type mismatch")
}

func TestModuleIndexSpaces_AddExport_Duplicate(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))

	require.NoError(t, m.AddExport("a", EntityType{Kind: ExternTypeFunc, Func: 0}, 1))
	err := m.AddExport("a", EntityType{Kind: ExternTypeFunc, Func: 0}, 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate export")
}

func TestModuleIndexSpaces_AddExport_RecordsFunctionReference(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))
	require.NoError(t, m.AddFunction(typeIdx, 0))

	require.NoError(t, m.AddExport("main", EntityType{Kind: ExternTypeFunc, Func: 1}, 0))
	require.True(t, m.IsFunctionReferenced(1))
	require.False(t, m.IsFunctionReferenced(0))
}

func TestModuleIndexSpaces_SetStartFunction_RequiresEmptySignature(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, []types.ValType{types.I32()}, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))

	err := m.SetStartFunction(0, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "[] -> []")
}

func TestModuleIndexSpaces_SetStartFunction_OK(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))

	require.NoError(t, m.SetStartFunction(0, 0))
	require.Equal(t, Index(0), *m.StartFunction)
}

func TestModuleIndexSpaces_AddElementSegment_TypeMismatch(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, m.AddTable(&TableType{ElemType: types.EXTERNREF, Limit: LimitsType{Min: 1}}, 0))

	seg := &ElementSegment{
		Mode:       ElementModeActive,
		TableIndex: 0,
		Type:       types.FUNCREF,
		OffsetExpr: &ConstantExpression{Instructions: []ConstInstruction{{Opcode: OpcodeI32Const}}},
	}
	err := m.AddElementSegment(seg, 9)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a subtype")
}

func TestModuleIndexSpaces_AddDataSegment_RefFuncRejectedInDataOffset(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, m.AddMemory(&MemoryType{Limit: LimitsType{Min: 1}}, 0))

	seg := &DataSegment{
		Mode:             DataModeActive,
		MemoryIndex:      0,
		OffsetExpression: &ConstantExpression{Instructions: []ConstInstruction{{Opcode: OpcodeRefFunc, Index: 0}}},
	}
	err := m.AddDataSegment(seg, 11)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ref.func is not allowed")
}

func TestModuleIndexSpaces_Freeze_CodeCountMismatch(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))

	err := m.Freeze(0, 20)
	require.Error(t, err)
	require.Contains(t, err.Error(), "inconsistent lengths")

	require.NoError(t, m.Freeze(1, 20))
	require.True(t, m.Frozen())
}
