package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/types"
)

func TestValidatorResources_FunctionType(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, []types.ValType{types.I32()}, []types.ValType{types.I64()})
	require.NoError(t, m.AddFunction(typeIdx, 0))
	require.NoError(t, m.Freeze(1, 0))

	r := NewValidatorResources(m)

	ft, ok := r.FunctionType(0)
	require.True(t, ok)
	require.Equal(t, []types.ValType{types.I32()}, ft.Params)
	require.Equal(t, []types.ValType{types.I64()}, ft.Results)

	_, ok = r.FunctionType(5)
	require.False(t, ok)
}

func TestValidatorResources_TableMemoryGlobalTag(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesGC, DefaultLimits())
	require.NoError(t, m.AddTable(&TableType{ElemType: types.FUNCREF, Limit: LimitsType{Min: 1}}, 0))
	require.NoError(t, m.AddMemory(&MemoryType{Limit: LimitsType{Min: 1}}, 0))
	require.NoError(t, m.AddGlobal(&GlobalType{ValType: types.I32()}, &ConstantExpression{Instructions: []ConstInstruction{{Opcode: OpcodeI32Const}}}, 0))

	funcTypeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddTag(&TagType{TypeIndex: funcTypeIdx}, 0))
	require.NoError(t, m.Freeze(0, 0))

	r := NewValidatorResources(m)

	_, ok := r.Table(0)
	require.True(t, ok)
	_, ok = r.Table(1)
	require.False(t, ok)

	_, ok = r.Memory(0)
	require.True(t, ok)

	g, ok := r.Global(0)
	require.True(t, ok)
	require.True(t, g.ValType.Equal(types.I32()))

	_, ok = r.Tag(0)
	require.True(t, ok)
}

func TestValidatorResources_DataCount(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	r := NewValidatorResources(m)
	_, ok := r.DataCount()
	require.False(t, ok)

	m.SetDataCount(3)
	r = NewValidatorResources(m)
	count, ok := r.DataCount()
	require.True(t, ok)
	require.Equal(t, uint32(3), count)
}

func TestValidatorResources_IsFunctionReferenced(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesV2, DefaultLimits())
	typeIdx := addFuncType(t, m, nil, nil)
	require.NoError(t, m.AddFunction(typeIdx, 0))
	require.NoError(t, m.AddExport("f", EntityType{Kind: ExternTypeFunc, Func: 0}, 0))
	require.NoError(t, m.Freeze(1, 0))

	r := NewValidatorResources(m)
	require.True(t, r.IsFunctionReferenced(0))
	require.False(t, r.IsFunctionReferenced(1))
}

func TestValidatorResources_SubtypingAndTopType(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesGC, DefaultLimits())
	require.NoError(t, m.Freeze(0, 0))
	r := NewValidatorResources(m)

	i31 := types.RefType{Nullable: true, Heap: types.Abstract(types.HeapI31)}
	eq := types.RefType{Nullable: true, Heap: types.Abstract(types.HeapEq)}
	require.True(t, r.IsRefSubtype(i31, eq))
	require.False(t, r.IsRefSubtype(eq, i31))

	require.Equal(t, types.Abstract(types.HeapAny), r.TopType(types.Abstract(types.HeapI31)))
}

func TestValidatorResources_CheckHeapType(t *testing.T) {
	m := NewModuleIndexSpaces(api.CoreFeaturesGC, DefaultLimits())
	require.NoError(t, m.Freeze(0, 0))
	r := NewValidatorResources(m)

	require.NoError(t, r.CheckHeapType(types.Abstract(types.HeapAny), 0))

	err := r.CheckHeapType(types.Concrete(types.TypeId(9)), 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "type index out of range")
}
