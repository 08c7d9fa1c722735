package wasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazvalid/wasmvalid/api"
)

func TestModuleValidator_EnterSection_OrderEnforced(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, mv.EnterSection(SectionIDType, 0))
	require.NoError(t, mv.EnterSection(SectionIDImport, 1))

	err := mv.EnterSection(SectionIDType, 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "misplaced section")
}

func TestModuleValidator_EnterSection_DuplicateRejected(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, mv.EnterSection(SectionIDFunction, 0))

	err := mv.EnterSection(SectionIDFunction, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestModuleValidator_EnterSection_CustomNeverAdvances(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, mv.EnterSection(SectionIDGlobal, 0))
	require.NoError(t, mv.EnterSection(SectionIDCustom, 1))
	require.NoError(t, mv.EnterSection(SectionIDCustom, 2))
	require.Equal(t, PhaseGlobal, mv.Phase())

	require.NoError(t, mv.EnterSection(SectionIDExport, 3))
}

func TestModuleValidator_CodeSectionStart_FreezesModule(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	resources, err := mv.CodeSectionStart(0, 0)
	require.NoError(t, err)
	require.NotNil(t, resources)
	require.True(t, mv.module.IsShared())
	require.Panics(t, func() { mv.Module() })
}

func TestModuleValidator_CodeSectionEntry_IndexesFromFirstDeclaredFunction(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	m := mv.Module()
	typeIdx := addFuncType(t, m, nil, nil)
	for i := 0; i < 2; i++ {
		require.NoError(t, m.AddImport(&Import{Module: "env", Name: "f", Type: EntityType{Kind: ExternTypeFunc, Func: typeIdx}}, 0))
	}

	_, err := mv.CodeSectionStart(0, 0)
	require.NoError(t, err)

	task := mv.CodeSectionEntry([]byte{OpcodeEnd})
	require.Equal(t, Index(2), task.Index)
	task2 := mv.CodeSectionEntry([]byte{OpcodeEnd})
	require.Equal(t, Index(3), task2.Index)
}

func TestModuleValidator_End_FreezesModulesWithNoCodeSection(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	_, err := mv.End(0)
	require.NoError(t, err)
	require.Equal(t, PhaseEnd, mv.Phase())
	require.NotNil(t, mv.Resources())
}

func TestModuleValidator_End_FreezesModulesWithDataButNoFunctions(t *testing.T) {
	mv := NewModuleValidator(api.CoreFeaturesV2, DefaultLimits())
	require.NoError(t, mv.EnterSection(SectionIDData, 0))

	_, err := mv.End(1)
	require.NoError(t, err)
	require.NotNil(t, mv.Resources())
}
