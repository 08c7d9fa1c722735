package binary

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func u32(n int) []byte { return leb128.EncodeUint32(uint32(n)) }

func sec(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, u32(len(payload))...)
	return append(out, payload...)
}

func module(secs ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range secs {
		out = append(out, s...)
	}
	return out
}

func name(s string) []byte {
	out := u32(len(s))
	return append(out, s...)
}

// emptyFuncType encodes a single (func) -> () type.
func emptyFuncType() []byte {
	payload := append(u32(1), 0x60, 0, 0)
	return sec(sectionType, payload)
}

func newModuleValidator(features api.CoreFeatures) *wasm.ModuleValidator {
	return wasm.NewModuleValidator(features, wasm.DefaultLimits())
}

func TestDecodeModule_Empty(t *testing.T) {
	mv := newModuleValidator(api.CoreFeaturesV2)
	tasks, err := DecodeModule(module(), mv)
	require.NoError(t, err)
	require.Empty(t, tasks)
	require.Equal(t, wasm.PhaseEnd, mv.Phase())
}

func TestDecodeModule_OneFunction(t *testing.T) {
	funcSec := sec(sectionFunction, append(u32(1), 0))
	body := []byte{0, wasm.OpcodeEnd} // zero locals, end
	codeSec := sec(sectionCode, append(u32(1), append(u32(len(body)), body...)...))

	data := module(emptyFuncType(), funcSec, codeSec)

	mv := newModuleValidator(api.CoreFeaturesV2)
	tasks, err := DecodeModule(data, mv)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, wasm.Index(0), tasks[0].Index)
	require.Equal(t, body, tasks[0].Bytes)

	resources := mv.Resources()
	require.NotNil(t, resources)
}

func TestDecodeModule_ExportRecordsFunctionReference(t *testing.T) {
	funcSec := sec(sectionFunction, append(u32(1), 0))
	body := []byte{0, wasm.OpcodeEnd}
	codeSec := sec(sectionCode, append(u32(1), append(u32(len(body)), body...)...))
	exportPayload := append(u32(1), append(name("main"), api.ExternTypeFunc, 0)...)
	exportSec := sec(sectionExport, exportPayload)

	data := module(emptyFuncType(), funcSec, exportSec, codeSec)

	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.NoError(t, err)
	require.True(t, mv.Resources().IsFunctionReferenced(0))
}

func TestDecodeModule_SectionOutOfOrder(t *testing.T) {
	emptyFuncSec := sec(sectionFunction, u32(0))
	data := module(emptyFuncSec, emptyFuncType())

	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "misplaced section")
}

func TestDecodeModule_DuplicateSection(t *testing.T) {
	data := module(emptyFuncType(), emptyFuncType())

	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestDecodeModule_CustomSectionAnywhere(t *testing.T) {
	custom := sec(sectionCustom, append(name("producers"), 0x01, 0x02, 0x03))
	funcSec := sec(sectionFunction, append(u32(1), 0))
	body := []byte{0, wasm.OpcodeEnd}
	codeSec := sec(sectionCode, append(u32(1), append(u32(len(body)), body...)...))

	data := module(custom, emptyFuncType(), custom, funcSec, custom, codeSec, custom)

	mv := newModuleValidator(api.CoreFeaturesV2)
	tasks, err := DecodeModule(data, mv)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestDecodeModule_BadMagic(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6e, 0x01, 0x00, 0x00, 0x00}
	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid magic number")
}

func TestDecodeModule_UnsupportedVersion(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}
	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported version")
}

func TestDecodeModule_TruncatedSection(t *testing.T) {
	data := module()
	data = append(data, sectionType, 0x05) // declares 5 bytes, none present
	mv := newModuleValidator(api.CoreFeaturesV2)
	_, err := DecodeModule(data, mv)
	require.Error(t, err)
	require.Contains(t, err.Error(), "overruns the module")
}
