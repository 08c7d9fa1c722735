package wasmvalid

import (
	"context"
	"fmt"
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

func wasmModule(secs ...[]byte) []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	for _, s := range secs {
		out = append(out, s...)
	}
	return out
}

func wasmName(s string) []byte {
	out := u32(len(s))
	return append(out, s...)
}

const (
	secType     = 0x01
	secImport   = 0x02
	secFunction = 0x03
	secTable    = 0x04
	secMemory   = 0x05
	secGlobal   = 0x06
	secExport   = 0x07
	secCode     = 0x0a
)

func funcType(params, results int) []byte {
	payload := append(u32(1), 0x60)
	payload = append(payload, u32(params)...)
	for i := 0; i < params; i++ {
		payload = append(payload, 0x7f) // i32
	}
	payload = append(payload, u32(results)...)
	for i := 0; i < results; i++ {
		payload = append(payload, 0x7f)
	}
	return sec(secType, payload)
}

func trivialBody() []byte { return []byte{0, wasm.OpcodeEnd} }

// funcrefTable encodes a single funcref table entry: elemtype, limits flags
// (min only), min.
func funcrefTable(min int) []byte {
	return append([]byte{0x70, 0x00}, u32(min)...)
}

// TestValidate_EmptyModule covers end-to-end scenario 1: a module with only
// the magic number and version accepts with zero declared entities.
func TestValidate_EmptyModule(t *testing.T) {
	err := NewValidator(nil).Validate(context.Background(), wasmModule())
	require.NoError(t, err)
}

// TestValidate_OneFunction covers end-to-end scenario 2: a single declared
// function accepts.
func TestValidate_OneFunction(t *testing.T) {
	funcSec := sec(secFunction, append(u32(1), 0))
	body := trivialBody()
	codeSec := sec(secCode, append(u32(1), append(u32(len(body)), body...)...))

	data := wasmModule(funcType(2, 1), funcSec, codeSec)
	err := NewValidator(nil).Validate(context.Background(), data)
	require.NoError(t, err)
}

// TestValidate_ReferencedFunction covers end-to-end scenario 3: a global
// initialized with ref.func of function 1 records function_references={1}.
// A FuncBodyValidator observes resources.IsFunctionReferenced to assert the
// snapshot end to end, since the root package does not otherwise expose
// ValidatorResources.
func TestValidate_ReferencedFunction(t *testing.T) {
	funcSec := sec(secFunction, append(u32(2), 0, 0))
	body := trivialBody()
	bodyEntry := append(u32(len(body)), body...)
	codeSec := sec(secCode, append(u32(2), append(bodyEntry, bodyEntry...)...))

	// global funcref, mutable=0, init = ref.func 1; end
	globalPayload := append(u32(1), 0x70, 0x00, 0xd2)
	globalPayload = append(globalPayload, u32(1)...)
	globalPayload = append(globalPayload, wasm.OpcodeEnd)
	globalSec := sec(secGlobal, globalPayload)

	data := wasmModule(funcType(0, 0), funcSec, globalSec, codeSec)

	var sawReference, sawNotReferenced bool
	fv := FuncBodyValidatorFunc(func(resources *wasm.ValidatorResources, body wasm.FuncBody) error {
		if body.Index == 1 {
			sawReference = resources.IsFunctionReferenced(1)
		}
		if body.Index == 0 {
			sawNotReferenced = !resources.IsFunctionReferenced(0)
		}
		return nil
	})

	err := NewValidator(nil).WithFuncBodyValidator(fv).Validate(context.Background(), data)
	require.NoError(t, err)
	require.True(t, sawReference)
	require.True(t, sawNotReferenced)
}

// TestValidate_DuplicateExport covers end-to-end scenario 4.
func TestValidate_DuplicateExport(t *testing.T) {
	funcSec := sec(secFunction, append(u32(1), 0))
	body := trivialBody()
	codeSec := sec(secCode, append(u32(1), append(u32(len(body)), body...)...))
	exportPayload := append(u32(2),
		append(wasmName("a"), 0x00, 0)...)
	exportPayload = append(exportPayload, append(wasmName("a"), 0x00, 0)...)
	exportSec := sec(secExport, exportPayload)

	data := wasmModule(funcType(0, 0), funcSec, exportSec, codeSec)

	err := NewValidator(nil).Validate(context.Background(), data)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, DuplicateExport, ve.Kind)
}

// TestValidate_InvalidMemoryLimits covers end-to-end scenario 5.
func TestValidate_InvalidMemoryLimits(t *testing.T) {
	memPayload := append([]byte{0x00}, u32(0x20000)...) // flags=0 (min only), min=2^17 pages
	data := wasmModule(sec(secMemory, append(u32(1), memPayload...)))

	err := NewValidator(nil).Validate(context.Background(), data)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, InvalidLimits, ve.Kind)
}

// TestValidate_TwoTablesWithoutReferenceTypes covers the §8 boundary case:
// a second table declared without reference-types enabled is LimitExceeded,
// not Malformed.
func TestValidate_TwoTablesWithoutReferenceTypes(t *testing.T) {
	tablePayload := append(u32(2), funcrefTable(1)...)
	tablePayload = append(tablePayload, funcrefTable(1)...)
	data := wasmModule(sec(secTable, tablePayload))

	cfg := NewConfig().WithFeatures(api.CoreFeaturesV1)
	err := NewValidator(cfg).Validate(context.Background(), data)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, LimitExceeded, ve.Kind)
}

// TestValidate_ParallelDeterminism covers end-to-end scenario 6: the same
// 1000-function module, validated with 1 and with 8 workers, must identify
// the same failing function regardless of worker count.
func TestValidate_ParallelDeterminism(t *testing.T) {
	const n = 1000
	const failing = 500

	funcPayload := u32(n)
	for i := 0; i < n; i++ {
		funcPayload = append(funcPayload, 0)
	}
	funcSec := sec(secFunction, funcPayload)

	body := trivialBody()
	bodyEntry := append(u32(len(body)), body...)
	codePayload := u32(n)
	for i := 0; i < n; i++ {
		codePayload = append(codePayload, bodyEntry...)
	}
	codeSec := sec(secCode, codePayload)

	data := wasmModule(funcType(0, 0), funcSec, codeSec)

	fv := FuncBodyValidatorFunc(func(resources *wasm.ValidatorResources, body wasm.FuncBody) error {
		if body.Index == failing {
			return fmt.Errorf("function %d intentionally rejected", failing)
		}
		return nil
	})

	for _, workers := range []int{1, 8} {
		cfg := NewConfig().WithWorkerCount(workers)
		err := NewValidator(cfg).WithFuncBodyValidator(fv).Validate(context.Background(), data)
		require.Error(t, err)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		require.Equal(t, failing, ve.FunctionIndex)
	}
}

// TestValidate_SharedMemoryWithoutMaximum asserts a boundary case named in
// §8: a shared memory without a declared maximum is InvalidLimits.
func TestValidate_SharedMemoryWithoutMaximum(t *testing.T) {
	memPayload := append([]byte{0x02}, u32(1)...) // flags=0x02 (shared, no max)
	data := wasmModule(sec(secMemory, append(u32(1), memPayload...)))

	err := NewValidator(NewConfig().WithFeatures(0xFFFFFFFFFFFFFFFF)).Validate(context.Background(), data)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, InvalidLimits, ve.Kind)
}
