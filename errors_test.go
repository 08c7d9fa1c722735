package wasmvalid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationError_Error(t *testing.T) {
	err := newError(LimitExceeded, 12, "too many %s", "types")
	require.Equal(t, "limit exceeded at offset 12: too many types", err.Error())

	withIdx := err.withFunctionIndex(3)
	require.Equal(t, "limit exceeded at offset 12 (function 3): too many types", withIdx.Error())
	require.Equal(t, "limit exceeded at offset 12: too many types", err.Error(), "withFunctionIndex must not mutate the receiver")
}

func TestWrapInternalError_ExtractsOffset(t *testing.T) {
	inner := fmt.Errorf("too many tables (offset %d)", 7)
	ve := wrapInternalError(inner)
	require.Equal(t, LimitExceeded, ve.Kind)
	require.Equal(t, 7, ve.Offset)
	require.Equal(t, "too many tables", ve.Message)
}

func TestWrapInternalError_PassesThroughValidationError(t *testing.T) {
	original := newError(MisplacedSection, 1, "duplicate type section")
	require.Same(t, original, wrapInternalError(original))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		kind Kind
	}{
		{"misplaced section: duplicate type section", MisplacedSection},
		{"duplicate export name \"a\"", DuplicateExport},
		{"shared mismatch: shared table element type (ref func) is not shared", SharedMismatch},
		{"type mismatch in constant expression: got i32, expected i64", TypeMismatch},
		{"non-constant operator: opcode 0x20 is not admissible in a constant expression", NonConstantOperator},
		{"global.get 1: constant expressions cannot reference a mutable global", NonConstantOperator},
		{"invalid limits: minimum 5 exceeds maximum 3", InvalidLimits},
		{"shared memory: feature \"shared-everything-threads\" is disabled", FeatureDisabled},
		{"table index out of range: 4", OutOfBounds},
		{"too many tables", LimitExceeded},
		{"type size 10 exceeds the limit 5", LimitExceeded},
		{"element type funcref is not a subtype of table element type externref", TypeMismatch},
		{"start function must have type [] -> []", TypeMismatch},
		{"totally unrecognized message", Malformed},
	}
	for _, tc := range cases {
		require.Equal(t, tc.kind, classify(tc.msg), tc.msg)
	}
}
