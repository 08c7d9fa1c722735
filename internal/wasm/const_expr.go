package wasm

import (
	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/types"
)

// Opcodes named for the constant-expression decoder and validator. Named
// individually, matching the teacher's opcode-constant style, rather than
// importing a full instruction table. Not every opcode named here is
// admitted in a constant expression: ConstExprValidator lists the set it
// accepts.
const (
	OpcodeUnreachable = 0x00
	OpcodeNop         = 0x01
	OpcodeEnd         = 0x0b
	OpcodeDrop        = 0x1a

	OpcodeLocalGet = 0x20

	OpcodeGlobalGet = 0x23

	OpcodeI32Const = 0x41
	OpcodeI64Const = 0x42
	OpcodeF32Const = 0x43
	OpcodeF64Const = 0x44

	OpcodeI32Add = 0x6a
	OpcodeI32Sub = 0x6b
	OpcodeI32Mul = 0x6c
	OpcodeI64Add = 0x7c
	OpcodeI64Sub = 0x7d
	OpcodeI64Mul = 0x7e

	OpcodeF32Abs = 0x8b

	OpcodeRefNull = 0xd0
	OpcodeRefFunc = 0xd2
	OpcodeRefI31  = 0xfb1c

	// OpcodeVecPrefix introduces a vector instruction: the opcode byte is
	// followed by a LEB128 sub-opcode. OpcodeV128Const is that sub-opcode
	// (not a full opcode value by itself); VecOpcode folds prefix and
	// sub-opcode into the single value a decoded ConstInstruction carries,
	// the same convention the GC-prefixed opcodes below already use.
	OpcodeVecPrefix = 0xfd
	OpcodeV128Const = 0x0c

	OpcodeStructNew        = 0xfb00
	OpcodeStructNewDefault = 0xfb01
	OpcodeArrayNew         = 0xfb06
	OpcodeArrayNewDefault  = 0xfb07
	OpcodeArrayNewFixed    = 0xfb08
	OpcodeExternConvertAny = 0xfb1b
	OpcodeAnyConvertExtern = 0xfb1a
	OpcodeRefI31Shared     = 0xfb1d
)

// VecOpcode folds the vector prefix (0xfd) and a sub-opcode into the single
// value used to match a decoded vector ConstInstruction, mirroring how the
// GC-prefixed (0xfb) opcodes above are already named as combined constants.
func VecOpcode(sub uint32) uint32 { return OpcodeVecPrefix<<8 | sub }

// ConstExprContext tells the constant-expression validator whether a
// ref.func encountered here may be recorded into the module's
// function-reference set, per §4.4's side-effect rule. The data-segment
// context must reject ref.func outright rather than silently drop the
// observation — this is the "close the latent panic path" requirement
// from §9's open questions.
type ConstExprContext int

const (
	// ConstExprContextRecording allows ref.func and records its operand.
	ConstExprContextRecording ConstExprContext = iota
	// ConstExprContextNoRecording rejects ref.func with NonConstantOperator:
	// used for data-segment offset expressions, where the module has no
	// structural place to record the observation.
	ConstExprContextNoRecording
)

// ConstExprValidator validates that an initializer-expression operator
// sequence yields exactly one value of an expected type. It admits only
// i32/i64/f32/f64.const, v128.const, global.get, ref.null, ref.func and the
// extended-const i32/i64 add, sub and mul, gated by the enabled feature set.
// The GC operators (struct.new, struct.new_default, array.new,
// array.new_default, array.new_fixed, ref.i31, ref.i31_shared,
// any.convert_extern, extern.convert_any) are not admitted, whatever
// features are enabled.
type ConstExprValidator struct {
	Features           api.CoreFeatures
	Globals            []*GlobalType // index space visible to global.get
	NumImportedGlobals uint32
	Context            ConstExprContext

	// Store resolves subtype relationships for ref.null/global.get/element
	// results: two reference types are compatible only if Store says one is
	// a subtype of the other, not merely because both are references.
	Store *types.TypeStore

	// RecordRefFunc, when non-nil, is invoked for every validated
	// ref.func operand. It is nil when Context is
	// ConstExprContextNoRecording, in which case ref.func is always an
	// error and this field is never consulted.
	RecordRefFunc func(index uint32)
}

// Validate walks expr's full operator sequence, maintaining the small
// value-type stack §4.4's closed instruction set can produce, and checks
// that it yields exactly one value assignable to expected. Every operator
// is checked, not just the first: a multi-operator extended-const
// expression like "i32.const; i32.const; i32.add; end" validates its
// second i32.const and the add that consumes both, rather than stopping
// after the leading opcode.
func (v *ConstExprValidator) Validate(expr *ConstantExpression, expected types.ValType, offset int) error {
	if len(expr.Instructions) == 0 {
		return fmtOffset(offset, "empty constant expression")
	}

	var stack []types.ValType
	pop := func() (types.ValType, bool) {
		if len(stack) == 0 {
			return types.ValType{}, false
		}
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return t, true
	}
	popExpect := func(want types.ValType) error {
		got, ok := pop()
		if !ok {
			return fmtOffset(offset, "constant expression: operand stack underflow")
		}
		if !types.ValTypeIsSubtype(got, want, v.Store) {
			return fmtOffset(offset, "type mismatch in constant expression: got %s, expected %s", got, want)
		}
		return nil
	}

	for _, instr := range expr.Instructions {
		switch instr.Opcode {
		case OpcodeI32Const:
			stack = append(stack, types.I32())
		case OpcodeI64Const:
			stack = append(stack, types.I64())
		case OpcodeF32Const:
			stack = append(stack, types.F32())
		case OpcodeF64Const:
			stack = append(stack, types.F64())
		case VecOpcode(OpcodeV128Const):
			if err := v.Features.RequireEnabled(api.CoreFeatureSIMD); err != nil {
				return fmtOffset(offset, "v128.const: %v", err)
			}
			stack = append(stack, types.V128())
		case OpcodeGlobalGet:
			if int(instr.Index) >= len(v.Globals) || v.Globals[instr.Index] == nil {
				return fmtOffset(offset, "global index out of range: %d", instr.Index)
			}
			g := v.Globals[instr.Index]
			if g.Mutable {
				return fmtOffset(offset, "global.get %d: constant expressions cannot reference a mutable global", instr.Index)
			}
			if instr.Index >= v.NumImportedGlobals && !v.Features.IsEnabled(api.CoreFeatureGC) {
				return fmtOffset(offset, "global.get %d: constant expressions can only reference imported globals unless gc is enabled", instr.Index)
			}
			stack = append(stack, g.ValType)
		case OpcodeRefNull:
			stack = append(stack, types.Reference(types.RefType{Nullable: true, Heap: instr.Heap}))
		case OpcodeRefFunc:
			if v.Context == ConstExprContextNoRecording {
				return fmtOffset(offset, "non-constant operator: ref.func is not allowed in this context")
			}
			if v.RecordRefFunc != nil {
				v.RecordRefFunc(instr.Index)
			}
			stack = append(stack, types.Reference(types.FUNCREF))
		case OpcodeI32Add, OpcodeI32Sub, OpcodeI32Mul:
			if err := v.Features.RequireEnabled(api.CoreFeatureExtendedConst); err != nil {
				return fmtOffset(offset, "non-constant operator: %v", err)
			}
			if err := popExpect(types.I32()); err != nil {
				return err
			}
			if err := popExpect(types.I32()); err != nil {
				return err
			}
			stack = append(stack, types.I32())
		case OpcodeI64Add, OpcodeI64Sub, OpcodeI64Mul:
			if err := v.Features.RequireEnabled(api.CoreFeatureExtendedConst); err != nil {
				return fmtOffset(offset, "non-constant operator: %v", err)
			}
			if err := popExpect(types.I64()); err != nil {
				return err
			}
			if err := popExpect(types.I64()); err != nil {
				return err
			}
			stack = append(stack, types.I64())
		default:
			return fmtOffset(offset, "non-constant operator: opcode %#x is not admissible in a constant expression", instr.Opcode)
		}
	}

	if len(stack) != 1 {
		return fmtOffset(offset, "constant expression must yield exactly one value, got %d", len(stack))
	}
	return v.checkType(stack[0], expected, offset)
}

func (v *ConstExprValidator) checkType(got, expected types.ValType, offset int) error {
	if expected.IsUnknown() {
		return nil
	}
	if !types.ValTypeIsSubtype(got, expected, v.Store) {
		return fmtOffset(offset, "type mismatch in constant expression: got %s, expected %s", got, expected)
	}
	return nil
}
