// Package types implements the value-type and structural-type system used
// to validate a WebAssembly module: value types, reference types, heap
// types, and the composite (func/struct/array) shapes stored in a
// TypeStore.
package types

import "fmt"

// ValKind discriminates the cases of ValType.
type ValKind uint8

const (
	KindI32 ValKind = iota
	KindI64
	KindF32
	KindF64
	KindV128
	KindRef
	// KindUnknown is a sentinel used where no expected type is known in
	// advance, e.g. when only decoding success matters. It is never a
	// type any concrete value actually has.
	KindUnknown
)

// Unknown returns the KindUnknown sentinel value.
func Unknown() ValType { return ValType{Kind: KindUnknown} }

// ValType is a WebAssembly value type: one of the four numeric types, the
// vector type, or a reference type.
type ValType struct {
	Kind ValKind
	Ref  RefType // meaningful only when Kind == KindRef
}

func I32() ValType  { return ValType{Kind: KindI32} }
func I64() ValType  { return ValType{Kind: KindI64} }
func F32() ValType  { return ValType{Kind: KindF32} }
func F64() ValType  { return ValType{Kind: KindF64} }
func V128() ValType { return ValType{Kind: KindV128} }

// Reference builds a ValType wrapping a RefType.
func Reference(r RefType) ValType { return ValType{Kind: KindRef, Ref: r} }

func (v ValType) IsRef() bool { return v.Kind == KindRef }

func (v ValType) String() string {
	switch v.Kind {
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindV128:
		return "v128"
	case KindRef:
		return v.Ref.String()
	default:
		return "unknown"
	}
}

func (v ValType) IsUnknown() bool { return v.Kind == KindUnknown }

func (v ValType) Equal(o ValType) bool {
	if v.Kind != o.Kind {
		return false
	}
	if v.Kind == KindRef {
		return v.Ref.Equal(o.Ref)
	}
	return true
}

// HeapKind discriminates the abstract top/bottom heap types from concrete,
// module-defined composite types.
type HeapKind uint8

const (
	HeapFunc HeapKind = iota
	HeapNoFunc
	HeapExtern
	HeapNoExtern
	HeapAny
	HeapEq
	HeapI31
	HeapStruct
	HeapArray
	HeapNone
	HeapExn
	HeapNoExn
	HeapConcrete
)

func (k HeapKind) String() string {
	switch k {
	case HeapFunc:
		return "func"
	case HeapNoFunc:
		return "nofunc"
	case HeapExtern:
		return "extern"
	case HeapNoExtern:
		return "noextern"
	case HeapAny:
		return "any"
	case HeapEq:
		return "eq"
	case HeapI31:
		return "i31"
	case HeapStruct:
		return "struct"
	case HeapArray:
		return "array"
	case HeapNone:
		return "none"
	case HeapExn:
		return "exn"
	case HeapNoExn:
		return "noexn"
	case HeapConcrete:
		return "concrete"
	default:
		return "unknown"
	}
}

// HeapType is either one of the abstract top/bottom types of the four
// wasm-gc type hierarchies (func, extern, any, exn) or a concrete reference
// to an entry in a TypeStore.
type HeapType struct {
	Kind   HeapKind
	Shared bool
	Index  TypeId // valid iff Kind == HeapConcrete
}

func Abstract(k HeapKind) HeapType { return HeapType{Kind: k} }

func Concrete(id TypeId) HeapType { return HeapType{Kind: HeapConcrete, Index: id} }

func (h HeapType) Equal(o HeapType) bool {
	if h.Kind != o.Kind || h.Shared != o.Shared {
		return false
	}
	if h.Kind == HeapConcrete {
		return h.Index == o.Index
	}
	return true
}

func (h HeapType) String() string {
	prefix := ""
	if h.Shared {
		prefix = "shared "
	}
	if h.Kind == HeapConcrete {
		return fmt.Sprintf("%s(type %d)", prefix, h.Index)
	}
	return prefix + h.Kind.String()
}

// RefType is a (possibly nullable) reference to a HeapType.
type RefType struct {
	Nullable bool
	Heap     HeapType
}

// FUNCREF and EXTERNREF are the two reference types admissible all the way
// back to the WebAssembly MVP's follow-on reference-types proposal.
var (
	FUNCREF   = RefType{Nullable: true, Heap: Abstract(HeapFunc)}
	EXTERNREF = RefType{Nullable: true, Heap: Abstract(HeapExtern)}
)

func (r RefType) Equal(o RefType) bool {
	return r.Nullable == o.Nullable && r.Heap.Equal(o.Heap)
}

func (r RefType) String() string {
	null := ""
	if r.Nullable {
		null = "null "
	}
	return fmt.Sprintf("(ref %s%s)", null, r.Heap.String())
}
