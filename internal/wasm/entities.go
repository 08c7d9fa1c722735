package wasm

import (
	"fmt"
	"strings"

	"github.com/wazvalid/wasmvalid/internal/types"
)

// LimitsType is the (min, optional max) pair shared by table and memory
// declarations.
type LimitsType struct {
	Min     uint64
	Max     *uint64
	Shared  bool
	Is64    bool // memory64 / table64: indices are i64 rather than i32.
}

// TableType is a table declaration: its element reference type and size
// limits.
type TableType struct {
	ElemType types.RefType
	Limit    LimitsType
}

// MemoryType is a memory declaration. PageSizeLog2 is nil unless the
// custom-page-sizes proposal is used to declare a non-default page size.
type MemoryType struct {
	Limit        LimitsType
	PageSizeLog2 *uint32
}

// GlobalType is a global declaration's content type and mutability.
type GlobalType struct {
	ValType types.ValType
	Mutable bool
	Shared  bool
}

// TagType is a tag declaration (exception-handling proposal): the
// module-local type index of the function type describing the values
// carried by the exception.
type TagType struct {
	TypeIndex Index
}

// EntityType is the closed tagged union of the five kinds an import or
// export can name, following §3's EntityType definition: per-kind
// behavior is discriminated on Kind at the site of use rather than through
// dynamic dispatch, per §9's design note.
//
// Func carries a module-local index: for an imported function, the type
// index naming its signature (the same namespace AddFunction resolves
// against); for an exported function, the function index being exported.
// AddImport and AddExport each interpret the field according to which one
// is calling.
type EntityType struct {
	Kind   ExternType
	Func   Index
	Table  TableType
	Memory MemoryType
	Global GlobalType
	Tag    TagType
}

// TypeSize is a rough measure of how much declared-type complexity this
// entity contributes to the module's global budget (§3, "type_size").
func (e EntityType) TypeSize() uint32 {
	switch e.Kind {
	case ExternTypeFunc:
		return 1
	case ExternTypeTable, ExternTypeMemory, ExternTypeGlobal:
		return 1
	case ExternTypeTag:
		return 1
	}
	return 1
}

// Import is one entry of the import section: a (module, name) pair and the
// type of entity being imported.
type Import struct {
	Module, Name string
	Type         EntityType
}

// Export is one entry of the export section.
type Export struct {
	Name string
	Type EntityType
}

// ConstInstruction is one decoded operator inside a constant expression:
// the admissible opcode (vector- and GC-prefixed opcodes are folded into a
// single value, prefix byte in the high bits, matching the OpcodeXxx
// constants) plus whatever immediate it carries. The binary decoder parses
// each operator's immediate according to its own encoding, so this value
// is already correctly sized; ConstExprValidator never re-derives an
// immediate's byte length from raw bytes.
type ConstInstruction struct {
	Opcode uint32
	// Index is the ref.func/global.get operand: a function or global
	// index, respectively. Unused by other opcodes.
	Index uint32
	// Heap is ref.null's operand. Unused by other opcodes.
	Heap types.HeapType
}

// ConstantExpression is a raw, not-yet-validated initializer expression:
// the sequence of operators between the expression's start and its
// terminating "end" (exclusive). ConstExprValidator.Validate walks every
// instruction, not just the first, so multi-operator extended-const
// expressions are fully checked.
type ConstantExpression struct {
	Instructions []ConstInstruction
}

// ElementSegment is one entry of the element section. For active segments
// TableIndex and OffsetExpr are populated; Mode distinguishes the three
// bulk-memory-proposal forms.
type ElementSegment struct {
	Mode       ElementMode
	TableIndex Index
	OffsetExpr *ConstantExpression
	Type       types.RefType
	Init       []ElementInit
}

// ElementMode discriminates the three forms an element segment can take.
type ElementMode byte

const (
	ElementModeActive ElementMode = iota
	ElementModePassive
	ElementModeDeclarative
)

// ElementInit is one entry of an element segment's initializer list: either
// a bare function index (the function-index encoding) or a constant
// expression (the expression encoding introduced by reference-types).
type ElementInit struct {
	FuncIndex *Index
	Expr      *ConstantExpression
}

// DataSegment is one entry of the data section.
type DataSegment struct {
	Mode             DataMode
	MemoryIndex      Index
	OffsetExpression *ConstantExpression
	Init             []byte
}

// DataMode discriminates active vs. passive data segments.
type DataMode byte

const (
	DataModeActive DataMode = iota
	DataModePassive
)

// FuncBody is one code-section entry: the still-undecoded bytes of a
// single function's locals declarations and instruction stream, paired
// with the function index it belongs to (imports counted first, matching
// ModuleIndexSpaces.Functions). The decoder never inspects Bytes beyond
// finding its length; per §1 the per-opcode body validator is out of
// scope, so this is the hand-off unit the root package's FuncBodyValidator
// receives.
type FuncBody struct {
	Index Index
	Bytes []byte
}

// FuncTypeString renders a function type the way the teacher's
// FunctionType.String did: params and results each concatenated with no
// separator, joined by an underscore, "null" standing in for an empty
// list.
func FuncTypeString(ft *types.FuncType) string {
	var b strings.Builder
	if len(ft.Params) == 0 {
		b.WriteString("null")
	} else {
		for _, p := range ft.Params {
			b.WriteString(p.String())
		}
	}
	b.WriteByte('_')
	if len(ft.Results) == 0 {
		b.WriteString("null")
	} else {
		for _, r := range ft.Results {
			b.WriteString(r.String())
		}
	}
	return b.String()
}

func fmtOffset(offset int, format string, args ...interface{}) error {
	return fmt.Errorf(format+" (offset %d)", append(args, offset)...)
}
