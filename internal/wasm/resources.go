package wasm

import "github.com/wazvalid/wasmvalid/internal/types"

// ValidatorResources is the read-only view over a frozen ModuleIndexSpaces
// that function-body validators consult, per §4.7. It is cheap to copy (a
// handful of slice and pointer fields, all backed by shared, no-longer-mutated
// storage) and is handed to every worker in the parallel validation pool, so
// every lookup method returns an ok bool rather than panicking on a
// not-found index: a malformed function body must surface as an ordinary
// validation error, never as an out-of-bounds panic in a goroutine the
// caller cannot recover from as gracefully.
type ValidatorResources struct {
	store *types.TypeStore

	moduleTypes []types.TypeId
	functions   []Index
	tables      []*TableType
	memories    []*MemoryType
	globals     []*GlobalType
	tags        []*TagType

	elementTypes []types.RefType
	dataCount    *uint32

	functionReferences map[Index]struct{}
}

// NewValidatorResources builds the read-only snapshot of m. The caller must
// have already called m.Freeze (and, if the handle is shared across
// goroutines, MaybeOwned.Share) before invoking this, since the returned
// resources alias m's slices rather than copying their contents.
func NewValidatorResources(m *ModuleIndexSpaces) *ValidatorResources {
	return &ValidatorResources{
		store:              m.Store,
		moduleTypes:        m.Types,
		functions:          m.Functions,
		tables:             m.Tables,
		memories:           m.Memories,
		globals:            m.Globals,
		tags:               m.Tags,
		elementTypes:       m.ElementTypes,
		dataCount:          m.DataCount,
		functionReferences: m.FunctionReferences,
	}
}

// FunctionType resolves a module-local function index to its signature.
func (r *ValidatorResources) FunctionType(funcIndex Index) (*types.FuncType, bool) {
	if int(funcIndex) >= len(r.functions) {
		return nil, false
	}
	sub, ok := r.SubType(r.functions[funcIndex])
	if !ok || sub.Composite.Kind != types.CompositeFunc {
		return nil, false
	}
	return &sub.Composite.Func, true
}

// SubType resolves a module-local type index to its interned SubType.
func (r *ValidatorResources) SubType(typeIndex Index) (*types.SubType, bool) {
	if int(typeIndex) >= len(r.moduleTypes) {
		return nil, false
	}
	st := r.store.At(r.moduleTypes[typeIndex])
	if st == nil {
		return nil, false
	}
	return st, true
}

// Table resolves a module-local table index.
func (r *ValidatorResources) Table(tableIndex Index) (*TableType, bool) {
	if int(tableIndex) >= len(r.tables) {
		return nil, false
	}
	return r.tables[tableIndex], true
}

// Memory resolves a module-local memory index.
func (r *ValidatorResources) Memory(memoryIndex Index) (*MemoryType, bool) {
	if int(memoryIndex) >= len(r.memories) {
		return nil, false
	}
	return r.memories[memoryIndex], true
}

// Global resolves a module-local global index.
func (r *ValidatorResources) Global(globalIndex Index) (*GlobalType, bool) {
	if int(globalIndex) >= len(r.globals) {
		return nil, false
	}
	return r.globals[globalIndex], true
}

// Tag resolves a module-local tag index.
func (r *ValidatorResources) Tag(tagIndex Index) (*TagType, bool) {
	if int(tagIndex) >= len(r.tags) {
		return nil, false
	}
	return r.tags[tagIndex], true
}

// ElementType resolves an element-segment index to its declared element
// type, needed by table.init/elem.drop validation.
func (r *ValidatorResources) ElementType(segmentIndex Index) (types.RefType, bool) {
	if int(segmentIndex) >= len(r.elementTypes) {
		return types.RefType{}, false
	}
	return r.elementTypes[segmentIndex], true
}

// ElementCount returns the number of element segments in the module.
func (r *ValidatorResources) ElementCount() int { return len(r.elementTypes) }

// DataCount returns the module's declared data-segment count and whether a
// data-count section was present. memory.init and data.drop are only valid
// when it was.
func (r *ValidatorResources) DataCount() (uint32, bool) {
	if r.dataCount == nil {
		return 0, false
	}
	return *r.dataCount, true
}

// IsFunctionReferenced reports whether funcIndex was observed as a ref.func
// operand anywhere in the module outside of function bodies (global
// initializers, element segments, exports). Function-body validators must
// still additionally track ref.func seen within code, per §4.7.
func (r *ValidatorResources) IsFunctionReferenced(funcIndex Index) bool {
	_, ok := r.functionReferences[funcIndex]
	return ok
}

// IsSubtype reports whether sub is a subtype of super under the module's
// type store.
func (r *ValidatorResources) IsSubtype(sub, super types.ValType) bool {
	return types.ValTypeIsSubtype(sub, super, r.store)
}

// IsRefSubtype reports whether sub is a subtype of super under the
// module's type store.
func (r *ValidatorResources) IsRefSubtype(sub, super types.RefType) bool {
	return types.RefTypeIsSubtype(sub, super, r.store)
}

// TopType returns the top type of h's hierarchy.
func (r *ValidatorResources) TopType(h types.HeapType) types.HeapType {
	return types.TopType(h, r.store)
}

// CheckHeapType reports whether h names a valid heap type under the
// module's store: abstract heap kinds are always valid here (feature
// gating already happened during structural validation), concrete ones
// must resolve to an interned type.
func (r *ValidatorResources) CheckHeapType(h types.HeapType, offset int) error {
	if h.Kind != types.HeapConcrete {
		return nil
	}
	if r.store.At(h.Index) == nil {
		return fmtOffset(offset, "type index out of range: %d", h.Index)
	}
	return nil
}
