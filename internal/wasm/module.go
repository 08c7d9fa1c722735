package wasm

import (
	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/types"
)

// Resource ceilings. These mirror the conservative defaults most
// conformance test suites assume; a Config can override MaxTypes and
// MaxTypeSize through its WithMaxTypes and WithMaxTypeSize methods.
const (
	DefaultMaxTypes          = 1_000_000
	DefaultMaxFunctions      = 1_000_000
	DefaultMaxTables         = 100_000
	DefaultMaxMemories       = 100_000
	DefaultMaxGlobals        = 1_000_000
	DefaultMaxTags           = 1_000_000
	DefaultMaxImports        = 1_000_000
	DefaultMaxExports        = 1_000_000
	DefaultMaxElementSegments = 100_000
	DefaultMaxDataSegments    = 100_000
	DefaultMaxTypeSize        = 1_000_000

	maxMemory32Pages = 1 << 16
	maxMemory64Pages = 1 << 48
)

// Limits bundles the resource ceilings a ModuleIndexSpaces enforces.
// Exported so the root Config's With* methods can override individual
// fields.
type Limits struct {
	MaxTypes           int
	MaxFunctions       int
	MaxTables          int
	MaxMemories        int
	MaxGlobals         int
	MaxTags            int
	MaxImports         int
	MaxExports         int
	MaxElementSegments int
	MaxDataSegments    int
	MaxTypeSize        uint64
}

// DefaultLimits returns the ceilings applied unless a Config overrides
// them.
func DefaultLimits() Limits {
	return Limits{
		MaxTypes:           DefaultMaxTypes,
		MaxFunctions:       DefaultMaxFunctions,
		MaxTables:          DefaultMaxTables,
		MaxMemories:        DefaultMaxMemories,
		MaxGlobals:         DefaultMaxGlobals,
		MaxTags:            DefaultMaxTags,
		MaxImports:         DefaultMaxImports,
		MaxExports:         DefaultMaxExports,
		MaxElementSegments: DefaultMaxElementSegments,
		MaxDataSegments:    DefaultMaxDataSegments,
		MaxTypeSize:        DefaultMaxTypeSize,
	}
}

// ModuleIndexSpaces is the accumulated, typed, per-module state described
// by §3: every index space a module can declare or import into, plus the
// cross-section bookkeeping (function_references, type_size, duplicate
// export detection) needed to validate later sections against earlier
// ones.
//
// It is mutable for the module's entire structural-validation phase and
// becomes read-only the instant Freeze is called, at the start of the code
// section (§4.3's freeze point), except for DataSegments, which the data
// section still appends to afterwards (see ModuleValidator.DataModule).
type ModuleIndexSpaces struct {
	Features api.CoreFeatures
	Limits   Limits
	Store    *types.TypeStore

	// Types holds, per module-local type index, the TypeId the type
	// section's rec-groups interned to.
	Types []types.TypeId

	// Functions holds, per module-local function index (imports first),
	// the module-local type index.
	Functions []Index

	Tables    []*TableType
	Memories  []*MemoryType
	Globals   []*GlobalType
	Tags      []*TagType

	ElementTypes []types.RefType
	Elements     []*ElementSegment
	DataSegments []*DataSegment

	DataCount *uint32

	NumImportedFunctions uint32
	NumImportedGlobals   uint32
	NumImportedTables    uint32
	NumImportedMemories  uint32
	NumImportedTags      uint32

	Imports map[importKey][]EntityType
	Exports map[string]EntityType

	FunctionReferences map[Index]struct{}

	TypeSize uint64

	StartFunction *Index

	frozen bool
}

type importKey struct{ module, name string }

// NewModuleIndexSpaces returns an empty ModuleIndexSpaces ready to absorb
// section payloads in order.
func NewModuleIndexSpaces(features api.CoreFeatures, limits Limits) *ModuleIndexSpaces {
	return &ModuleIndexSpaces{
		Features:           features,
		Limits:              limits,
		Store:               types.NewTypeStore(),
		Imports:             make(map[importKey][]EntityType),
		Exports:             make(map[string]EntityType),
		FunctionReferences:  make(map[Index]struct{}),
	}
}

// AddType interns rec into the type store and appends the resulting ids
// to the module's type index space.
func (m *ModuleIndexSpaces) AddType(rec types.RecGroup, offset int) error {
	ids, err := m.Store.Intern(rec, offset, true, m.Limits.MaxTypes)
	if err != nil {
		return err
	}
	m.Types = append(m.Types, ids...)
	return nil
}

func (m *ModuleIndexSpaces) typeAt(idx Index, offset int) (types.TypeId, error) {
	if int(idx) >= len(m.Types) {
		return 0, fmtOffset(offset, "type index out of range: %d", idx)
	}
	return m.Types[idx], nil
}

// AddImport validates imp against the module's current feature set and
// limits, then appends it to the appropriate index space, advancing the
// corresponding num_imported_* counter. Per §4.3, duplicate (module, name)
// pairs are legal; their entity types form an ordered sequence.
func (m *ModuleIndexSpaces) AddImport(imp *Import, offset int) error {
	if len(m.Imports)+1 > m.Limits.MaxImports {
		return fmtOffset(offset, "too many imports")
	}
	switch imp.Type.Kind {
	case ExternTypeFunc:
		id, err := m.typeAt(imp.Type.Func, offset)
		if err != nil {
			return err
		}
		if _, err := m.checkTypeIsFunc(id, offset); err != nil {
			return err
		}
		m.Functions = append(m.Functions, imp.Type.Func)
		m.NumImportedFunctions++
	case ExternTypeTable:
		if err := m.checkTableType(&imp.Type.Table, offset); err != nil {
			return err
		}
		m.Tables = append(m.Tables, &imp.Type.Table)
		m.NumImportedTables++
	case ExternTypeMemory:
		if err := m.checkMemoryType(&imp.Type.Memory, offset); err != nil {
			return err
		}
		m.Memories = append(m.Memories, &imp.Type.Memory)
		m.NumImportedMemories++
	case ExternTypeGlobal:
		if imp.Type.Global.Mutable {
			if err := m.Features.RequireEnabled(api.CoreFeatureMutableGlobal); err != nil {
				return fmtOffset(offset, "importing a mutable global: %v", err)
			}
		}
		if err := m.checkGlobalType(&imp.Type.Global, offset); err != nil {
			return err
		}
		m.Globals = append(m.Globals, &imp.Type.Global)
		m.NumImportedGlobals++
	case ExternTypeTag:
		if err := m.Features.RequireEnabled(api.CoreFeatureExceptionHandling); err != nil {
			return fmtOffset(offset, "importing a tag: %v", err)
		}
		m.Tags = append(m.Tags, &imp.Type.Tag)
		m.NumImportedTags++
	default:
		return fmtOffset(offset, "unknown import kind %#x", imp.Type.Kind)
	}
	key := importKey{imp.Module, imp.Name}
	m.Imports[key] = append(m.Imports[key], imp.Type)
	m.TypeSize += uint64(imp.Type.TypeSize())
	return m.checkTypeSize(offset)
}

func (m *ModuleIndexSpaces) checkTypeIsFunc(id types.TypeId, offset int) (*types.SubType, error) {
	st := m.Store.At(id)
	if st == nil {
		return nil, fmtOffset(offset, "type index out of range: %d", id)
	}
	if st.Composite.Kind != types.CompositeFunc {
		return nil, fmtOffset(offset, "type %d is not a function type", id)
	}
	return st, nil
}

// AddFunction requires that Types[typeIndex] names a function type, and
// appends typeIndex to the function index space.
func (m *ModuleIndexSpaces) AddFunction(typeIndex Index, offset int) error {
	if len(m.Functions)-int(m.NumImportedFunctions)+1 > m.Limits.MaxFunctions {
		return fmtOffset(offset, "too many functions")
	}
	id, err := m.typeAt(typeIndex, offset)
	if err != nil {
		return err
	}
	if _, err := m.checkTypeIsFunc(id, offset); err != nil {
		return err
	}
	m.Functions = append(m.Functions, typeIndex)
	return nil
}

// AddTable validates table and, if accepted, appends it to the table
// index space.
func (m *ModuleIndexSpaces) AddTable(table *TableType, offset int) error {
	if len(m.Tables)-int(m.NumImportedTables)+1 > m.Limits.MaxTables {
		return fmtOffset(offset, "too many tables")
	}
	if !m.Features.IsEnabled(api.CoreFeatureReferenceTypes) && len(m.Tables) >= 1 {
		return fmtOffset(offset, "too many tables: multiple tables require reference-types")
	}
	if err := m.checkTableType(table, offset); err != nil {
		return err
	}
	m.Tables = append(m.Tables, table)
	return nil
}

func (m *ModuleIndexSpaces) checkTableType(table *TableType, offset int) error {
	if err := m.checkRefType(table.ElemType, offset); err != nil {
		return err
	}
	if table.Limit.Shared {
		if err := m.Features.RequireEnabled(api.CoreFeatureSharedEverythingThreads); err != nil {
			return fmtOffset(offset, "shared table: %v", err)
		}
		if !table.ElemType.Heap.Shared {
			return fmtOffset(offset, "shared mismatch: shared table element type %s is not shared", table.ElemType)
		}
	}
	return m.checkLimits(&table.Limit, offset, maxMemory32Pages /* unused for tables */, true)
}

// AddMemory validates mem and appends it to the memory index space.
func (m *ModuleIndexSpaces) AddMemory(mem *MemoryType, offset int) error {
	if len(m.Memories)-int(m.NumImportedMemories)+1 > m.Limits.MaxMemories {
		return fmtOffset(offset, "too many memories")
	}
	if !m.Features.IsEnabled(api.CoreFeatureMultiMemory) && len(m.Memories) >= 1 {
		return fmtOffset(offset, "too many memories: multiple memories require multi-memory")
	}
	if err := m.checkMemoryType(mem, offset); err != nil {
		return err
	}
	m.Memories = append(m.Memories, mem)
	return nil
}

func (m *ModuleIndexSpaces) checkMemoryType(mem *MemoryType, offset int) error {
	if mem.PageSizeLog2 != nil {
		if err := m.Features.RequireEnabled(api.CoreFeatureCustomPageSizes); err != nil {
			return fmtOffset(offset, "custom page size: %v", err)
		}
		if *mem.PageSizeLog2 != 0 && *mem.PageSizeLog2 != 16 {
			return fmtOffset(offset, "invalid limits: page size log2 must be 0 or 16, got %d", *mem.PageSizeLog2)
		}
	}
	ceiling := uint64(maxMemory32Pages)
	if mem.Limit.Is64 {
		ceiling = maxMemory64Pages
	}
	if mem.Limit.Shared {
		if err := m.Features.RequireEnabled(api.CoreFeatureSharedEverythingThreads); err != nil {
			return fmtOffset(offset, "shared memory: %v", err)
		}
		if mem.Limit.Max == nil {
			return fmtOffset(offset, "invalid limits: shared memory must declare a maximum")
		}
	}
	return m.checkLimits(&mem.Limit, offset, ceiling, false)
}

func (m *ModuleIndexSpaces) checkLimits(l *LimitsType, offset int, ceiling uint64, isTable bool) error {
	if l.Max != nil && l.Min > *l.Max {
		return fmtOffset(offset, "invalid limits: minimum %d exceeds maximum %d", l.Min, *l.Max)
	}
	if !isTable && l.Min > ceiling {
		return fmtOffset(offset, "invalid limits: minimum %d exceeds the page ceiling %d", l.Min, ceiling)
	}
	if !isTable && l.Max != nil && *l.Max > ceiling {
		return fmtOffset(offset, "invalid limits: maximum %d exceeds the page ceiling %d", *l.Max, ceiling)
	}
	return nil
}

// AddGlobal validates global and, if accepted, validates its initializer
// expression and appends it to the global index space.
func (m *ModuleIndexSpaces) AddGlobal(global *GlobalType, init *ConstantExpression, offset int) error {
	if len(m.Globals)-int(m.NumImportedGlobals)+1 > m.Limits.MaxGlobals {
		return fmtOffset(offset, "too many globals")
	}
	if err := m.checkGlobalType(global, offset); err != nil {
		return err
	}
	cev := &ConstExprValidator{
		Features:           m.Features,
		Globals:            m.Globals,
		NumImportedGlobals: m.NumImportedGlobals,
		Context:            ConstExprContextRecording,
		Store:              m.Store,
		RecordRefFunc:      m.recordFunctionReference,
	}
	if err := cev.Validate(init, global.ValType, offset); err != nil {
		return err
	}
	m.Globals = append(m.Globals, global)
	return nil
}

func (m *ModuleIndexSpaces) checkGlobalType(global *GlobalType, offset int) error {
	if err := m.checkValType(global.ValType, offset); err != nil {
		return err
	}
	if global.Shared {
		if err := m.Features.RequireEnabled(api.CoreFeatureSharedEverythingThreads); err != nil {
			return fmtOffset(offset, "shared global: %v", err)
		}
		if !valTypeIsShared(global.ValType) {
			return fmtOffset(offset, "shared mismatch: shared global value type %s is not shared", global.ValType)
		}
	}
	return nil
}

// valTypeIsShared reports whether v is admissible as a shared global or
// field's content type under shared-everything-threads: every numeric and
// vector type is trivially shared, a reference type is shared iff its heap
// type is.
func valTypeIsShared(v types.ValType) bool {
	if v.Kind != types.KindRef {
		return true
	}
	return v.Ref.Heap.Shared
}

// AddTag validates tag (exception-handling proposal) and appends it to the
// tag index space.
func (m *ModuleIndexSpaces) AddTag(tag *TagType, offset int) error {
	if err := m.Features.RequireEnabled(api.CoreFeatureExceptionHandling); err != nil {
		return fmtOffset(offset, "tag declaration: %v", err)
	}
	if len(m.Tags)-int(m.NumImportedTags)+1 > m.Limits.MaxTags {
		return fmtOffset(offset, "too many tags")
	}
	id, err := m.typeAt(tag.TypeIndex, offset)
	if err != nil {
		return err
	}
	st, err := m.checkTypeIsFunc(id, offset)
	if err != nil {
		return err
	}
	if len(st.Composite.Func.Results) != 0 {
		return fmtOffset(offset, "tag function type must have no results")
	}
	m.Tags = append(m.Tags, tag)
	return nil
}

// AddElementSegment validates seg: its element type, the admissibility of
// its mode under the feature set, the referenced table (for active
// segments), and every entry's initializer.
func (m *ModuleIndexSpaces) AddElementSegment(seg *ElementSegment, offset int) error {
	if len(m.Elements)+1 > m.Limits.MaxElementSegments {
		return fmtOffset(offset, "too many element segments")
	}
	if seg.Mode != ElementModeActive {
		if err := m.Features.RequireEnabled(api.CoreFeatureBulkMemoryOperations); err != nil {
			return fmtOffset(offset, "passive/declared element segment: %v", err)
		}
	}
	if err := m.checkRefType(seg.Type, offset); err != nil {
		return err
	}
	if seg.Mode == ElementModeActive {
		if int(seg.TableIndex) >= len(m.Tables) {
			return fmtOffset(offset, "table index out of range: %d", seg.TableIndex)
		}
		table := m.Tables[seg.TableIndex]
		if !types.RefTypeIsSubtype(seg.Type, table.ElemType, m.Store) {
			return fmtOffset(offset, "element type %s is not a subtype of table element type %s", seg.Type, table.ElemType)
		}
		cev := &ConstExprValidator{Features: m.Features, Globals: m.Globals, NumImportedGlobals: m.NumImportedGlobals, Context: ConstExprContextRecording, Store: m.Store, RecordRefFunc: m.recordFunctionReference}
		idxType := types.I32()
		if table.Limit.Is64 {
			idxType = types.I64()
		}
		if err := cev.Validate(seg.OffsetExpr, idxType, offset); err != nil {
			return err
		}
	}
	for _, entry := range seg.Init {
		if entry.FuncIndex != nil {
			m.recordFunctionReference(*entry.FuncIndex)
			continue
		}
		cev := &ConstExprValidator{Features: m.Features, Globals: m.Globals, NumImportedGlobals: m.NumImportedGlobals, Context: ConstExprContextRecording, Store: m.Store, RecordRefFunc: m.recordFunctionReference}
		if err := cev.Validate(entry.Expr, types.Reference(seg.Type), offset); err != nil {
			return err
		}
	}
	m.Elements = append(m.Elements, seg)
	m.ElementTypes = append(m.ElementTypes, seg.Type)
	return nil
}

// AddDataSegment validates seg: passive segments require bulk-memory,
// active segments validate their offset expression against the referenced
// memory's index type.
func (m *ModuleIndexSpaces) AddDataSegment(seg *DataSegment, offset int) error {
	if len(m.DataSegments)+1 > m.Limits.MaxDataSegments {
		return fmtOffset(offset, "too many data segments")
	}
	if seg.Mode == DataModePassive {
		if err := m.Features.RequireEnabled(api.CoreFeatureBulkMemoryOperations); err != nil {
			return fmtOffset(offset, "passive data segment: %v", err)
		}
	} else {
		if int(seg.MemoryIndex) >= len(m.Memories) {
			return fmtOffset(offset, "memory index out of range: %d", seg.MemoryIndex)
		}
		mem := m.Memories[seg.MemoryIndex]
		idxType := types.I32()
		if mem.Limit.Is64 {
			idxType = types.I64()
		}
		cev := &ConstExprValidator{
			Features:           m.Features,
			Globals:            m.Globals,
			NumImportedGlobals: m.NumImportedGlobals,
			Context:            ConstExprContextNoRecording,
			Store:              m.Store,
		}
		if err := cev.Validate(seg.OffsetExpression, idxType, offset); err != nil {
			return err
		}
	}
	m.DataSegments = append(m.DataSegments, seg)
	return nil
}

// AddExport validates the uniqueness of name and appends the export,
// recording function exports as function references.
func (m *ModuleIndexSpaces) AddExport(name string, entity EntityType, offset int) error {
	if len(m.Exports)+1 > m.Limits.MaxExports {
		return fmtOffset(offset, "too many exports")
	}
	if _, exists := m.Exports[name]; exists {
		return fmtOffset(offset, "duplicate export name %q", name)
	}
	switch entity.Kind {
	case ExternTypeFunc:
		if int(entity.Func) >= len(m.Functions) {
			return fmtOffset(offset, "function index out of range: %d", entity.Func)
		}
		m.recordFunctionReference(entity.Func)
	case ExternTypeGlobal:
		if entity.Global.Mutable {
			if err := m.Features.RequireEnabled(api.CoreFeatureMutableGlobal); err != nil {
				return fmtOffset(offset, "exporting a mutable global: %v", err)
			}
		}
	}
	m.Exports[name] = entity
	m.TypeSize += uint64(entity.TypeSize())
	return m.checkTypeSize(offset)
}

// SetStartFunction records and validates the start section: the
// referenced function must have type [] -> []. This rule is not explicit
// in the distilled source (see §9's open questions) but is a core
// WebAssembly validity rule and is enforced unconditionally here.
func (m *ModuleIndexSpaces) SetStartFunction(idx Index, offset int) error {
	if int(idx) >= len(m.Functions) {
		return fmtOffset(offset, "start function index out of range: %d", idx)
	}
	typeIdx := m.Functions[idx]
	id, err := m.typeAt(typeIdx, offset)
	if err != nil {
		return err
	}
	st, err := m.checkTypeIsFunc(id, offset)
	if err != nil {
		return err
	}
	if len(st.Composite.Func.Params) != 0 || len(st.Composite.Func.Results) != 0 {
		return fmtOffset(offset, "start function must have type [] -> []")
	}
	m.StartFunction = &idx
	return nil
}

// SetDataCount records the declared data-segment count from the optional
// data-count section.
func (m *ModuleIndexSpaces) SetDataCount(count uint32) {
	m.DataCount = &count
}

func (m *ModuleIndexSpaces) recordFunctionReference(idx Index) {
	m.FunctionReferences[idx] = struct{}{}
}

// IsFunctionReferenced reports whether idx was observed as a ref.func
// operand in an initializer, element entry, or export.
func (m *ModuleIndexSpaces) IsFunctionReferenced(idx Index) bool {
	_, ok := m.FunctionReferences[idx]
	return ok
}

func (m *ModuleIndexSpaces) checkValType(v types.ValType, offset int) error {
	if v.Kind == types.KindV128 {
		if err := m.Features.RequireEnabled(api.CoreFeatureSIMD); err != nil {
			return fmtOffset(offset, "v128 value type: %v", err)
		}
	}
	if v.Kind == types.KindRef {
		return m.checkRefType(v.Ref, offset)
	}
	return nil
}

func (m *ModuleIndexSpaces) checkRefType(r types.RefType, offset int) error {
	switch r.Heap.Kind {
	case types.HeapFunc, types.HeapExtern:
		return nil
	case types.HeapConcrete:
		if err := m.Features.RequireEnabled(api.CoreFeatureFunctionReferences); err != nil {
			return fmtOffset(offset, "typed function reference: %v", err)
		}
		if m.Store.At(r.Heap.Index) == nil {
			return fmtOffset(offset, "type index out of range: %d", r.Heap.Index)
		}
		return nil
	default:
		if err := m.Features.RequireEnabled(api.CoreFeatureGC); err != nil {
			return fmtOffset(offset, "gc reference type %s: %v", r.Heap, err)
		}
		return nil
	}
}

func (m *ModuleIndexSpaces) checkTypeSize(offset int) error {
	if m.TypeSize > m.Limits.MaxTypeSize {
		return fmtOffset(offset, "type size %d exceeds the limit %d", m.TypeSize, m.Limits.MaxTypeSize)
	}
	return nil
}

// Freeze marks the module as structurally complete: it asserts the
// code-section's declared entry count matches the function index space,
// and from this point forward every AddXxx method must not be called
// again. The caller is expected to pair this with MaybeOwned.Share on the
// handle wrapping this ModuleIndexSpaces.
func (m *ModuleIndexSpaces) Freeze(declaredCodeCount int, offset int) error {
	expected := len(m.Functions) - int(m.NumImportedFunctions)
	if expected != declaredCodeCount {
		return fmtOffset(offset, "function and code section have inconsistent lengths: %d vs %d", expected, declaredCodeCount)
	}
	m.frozen = true
	return nil
}

// Frozen reports whether Freeze has run.
func (m *ModuleIndexSpaces) Frozen() bool { return m.frozen }
