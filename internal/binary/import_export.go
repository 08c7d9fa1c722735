package binary

import (
	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeImportSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "import section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		imp, err := decodeImport(r, m)
		if err != nil {
			return err
		}
		if err := m.AddImport(imp, offset); err != nil {
			return err
		}
	}
	return nil
}

func decodeImport(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.Import, error) {
	module, err := decodeName(r)
	if err != nil {
		return nil, err
	}
	name, err := decodeName(r)
	if err != nil {
		return nil, err
	}
	entity, err := decodeEntityType(r, m, true)
	if err != nil {
		return nil, err
	}
	return &wasm.Import{Module: module, Name: name, Type: entity}, nil
}

func decodeEntityType(r *byteReader, m *wasm.ModuleIndexSpaces, forImport bool) (wasm.EntityType, error) {
	offset := r.offset()
	kind, err := r.ReadByte()
	if err != nil {
		return wasm.EntityType{}, malformed(offset, "entity kind: %v", err)
	}
	switch kind {
	case api.ExternTypeFunc:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.EntityType{}, malformed(r.offset(), "function type index: %v", err)
		}
		return wasm.EntityType{Kind: api.ExternTypeFunc, Func: idx}, nil
	case api.ExternTypeTable:
		table, err := decodeTableType(r, m)
		if err != nil {
			return wasm.EntityType{}, err
		}
		return wasm.EntityType{Kind: api.ExternTypeTable, Table: *table}, nil
	case api.ExternTypeMemory:
		mem, err := decodeMemoryType(r)
		if err != nil {
			return wasm.EntityType{}, err
		}
		return wasm.EntityType{Kind: api.ExternTypeMemory, Memory: *mem}, nil
	case api.ExternTypeGlobal:
		global, err := decodeGlobalType(r, m)
		if err != nil {
			return wasm.EntityType{}, err
		}
		return wasm.EntityType{Kind: api.ExternTypeGlobal, Global: *global}, nil
	case api.ExternTypeTag:
		tag, err := decodeTagType(r)
		if err != nil {
			return wasm.EntityType{}, err
		}
		return wasm.EntityType{Kind: api.ExternTypeTag, Tag: *tag}, nil
	default:
		return wasm.EntityType{}, malformed(offset, "unknown entity kind: %#x", kind)
	}
}

func decodeExportSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "export section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		name, err := decodeName(r)
		if err != nil {
			return err
		}
		kindOffset := r.offset()
		kind, err := r.ReadByte()
		if err != nil {
			return malformed(kindOffset, "export kind: %v", err)
		}
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return malformed(r.offset(), "export index: %v", err)
		}
		entity, err := exportedEntityType(kind, idx, m, kindOffset)
		if err != nil {
			return err
		}
		if err := m.AddExport(name, entity, offset); err != nil {
			return err
		}
	}
	return nil
}

// exportedEntityType builds the EntityType an export payload names. Only
// the Kind and the relevant index field are populated: AddExport resolves
// the index against the right space and does not consult the other
// fields, matching EntityType.Func's dual meaning documented on the type.
func exportedEntityType(kind byte, idx uint32, m *wasm.ModuleIndexSpaces, offset int) (wasm.EntityType, error) {
	switch kind {
	case api.ExternTypeFunc:
		return wasm.EntityType{Kind: api.ExternTypeFunc, Func: idx}, nil
	case api.ExternTypeTable:
		if int(idx) >= len(m.Tables) {
			return wasm.EntityType{}, malformed(offset, "table index out of range: %d", idx)
		}
		return wasm.EntityType{Kind: api.ExternTypeTable, Table: *m.Tables[idx]}, nil
	case api.ExternTypeMemory:
		if int(idx) >= len(m.Memories) {
			return wasm.EntityType{}, malformed(offset, "memory index out of range: %d", idx)
		}
		return wasm.EntityType{Kind: api.ExternTypeMemory, Memory: *m.Memories[idx]}, nil
	case api.ExternTypeGlobal:
		if int(idx) >= len(m.Globals) {
			return wasm.EntityType{}, malformed(offset, "global index out of range: %d", idx)
		}
		return wasm.EntityType{Kind: api.ExternTypeGlobal, Global: *m.Globals[idx]}, nil
	case api.ExternTypeTag:
		if int(idx) >= len(m.Tags) {
			return wasm.EntityType{}, malformed(offset, "tag index out of range: %d", idx)
		}
		return wasm.EntityType{Kind: api.ExternTypeTag, Tag: *m.Tags[idx]}, nil
	default:
		return wasm.EntityType{}, malformed(offset, "unknown export kind: %#x", kind)
	}
}
