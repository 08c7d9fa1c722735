package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeTableType(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.TableType, error) {
	elem, err := decodeRefType(r, moduleResolver(r, m.Types))
	if err != nil {
		return nil, err
	}
	min, max, shared, is64, err := decodeLimits(r)
	if err != nil {
		return nil, err
	}
	return &wasm.TableType{ElemType: elem, Limit: wasm.LimitsType{Min: min, Max: max, Shared: shared, Is64: is64}}, nil
}

func decodeTableSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "table section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		table, err := decodeTableType(r, m)
		if err != nil {
			return err
		}
		if err := m.AddTable(table, offset); err != nil {
			return err
		}
	}
	return nil
}

func decodeMemoryType(r *byteReader) (*wasm.MemoryType, error) {
	min, max, shared, is64, err := decodeLimits(r)
	if err != nil {
		return nil, err
	}
	return &wasm.MemoryType{Limit: wasm.LimitsType{Min: min, Max: max, Shared: shared, Is64: is64}}, nil
}

func decodeMemorySection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "memory section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		mem, err := decodeMemoryType(r)
		if err != nil {
			return err
		}
		if err := m.AddMemory(mem, offset); err != nil {
			return err
		}
	}
	return nil
}
