package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeFunctionSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "function section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return malformed(r.offset(), "function type index: %v", err)
		}
		if err := m.AddFunction(idx, offset); err != nil {
			return err
		}
	}
	return nil
}

func decodeStartSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	offset := r.offset()
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(offset, "start function index: %v", err)
	}
	return m.SetStartFunction(idx, offset)
}

func decodeDataCountSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	offset := r.offset()
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(offset, "data count: %v", err)
	}
	m.SetDataCount(count)
	return nil
}
