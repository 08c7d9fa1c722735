package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeDataSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "data section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		seg, err := decodeDataSegment(r, m)
		if err != nil {
			return err
		}
		if err := m.AddDataSegment(seg, offset); err != nil {
			return err
		}
	}
	return nil
}

// decodeDataSegment follows the bulk-memory proposal's three-variant data
// segment encoding: 0 active (memory 0 implied), 1 passive, 2 active with
// an explicit memory index.
func decodeDataSegment(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.DataSegment, error) {
	offset := r.offset()
	flags, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(offset, "data segment flags: %v", err)
	}
	seg := &wasm.DataSegment{}
	switch flags {
	case 0:
		seg.Mode = wasm.DataModeActive
		expr, err := decodeConstantExpression(r, m)
		if err != nil {
			return nil, err
		}
		seg.OffsetExpression = expr
	case 1:
		seg.Mode = wasm.DataModePassive
	case 2:
		seg.Mode = wasm.DataModeActive
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, malformed(r.offset(), "data memory index: %v", err)
		}
		seg.MemoryIndex = idx
		expr, err := decodeConstantExpression(r, m)
		if err != nil {
			return nil, err
		}
		seg.OffsetExpression = expr
	default:
		return nil, malformed(offset, "unknown data segment flags: %d", flags)
	}
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(r.offset(), "data segment byte count: %v", err)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return nil, malformed(r.offset(), "data segment bytes: %v", err)
	}
	seg.Init = append([]byte(nil), b...)
	return seg, nil
}
