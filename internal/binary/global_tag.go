package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeGlobalType(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.GlobalType, error) {
	v, err := decodeValType(r, moduleResolver(r, m.Types))
	if err != nil {
		return nil, err
	}
	mutOffset := r.offset()
	mut, err := r.ReadByte()
	if err != nil {
		return nil, malformed(mutOffset, "global mutability: %v", err)
	}
	if mut > 1 {
		return nil, malformed(mutOffset, "invalid global mutability flag: %#x", mut)
	}
	return &wasm.GlobalType{ValType: v, Mutable: mut != 0}, nil
}

func decodeGlobalSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "global section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		global, err := decodeGlobalType(r, m)
		if err != nil {
			return err
		}
		init, err := decodeConstantExpression(r, m)
		if err != nil {
			return err
		}
		if err := m.AddGlobal(global, init, offset); err != nil {
			return err
		}
	}
	return nil
}

func decodeTagType(r *byteReader) (*wasm.TagType, error) {
	attrOffset := r.offset()
	attr, err := r.ReadByte()
	if err != nil {
		return nil, malformed(attrOffset, "tag attribute: %v", err)
	}
	if attr != 0 {
		return nil, malformed(attrOffset, "unsupported tag attribute: %d", attr)
	}
	idx, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(r.offset(), "tag type index: %v", err)
	}
	return &wasm.TagType{TypeIndex: idx}, nil
}

func decodeTagSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "tag section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		tag, err := decodeTagType(r)
		if err != nil {
			return err
		}
		if err := m.AddTag(tag, offset); err != nil {
			return err
		}
	}
	return nil
}
