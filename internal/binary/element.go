package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/types"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

func decodeElementSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "element section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		seg, err := decodeElementSegment(r, m)
		if err != nil {
			return err
		}
		if err := m.AddElementSegment(seg, offset); err != nil {
			return err
		}
	}
	return nil
}

// decodeElementSegment follows the bulk-memory proposal's eight-variant
// flag encoding: bit 0 distinguishes passive/declarative from active, bit 1
// distinguishes declarative from passive when bit 0 is set and marks an
// explicit table index when bit 0 is clear, and bit 2 switches the initializer list between a vector of bare
// function indices (elemkind-tagged) and a vector of constant expressions
// (reftype-tagged).
func decodeElementSegment(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.ElementSegment, error) {
	offset := r.offset()
	flags, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(offset, "element segment flags: %v", err)
	}
	if flags > 7 {
		return nil, malformed(offset, "unknown element segment flags: %d", flags)
	}

	seg := &wasm.ElementSegment{}
	resolve := moduleResolver(r, m.Types)

	active := flags&1 == 0
	explicitTable := flags&3 == 2 || flags&3 == 6
	useExprInit := flags&4 != 0

	switch {
	case active:
		seg.Mode = wasm.ElementModeActive
		if explicitTable {
			idx, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return nil, malformed(r.offset(), "element table index: %v", err)
			}
			seg.TableIndex = idx
		}
		expr, err := decodeConstantExpression(r, m)
		if err != nil {
			return nil, err
		}
		seg.OffsetExpr = expr
	case flags&2 != 0:
		seg.Mode = wasm.ElementModeDeclarative
	default:
		seg.Mode = wasm.ElementModePassive
	}

	if useExprInit {
		if active && !explicitTable {
			seg.Type = types.FUNCREF
		} else {
			rt, err := decodeRefType(r, resolve)
			if err != nil {
				return nil, err
			}
			seg.Type = rt
		}
		if err := decodeElemExprInits(r, m, seg); err != nil {
			return nil, err
		}
	} else {
		if active && !explicitTable {
			seg.Type = types.FUNCREF
		} else if err := decodeElemKind(r, seg); err != nil {
			return nil, err
		}
		if err := decodeElemFuncIndices(r, seg); err != nil {
			return nil, err
		}
	}
	return seg, nil
}

func decodeElemKind(r *byteReader, seg *wasm.ElementSegment) error {
	offset := r.offset()
	kind, err := r.ReadByte()
	if err != nil {
		return malformed(offset, "elemkind: %v", err)
	}
	if kind != 0x00 {
		return malformed(offset, "unsupported elemkind: %#x", kind)
	}
	seg.Type = types.FUNCREF
	return nil
}

func decodeElemFuncIndices(r *byteReader, seg *wasm.ElementSegment) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "element init count: %v", err)
	}
	inits := make([]wasm.ElementInit, count)
	for i := range inits {
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return malformed(r.offset(), "element function index: %v", err)
		}
		idxCopy := idx
		inits[i] = wasm.ElementInit{FuncIndex: &idxCopy}
	}
	seg.Init = inits
	return nil
}

func decodeElemExprInits(r *byteReader, m *wasm.ModuleIndexSpaces, seg *wasm.ElementSegment) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "element init count: %v", err)
	}
	inits := make([]wasm.ElementInit, count)
	for i := range inits {
		expr, err := decodeConstantExpression(r, m)
		if err != nil {
			return err
		}
		inits[i] = wasm.ElementInit{Expr: expr}
	}
	seg.Init = inits
	return nil
}
