package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

// decodeConstantExpression reads a raw initializer expression: a sequence
// of operators terminated by end (0x0b). Each operator is decoded
// according to its own immediate encoding rather than by scanning raw
// bytes for a 0x0b terminator byte, since i32.const/f32.const/f64.const
// immediates routinely contain a byte equal to the end opcode (e.g.
// i32.const 11 encodes its LEB128 immediate as the single byte 0x0b).
// Only the operators ConstExprValidator admits are recognized; any other
// opcode, including every GC-prefixed (0xfb) one, is rejected immediately, since
// the closed set never nests a block/loop/if and so never needs to look
// past an unrecognized opcode to find the real terminator.
func decodeConstantExpression(r *byteReader, m *wasm.ModuleIndexSpaces) (*wasm.ConstantExpression, error) {
	resolve := moduleResolver(r, m.Types)
	var instrs []wasm.ConstInstruction
	for {
		offset := r.offset()
		op, err := r.ReadByte()
		if err != nil {
			return nil, malformed(offset, "constant expression: %v", err)
		}
		if op == wasm.OpcodeEnd {
			return &wasm.ConstantExpression{Instructions: instrs}, nil
		}
		instr, err := decodeConstInstruction(r, resolve, op, offset)
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, instr)
	}
}

// decodeConstInstruction decodes one operator (op was already consumed from
// r) and its immediate, if any. The vector prefix (0xfd) is followed by a
// LEB128 sub-opcode, folded into the returned instruction's Opcode field
// the same way the GC-prefixed (0xfb) opcodes already are in
// internal/wasm's OpcodeXxx constants.
func decodeConstInstruction(r *byteReader, resolve typeResolver, op byte, offset int) (wasm.ConstInstruction, error) {
	switch op {
	case wasm.OpcodeI32Const:
		if _, _, err := leb128.DecodeInt32(r); err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed i32.const: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op)}, nil
	case wasm.OpcodeI64Const:
		if _, _, err := leb128.DecodeInt64(r); err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed i64.const: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op)}, nil
	case wasm.OpcodeF32Const:
		if _, err := r.readBytes(4); err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed f32.const: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op)}, nil
	case wasm.OpcodeF64Const:
		if _, err := r.readBytes(8); err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed f64.const: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op)}, nil
	case wasm.OpcodeRefNull:
		h, err := decodeHeapTypeBody(r, resolve)
		if err != nil {
			return wasm.ConstInstruction{}, err
		}
		return wasm.ConstInstruction{Opcode: uint32(op), Heap: h}, nil
	case wasm.OpcodeRefFunc:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed ref.func index: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op), Index: idx}, nil
	case wasm.OpcodeGlobalGet:
		idx, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed global.get index: %v", err)
		}
		return wasm.ConstInstruction{Opcode: uint32(op), Index: idx}, nil
	case wasm.OpcodeI32Add, wasm.OpcodeI32Sub, wasm.OpcodeI32Mul,
		wasm.OpcodeI64Add, wasm.OpcodeI64Sub, wasm.OpcodeI64Mul:
		return wasm.ConstInstruction{Opcode: uint32(op)}, nil
	case wasm.OpcodeVecPrefix:
		sub, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed vector opcode: %v", err)
		}
		if sub != wasm.OpcodeV128Const {
			return wasm.ConstInstruction{}, malformed(offset, "non-constant operator: vector opcode %#x is not admissible in a constant expression", sub)
		}
		if _, err := r.readBytes(16); err != nil {
			return wasm.ConstInstruction{}, malformed(r.offset(), "malformed v128.const: %v", err)
		}
		return wasm.ConstInstruction{Opcode: wasm.VecOpcode(sub)}, nil
	default:
		return wasm.ConstInstruction{}, malformed(offset, "non-constant operator: opcode %#x is not admissible in a constant expression", op)
	}
}
