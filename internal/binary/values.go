// Package binary decodes a WebAssembly binary module into the typed
// payload stream internal/wasm.ModuleIndexSpaces consumes: magic and
// version, then each section's entries, dispatched in source order. It
// never seeks and never mutates the input slice.
package binary

import (
	"fmt"
	"io"

	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/types"
)

var wasmMagic = [4]byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion = uint32(1)

// Heap type encoding, following the downward-from-funcref byte range the
// reference-types and gc proposals use for abstract heap types, plus 0x64
// ("ref ht") / 0x63 ("ref null ht") for the general reference-type form.
const (
	heapTypeFuncref   = 0x70
	heapTypeExternref = 0x6f
	heapTypeAny       = 0x6e
	heapTypeEq        = 0x6d
	heapTypeI31       = 0x6c
	heapTypeStruct    = 0x6b
	heapTypeArray     = 0x6a
	heapTypeNone      = 0x69
	heapTypeNoFunc    = 0x68
	heapTypeNoExtern  = 0x67
	heapTypeExn       = 0x66
	heapTypeNoExn     = 0x65

	refTypeNonNull = 0x64
	refTypeNull    = 0x63
)

// byteReader adapts a []byte into the io.ByteReader the leb128 Decode*
// helpers want, while tracking how many bytes have been consumed so
// callers can report accurate offsets.
type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(data []byte) *byteReader { return &byteReader{data: data} }

func (r *byteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *byteReader) offset() int { return r.pos }

func (r *byteReader) remaining() []byte { return r.data[r.pos:] }

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// typeResolver turns a module-local type index, as it appears in the
// binary, into the store TypeId it currently names. Outside the type
// section this is a direct lookup into ModuleIndexSpaces.Types; within
// the type section it must also see sibling entries of the rec group
// being decoded, so decodeSubType supplies a resolver closure over both.
type typeResolver func(idx uint32) (types.TypeId, error)

func decodeValType(r *byteReader, resolve typeResolver) (types.ValType, error) {
	offset := r.offset()
	b, err := r.ReadByte()
	if err != nil {
		return types.ValType{}, malformed(offset, "value type: %v", err)
	}
	switch b {
	case 0x7f:
		return types.I32(), nil
	case 0x7e:
		return types.I64(), nil
	case 0x7d:
		return types.F32(), nil
	case 0x7c:
		return types.F64(), nil
	case 0x7b:
		return types.V128(), nil
	case heapTypeFuncref, heapTypeExternref, heapTypeAny, heapTypeEq, heapTypeI31,
		heapTypeStruct, heapTypeArray, heapTypeNone, heapTypeNoFunc, heapTypeNoExtern,
		heapTypeExn, heapTypeNoExn:
		h, err := abstractHeapType(b)
		if err != nil {
			return types.ValType{}, err
		}
		return types.Reference(types.RefType{Nullable: true, Heap: h}), nil
	case refTypeNonNull, refTypeNull:
		ht, err := decodeHeapTypeBody(r, resolve)
		if err != nil {
			return types.ValType{}, err
		}
		return types.Reference(types.RefType{Nullable: b == refTypeNull, Heap: ht}), nil
	default:
		return types.ValType{}, malformed(offset, "invalid value type: %#x", b)
	}
}

func decodeRefType(r *byteReader, resolve typeResolver) (types.RefType, error) {
	v, err := decodeValType(r, resolve)
	if err != nil {
		return types.RefType{}, err
	}
	if !v.IsRef() {
		return types.RefType{}, malformed(r.offset(), "expected a reference type, got %s", v)
	}
	return v.Ref, nil
}

func abstractHeapType(b byte) (types.HeapType, error) {
	switch b {
	case heapTypeFuncref:
		return types.Abstract(types.HeapFunc), nil
	case heapTypeExternref:
		return types.Abstract(types.HeapExtern), nil
	case heapTypeAny:
		return types.Abstract(types.HeapAny), nil
	case heapTypeEq:
		return types.Abstract(types.HeapEq), nil
	case heapTypeI31:
		return types.Abstract(types.HeapI31), nil
	case heapTypeStruct:
		return types.Abstract(types.HeapStruct), nil
	case heapTypeArray:
		return types.Abstract(types.HeapArray), nil
	case heapTypeNone:
		return types.Abstract(types.HeapNone), nil
	case heapTypeNoFunc:
		return types.Abstract(types.HeapNoFunc), nil
	case heapTypeNoExtern:
		return types.Abstract(types.HeapNoExtern), nil
	case heapTypeExn:
		return types.Abstract(types.HeapExn), nil
	case heapTypeNoExn:
		return types.Abstract(types.HeapNoExn), nil
	default:
		return types.HeapType{}, fmt.Errorf("not an abstract heap type byte: %#x", b)
	}
}

// decodeHeapTypeBody decodes the heap type following a 0x64/0x63 ref
// opcode: either one of the abstract bytes above, or a signed LEB128
// module-local type index, immediately resolved to a store TypeId via
// resolve.
func decodeHeapTypeBody(r *byteReader, resolve typeResolver) (types.HeapType, error) {
	offset := r.offset()
	peek := r.remaining()
	if len(peek) == 0 {
		return types.HeapType{}, malformed(offset, "heap type: %v", io.ErrUnexpectedEOF)
	}
	if h, err := abstractHeapType(peek[0]); err == nil {
		r.pos++
		return h, nil
	}
	idx, _, err := leb128.DecodeInt33AsInt64(r)
	if err != nil {
		return types.HeapType{}, malformed(offset, "heap type index: %v", err)
	}
	if idx < 0 {
		return types.HeapType{}, malformed(offset, "negative heap type index: %d", idx)
	}
	id, err := resolve(uint32(idx))
	if err != nil {
		return types.HeapType{}, err
	}
	return types.Concrete(id), nil
}

// decodeLimits decodes the shared (min, max?) pair used by table and
// memory declarations. Flag bits follow the threads-proposal layout:
// bit 0 (0x01) has-maximum, bit 1 (0x02) shared, bit 2 (0x04) 64-bit
// indices (the memory64/table64 proposals).
func decodeLimits(r *byteReader) (min uint64, max *uint64, shared, is64 bool, err error) {
	offset := r.offset()
	flags, err := r.ReadByte()
	if err != nil {
		return 0, nil, false, false, malformed(offset, "limits flags: %v", err)
	}
	hasMax := flags&0x01 != 0
	shared = flags&0x02 != 0
	is64 = flags&0x04 != 0

	if is64 {
		min, _, err = leb128.DecodeUint64(r)
	} else {
		var min32 uint32
		min32, _, err = leb128.DecodeUint32(r)
		min = uint64(min32)
	}
	if err != nil {
		return 0, nil, false, false, malformed(r.offset(), "limits minimum: %v", err)
	}
	if !hasMax {
		return min, nil, shared, is64, nil
	}
	var maxVal uint64
	if is64 {
		maxVal, _, err = leb128.DecodeUint64(r)
	} else {
		var max32 uint32
		max32, _, err = leb128.DecodeUint32(r)
		maxVal = uint64(max32)
	}
	if err != nil {
		return 0, nil, false, false, malformed(r.offset(), "limits maximum: %v", err)
	}
	return min, &maxVal, shared, is64, nil
}

func decodeName(r *byteReader) (string, error) {
	offset := r.offset()
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", malformed(offset, "name length: %v", err)
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", malformed(offset, "name bytes: %v", err)
	}
	return string(b), nil
}

func malformed(offset int, format string, args ...interface{}) error {
	return fmt.Errorf(format+" (offset %d)", append(args, offset)...)
}

// moduleResolver resolves a module-local type index against moduleTypeIds,
// the types already declared earlier in the module, for use at any decode
// site outside the type section itself (table, global, tag, element
// declarations), where no rec group is being built concurrently.
func moduleResolver(r *byteReader, moduleTypeIds []types.TypeId) typeResolver {
	return func(idx uint32) (types.TypeId, error) {
		if int(idx) >= len(moduleTypeIds) {
			return 0, malformed(r.offset(), "type index out of range: %d", idx)
		}
		return moduleTypeIds[idx], nil
	}
}
