// Package leb128 encodes and decodes integers using the variable-length
// LEB128 encoding defined by the WebAssembly binary format.
//
// See https://webassembly.github.io/spec/core/binary/values.html#integers
package leb128

import (
	"errors"
	"io"
)

// these mirror the limits the reference WebAssembly decoders use: a
// varuint32/varint32 occupies at most 5 bytes, a varuint64/varint64 at
// most 10, and no more than the unused high bits of the final byte may be set.
const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10
)

var (
	errOverflow32 = errors.New("leb128: integer representation too long for 32-bit value")
	errOverflow64 = errors.New("leb128: integer representation too long for 64-bit value")
)

// EncodeUint32 encodes v as an unsigned LEB128 varuint32.
func EncodeUint32(v uint32) []byte {
	return EncodeUint64(uint64(v))
}

// EncodeUint64 encodes v as an unsigned LEB128 varuint64.
func EncodeUint64(v uint64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			buf = append(buf, b|0x80)
		} else {
			buf = append(buf, b)
			return buf
		}
	}
}

// EncodeInt32 encodes v as a signed LEB128 varint32.
func EncodeInt32(v int32) []byte {
	return EncodeInt64(int64(v))
}

// EncodeInt64 encodes v as a signed LEB128 varint64.
func EncodeInt64(v int64) []byte {
	var buf []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		signBitSet := b&0x40 != 0
		if (v == 0 && !signBitSet) || (v == -1 && signBitSet) {
			buf = append(buf, b)
			return buf
		}
		buf = append(buf, b|0x80)
	}
}

// LoadUint32 decodes a varuint32 from the front of b, returning the value and
// the number of bytes consumed.
func LoadUint32(b []byte) (ret uint32, bytesRead uint64, err error) {
	v, n, err := loadUvarint(b, 32)
	return uint32(v), n, err
}

// LoadUint64 decodes a varuint64 from the front of b.
func LoadUint64(b []byte) (ret uint64, bytesRead uint64, err error) {
	return loadUvarint(b, 64)
}

// LoadInt32 decodes a varint32 from the front of b.
func LoadInt32(b []byte) (ret int32, bytesRead uint64, err error) {
	v, n, err := loadVarint(b, 32)
	return int32(v), n, err
}

// LoadInt64 decodes a varint64 from the front of b.
func LoadInt64(b []byte) (ret int64, bytesRead uint64, err error) {
	return loadVarint(b, 64)
}

func loadUvarint(b []byte, size uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i == maxVarintLen64 || i >= (int(size)/7+1) {
			return 0, 0, errOverflowFor(size)
		}
		if i >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c := b[i]
		if shift == uint((size/7)*7) {
			// final allowed byte: only the bits that fit in `size` may be set.
			mask := byte(0xff) << (size - shift)
			if c&0x80 == 0 {
				mask = mask &^ 0x80
			}
			if c&mask != 0 {
				return 0, 0, errOverflowFor(size)
			}
		}
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, uint64(i + 1), nil
		}
		shift += 7
	}
}

func loadVarint(b []byte, size uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var c byte
	i := 0
	for {
		if i == maxVarintLen64 || i >= (int(size)/7+1) {
			return 0, 0, errOverflowFor(size)
		}
		if i >= len(b) {
			return 0, 0, io.ErrUnexpectedEOF
		}
		c = b[i]
		if shift == uint((size/7)*7) {
			// final allowed byte: no continuation, and the bits above the
			// value's width must all repeat its sign bit.
			mask := (byte(0x7f) << (size - shift - 1)) & 0x7f
			if c&0x80 != 0 || (c&mask != 0 && c&mask != mask) {
				return 0, 0, errOverflowFor(size)
			}
		}
		result |= int64(c&0x7f) << shift
		shift += 7
		i++
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 64 && c&0x40 != 0 {
		result |= -1 << shift
	}
	return result, uint64(i), nil
}

func errOverflowFor(size uint) error {
	if size > 32 {
		return errOverflow64
	}
	return errOverflow32
}

// DecodeUint32 decodes a varuint32 from r.
func DecodeUint32(r io.ByteReader) (ret uint32, bytesRead uint64, err error) {
	v, n, err := decodeUvarint(r, 32)
	return uint32(v), n, err
}

// DecodeUint64 decodes a varuint64 from r.
func DecodeUint64(r io.ByteReader) (ret uint64, bytesRead uint64, err error) {
	return decodeUvarint(r, 64)
}

// DecodeInt32 decodes a varint32 from r.
func DecodeInt32(r io.ByteReader) (ret int32, bytesRead uint64, err error) {
	v, n, err := decodeVarint(r, 32)
	return int32(v), n, err
}

// DecodeInt64 decodes a varint64 from r.
func DecodeInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeVarint(r, 64)
}

// DecodeInt33AsInt64 decodes a signed 33-bit LEB128, as used for block types
// and memory/table index types, sign-extended into an int64.
func DecodeInt33AsInt64(r io.ByteReader) (ret int64, bytesRead uint64, err error) {
	return decodeVarint(r, 33)
}

func decodeUvarint(r io.ByteReader, size uint) (uint64, uint64, error) {
	var result uint64
	var shift uint
	var n uint64
	for {
		if n == maxVarintLen64 || int(n) >= (int(size)/7+1) {
			return 0, 0, errOverflowFor(size)
		}
		c, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		n++
		if shift == uint((size/7)*7) {
			mask := byte(0xff) << (size - shift)
			if c&0x80 == 0 {
				mask = mask &^ 0x80
			}
			if c&mask != 0 {
				return 0, 0, errOverflowFor(size)
			}
		}
		result |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return result, n, nil
		}
		shift += 7
	}
}

func decodeVarint(r io.ByteReader, size uint) (int64, uint64, error) {
	var result int64
	var shift uint
	var c byte
	var n uint64
	for {
		if n == maxVarintLen64 || int(n) >= (int(size)/7+1) {
			return 0, 0, errOverflowFor(size)
		}
		var err error
		c, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		n++
		if shift == uint((size/7)*7) {
			// final allowed byte: no continuation, and the bits above the
			// value's width must all repeat its sign bit.
			mask := (byte(0x7f) << (size - shift - 1)) & 0x7f
			if c&0x80 != 0 || (c&mask != 0 && c&mask != mask) {
				return 0, 0, errOverflowFor(size)
			}
		}
		result |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			break
		}
	}
	if shift < 64 && c&0x40 != 0 {
		result |= -1 << shift
	}
	return result, n, nil
}
