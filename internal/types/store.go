package types

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// TypeId is a dense, opaque index into a TypeStore. Zero is a valid id: the
// store assigns ids starting at zero, in interning order, and never reuses
// or renumbers one once handed out.
type TypeId uint32

// CompositeKind discriminates the three shapes a composite type can take.
type CompositeKind uint8

const (
	CompositeFunc CompositeKind = iota
	CompositeStruct
	CompositeArray
)

// FuncType is the parameter/result signature of a function.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (f *FuncType) equal(o *FuncType) bool {
	if len(f.Params) != len(o.Params) || len(f.Results) != len(o.Results) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	for i := range f.Results {
		if !f.Results[i].Equal(o.Results[i]) {
			return false
		}
	}
	return true
}

// FieldType is the type of a struct field or array element, with its
// declared mutability.
type FieldType struct {
	Type    ValType
	Mutable bool
}

func (f FieldType) equal(o FieldType) bool {
	return f.Mutable == o.Mutable && f.Type.Equal(o.Type)
}

// StructType lists the fields of a struct type, introduced by the
// garbage-collection proposal.
type StructType struct {
	Fields []FieldType
}

// ArrayType is the element type of an array type, introduced by the
// garbage-collection proposal.
type ArrayType struct {
	Elem FieldType
}

// CompositeType is the tagged union of the three shapes a rec-group entry
// can declare.
type CompositeType struct {
	Kind   CompositeKind
	Shared bool
	Func   FuncType
	Struct StructType
	Array  ArrayType
}

func (c *CompositeType) equal(o *CompositeType) bool {
	if c.Kind != o.Kind || c.Shared != o.Shared {
		return false
	}
	switch c.Kind {
	case CompositeFunc:
		return c.Func.equal(&o.Func)
	case CompositeStruct:
		if len(c.Struct.Fields) != len(o.Struct.Fields) {
			return false
		}
		for i := range c.Struct.Fields {
			if !c.Struct.Fields[i].equal(o.Struct.Fields[i]) {
				return false
			}
		}
		return true
	case CompositeArray:
		return c.Array.Elem.equal(o.Array.Elem)
	}
	return false
}

// SubType is one entry of a recursion group: a composite shape, its
// declared explicit supertypes (already resolved to concrete TypeIds by the
// caller), and whether further subtyping is disallowed.
type SubType struct {
	Composite  CompositeType
	Supertypes []TypeId
	Final      bool
}

func (s *SubType) equal(o *SubType) bool {
	if s.Final != o.Final || len(s.Supertypes) != len(o.Supertypes) {
		return false
	}
	for i := range s.Supertypes {
		if s.Supertypes[i] != o.Supertypes[i] {
			return false
		}
	}
	return s.Composite.equal(&o.Composite)
}

// RecGroup is a group of mutually-recursive SubTypes declared together,
// decoded from one type-section entry. References within the group to
// sibling entries must already have been resolved to concrete TypeIds by
// the caller (the group's own future indices are known up front because
// the store hands out ids contiguously).
type RecGroup struct {
	Types []SubType
}

// TypeStore is an append-only arena of interned SubTypes. It assigns dense
// TypeIds in insertion order and never backpatches or renumbers an entry, so
// a TypeId handed out to a caller remains valid for the store's lifetime.
//
// Single-member rec groups are deduplicated structurally: interning the
// same shape twice returns the id of the first occurrence. A rec group with
// more than one member always receives fresh, contiguous ids and is not
// matched against earlier groups.
type TypeStore struct {
	entries []SubType
	dedup   map[uint64][]TypeId
	cache   *lru.Cache[uint64, TypeId]
}

// NewTypeStore returns an empty TypeStore.
func NewTypeStore() *TypeStore {
	c, _ := lru.New[uint64, TypeId](4096)
	return &TypeStore{
		dedup: make(map[uint64][]TypeId),
		cache: c,
	}
}

// Len returns the number of SubTypes interned so far.
func (s *TypeStore) Len() int { return len(s.entries) }

// At returns the SubType for id, or nil if id is out of range.
func (s *TypeStore) At(id TypeId) *SubType {
	if int(id) >= len(s.entries) {
		return nil
	}
	return &s.entries[int(id)]
}

func (s *TypeStore) compositeKind(id TypeId) CompositeKind {
	st := s.At(id)
	if st == nil {
		return CompositeFunc
	}
	return st.Composite.Kind
}

// Intern adds every SubType in rec to the store, returning their assigned
// ids in declaration order. When checkLimit is true and the resulting store
// size would exceed maxTypes, an error referencing offset is returned and
// nothing is added.
//
// A single-member group is hash-consed: a structurally identical SubType
// already in the store is returned instead of a new entry. The members of
// a larger group are appended as they are, so they receive the contiguous
// ids Len(), Len()+1, ... that references between siblings were resolved
// against.
func (s *TypeStore) Intern(rec RecGroup, offset int, checkLimit bool, maxTypes int) ([]TypeId, error) {
	if checkLimit && len(s.entries)+len(rec.Types) > maxTypes {
		return nil, fmt.Errorf("module defines %d types which exceeds the limit %d (offset %d)",
			len(s.entries)+len(rec.Types), maxTypes, offset)
	}
	ids := make([]TypeId, len(rec.Types))
	if len(rec.Types) > 1 {
		for i := range rec.Types {
			ids[i] = TypeId(len(s.entries))
			s.entries = append(s.entries, rec.Types[i])
		}
		return ids, nil
	}
	for i := range rec.Types {
		ids[i] = s.internOne(&rec.Types[i])
	}
	return ids, nil
}

func (s *TypeStore) internOne(st *SubType) TypeId {
	h := hashSubType(st)
	if id, ok := s.cache.Get(h); ok {
		if existing := s.At(id); existing != nil && existing.equal(st) {
			return id
		}
	}
	for _, candidate := range s.dedup[h] {
		if existing := s.At(candidate); existing != nil && existing.equal(st) {
			s.cache.Add(h, candidate)
			return candidate
		}
	}
	id := TypeId(len(s.entries))
	s.entries = append(s.entries, *st)
	s.dedup[h] = append(s.dedup[h], id)
	s.cache.Add(h, id)
	return id
}

// hashSubType computes a structural hash of st suitable for use as a
// dedup/memoization key. Collisions are resolved by the exact equality
// check in internOne, so this need not be collision-free.
func hashSubType(st *SubType) uint64 {
	d := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(st.Composite.Kind))
	_, _ = d.Write(buf[:])
	if st.Composite.Shared {
		_, _ = d.Write([]byte{1})
	}
	if st.Final {
		_, _ = d.Write([]byte{1})
	}
	for _, sup := range st.Supertypes {
		binary.LittleEndian.PutUint64(buf[:], uint64(sup))
		_, _ = d.Write(buf[:])
	}

	switch st.Composite.Kind {
	case CompositeFunc:
		hashValTypes(d, st.Composite.Func.Params)
		hashValTypes(d, st.Composite.Func.Results)
	case CompositeStruct:
		for _, f := range st.Composite.Struct.Fields {
			hashFieldType(d, f)
		}
	case CompositeArray:
		hashFieldType(d, st.Composite.Array.Elem)
	}
	return d.Sum64()
}

func hashValTypes(d *xxhash.Digest, vs []ValType) {
	var buf [8]byte
	for _, v := range vs {
		binary.LittleEndian.PutUint64(buf[:], uint64(v.Kind))
		_, _ = d.Write(buf[:])
		if v.Kind == KindRef {
			hashRefType(d, v.Ref)
		}
	}
}

func hashRefType(d *xxhash.Digest, r RefType) {
	var buf [8]byte
	if r.Nullable {
		_, _ = d.Write([]byte{1})
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(r.Heap.Kind))
	_, _ = d.Write(buf[:])
	if r.Heap.Shared {
		_, _ = d.Write([]byte{1})
	}
	if r.Heap.Kind == HeapConcrete {
		binary.LittleEndian.PutUint64(buf[:], uint64(r.Heap.Index))
		_, _ = d.Write(buf[:])
	}
}

func hashFieldType(d *xxhash.Digest, f FieldType) {
	var buf [8]byte
	if f.Mutable {
		_, _ = d.Write([]byte{1})
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(f.Type.Kind))
	_, _ = d.Write(buf[:])
	if f.Type.Kind == KindRef {
		hashRefType(d, f.Type.Ref)
	}
}
