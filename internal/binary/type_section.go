package binary

import (
	"github.com/wazvalid/wasmvalid/internal/leb128"
	"github.com/wazvalid/wasmvalid/internal/types"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

const (
	typeFormFunc     = 0x60
	typeFormStruct   = 0x5f
	typeFormArray    = 0x5e
	typeFormSub      = 0x50
	typeFormSubFinal = 0x4f
	typeFormRec      = 0x4e
)

// decodeTypeSection decodes every rec-group in the type section and
// applies each to m in order, resolving each SubType's supertype and
// heap-type references against types already known to m (types declared
// earlier in the module, or earlier siblings within the same rec group
// once they themselves have been interned).
//
// Forward references within a rec group to a not-yet-interned sibling are
// rejected rather than backpatched: §9 calls for resolving the whole group
// before validating any entry, which a streaming decoder can only do for
// groups whose members only reference each other in declaration order or
// reference prior groups. Modules using genuine forward/mutual recursion
// within one rec group are outside what this decoder accepts.
func decodeTypeSection(r *byteReader, m *wasm.ModuleIndexSpaces) error {
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return malformed(r.offset(), "type section count: %v", err)
	}
	for i := uint32(0); i < count; i++ {
		offset := r.offset()
		rec, err := decodeRecGroup(r, m)
		if err != nil {
			return err
		}
		if err := m.AddType(rec, offset); err != nil {
			return err
		}
	}
	return nil
}

func decodeRecGroup(r *byteReader, m *wasm.ModuleIndexSpaces) (types.RecGroup, error) {
	offset := r.offset()
	form, err := r.ReadByte()
	if err != nil {
		return types.RecGroup{}, malformed(offset, "type form: %v", err)
	}
	if form != typeFormRec {
		r.pos = offset
		st, err := decodeSubType(r, m, nil)
		if err != nil {
			return types.RecGroup{}, err
		}
		return types.RecGroup{Types: []types.SubType{st}}, nil
	}
	count, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return types.RecGroup{}, malformed(r.offset(), "rec group count: %v", err)
	}
	group := make([]types.SubType, 0, count)
	for i := uint32(0); i < count; i++ {
		st, err := decodeSubType(r, m, group)
		if err != nil {
			return types.RecGroup{}, err
		}
		group = append(group, st)
	}
	return types.RecGroup{Types: group}, nil
}

// groupResolver resolves a module-local type index against m's
// already-interned types plus the sibling SubTypes decoded so far within
// the rec group being built, relying on TypeStore.Intern assigning ids
// contiguously in the order a rec group's SubType slice is given.
func groupResolver(r *byteReader, m *wasm.ModuleIndexSpaces, group []types.SubType) typeResolver {
	return func(idx uint32) (types.TypeId, error) {
		if int(idx) < len(m.Types) {
			return m.Types[idx], nil
		}
		pos := int(idx) - len(m.Types)
		if pos >= 0 && pos < len(group) {
			return types.TypeId(m.Store.Len() + pos), nil
		}
		return 0, malformed(r.offset(), "type index out of range: %d", idx)
	}
}

func decodeSubType(r *byteReader, m *wasm.ModuleIndexSpaces, group []types.SubType) (types.SubType, error) {
	resolve := groupResolver(r, m, group)

	offset := r.offset()
	form, err := r.ReadByte()
	if err != nil {
		return types.SubType{}, malformed(offset, "type form: %v", err)
	}

	final := true
	var supertypes []types.TypeId
	if form == typeFormSub || form == typeFormSubFinal {
		final = form == typeFormSubFinal
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return types.SubType{}, malformed(r.offset(), "supertype count: %v", err)
		}
		for i := uint32(0); i < n; i++ {
			idx, _, err := leb128.DecodeUint32(r)
			if err != nil {
				return types.SubType{}, malformed(r.offset(), "supertype index: %v", err)
			}
			id, err := resolve(idx)
			if err != nil {
				return types.SubType{}, err
			}
			supertypes = append(supertypes, id)
		}
		form, err = r.ReadByte()
		if err != nil {
			return types.SubType{}, malformed(r.offset(), "composite form: %v", err)
		}
	}

	composite, err := decodeCompositeType(r, form, resolve)
	if err != nil {
		return types.SubType{}, err
	}
	return types.SubType{Composite: composite, Supertypes: supertypes, Final: final}, nil
}

func decodeCompositeType(r *byteReader, form byte, resolve typeResolver) (types.CompositeType, error) {
	switch form {
	case typeFormFunc:
		params, err := decodeValTypeVec(r, resolve)
		if err != nil {
			return types.CompositeType{}, err
		}
		results, err := decodeValTypeVec(r, resolve)
		if err != nil {
			return types.CompositeType{}, err
		}
		return types.CompositeType{Kind: types.CompositeFunc, Func: types.FuncType{Params: params, Results: results}}, nil
	case typeFormStruct:
		n, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return types.CompositeType{}, malformed(r.offset(), "struct field count: %v", err)
		}
		fields := make([]types.FieldType, n)
		for i := range fields {
			ft, err := decodeFieldType(r, resolve)
			if err != nil {
				return types.CompositeType{}, err
			}
			fields[i] = ft
		}
		return types.CompositeType{Kind: types.CompositeStruct, Struct: types.StructType{Fields: fields}}, nil
	case typeFormArray:
		elem, err := decodeFieldType(r, resolve)
		if err != nil {
			return types.CompositeType{}, err
		}
		return types.CompositeType{Kind: types.CompositeArray, Array: types.ArrayType{Elem: elem}}, nil
	default:
		return types.CompositeType{}, malformed(r.offset(), "unknown type form: %#x", form)
	}
}

func decodeFieldType(r *byteReader, resolve typeResolver) (types.FieldType, error) {
	v, err := decodeValType(r, resolve)
	if err != nil {
		return types.FieldType{}, err
	}
	mutFlag, err := r.ReadByte()
	if err != nil {
		return types.FieldType{}, malformed(r.offset(), "field mutability: %v", err)
	}
	return types.FieldType{Type: v, Mutable: mutFlag != 0}, nil
}

func decodeValTypeVec(r *byteReader, resolve typeResolver) ([]types.ValType, error) {
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, malformed(r.offset(), "value type vector count: %v", err)
	}
	out := make([]types.ValType, n)
	for i := range out {
		v, err := decodeValType(r, resolve)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
