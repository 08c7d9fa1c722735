package types

// topType lifts a HeapType to the top of its type hierarchy: func, extern,
// any, or exn. Concrete types are resolved through the owning TypeStore
// since their composite kind determines which hierarchy they belong to.
func topType(h HeapType, composite func(TypeId) CompositeKind) HeapType {
	if h.Kind != HeapConcrete {
		switch h.Kind {
		case HeapFunc, HeapNoFunc:
			return Abstract(HeapFunc)
		case HeapExtern, HeapNoExtern:
			return Abstract(HeapExtern)
		case HeapExn, HeapNoExn:
			return Abstract(HeapExn)
		default:
			return Abstract(HeapAny)
		}
	}
	switch composite(h.Index) {
	case CompositeFunc:
		return HeapType{Kind: HeapFunc, Shared: h.Shared}
	default:
		return HeapType{Kind: HeapAny, Shared: h.Shared}
	}
}

// isBottom reports whether h is one of the four bottom types (none,
// nofunc, noextern, noexn) that are subtypes of everything in their
// hierarchy.
func isBottom(k HeapKind) bool {
	switch k {
	case HeapNone, HeapNoFunc, HeapNoExtern, HeapNoExn:
		return true
	default:
		return false
	}
}

// heapTypeIsSubtype reports whether sub <: super, given a store used to walk
// the explicit supertype chains of concrete types and to determine which
// hierarchy a concrete type belongs to.
func heapTypeIsSubtype(sub, super HeapType, store *TypeStore) bool {
	if sub.Shared != super.Shared {
		return false
	}
	if sub.Equal(super) {
		return true
	}
	switch super.Kind {
	case HeapFunc:
		return sub.Kind == HeapNoFunc || (sub.Kind == HeapConcrete && store.compositeKind(sub.Index) == CompositeFunc) || subtypeChainReaches(sub, super, store)
	case HeapExtern:
		return sub.Kind == HeapNoExtern
	case HeapExn:
		return sub.Kind == HeapNoExn
	case HeapAny:
		switch sub.Kind {
		case HeapEq, HeapI31, HeapStruct, HeapArray, HeapNone:
			return true
		case HeapConcrete:
			return store.compositeKind(sub.Index) != CompositeFunc
		}
		return false
	case HeapEq:
		switch sub.Kind {
		case HeapI31, HeapStruct, HeapArray, HeapNone:
			return true
		case HeapConcrete:
			kind := store.compositeKind(sub.Index)
			return kind == CompositeStruct || kind == CompositeArray
		}
		return false
	case HeapStruct:
		if sub.Kind == HeapNone {
			return true
		}
		if sub.Kind == HeapConcrete {
			return store.compositeKind(sub.Index) == CompositeStruct
		}
		return false
	case HeapArray:
		if sub.Kind == HeapNone {
			return true
		}
		if sub.Kind == HeapConcrete {
			return store.compositeKind(sub.Index) == CompositeArray
		}
		return false
	case HeapConcrete:
		if sub.Kind == HeapNone || sub.Kind == HeapNoFunc || sub.Kind == HeapNoExtern || sub.Kind == HeapNoExn {
			return isBottom(sub.Kind)
		}
		if sub.Kind != HeapConcrete {
			return false
		}
		return subtypeChainReaches(sub, super, store)
	}
	return false
}

// subtypeChainReaches walks sub's explicit declared supertypes (as recorded
// by the rec-group validator) looking for super. Every concrete type is
// always considered a subtype of itself, handled earlier in
// heapTypeIsSubtype.
func subtypeChainReaches(sub, super HeapType, store *TypeStore) bool {
	if sub.Kind != HeapConcrete {
		return false
	}
	current := sub.Index
	for {
		st := store.At(current)
		if st == nil {
			return false
		}
		matched := false
		for _, parent := range st.Supertypes {
			if Concrete(parent).Equal(super) {
				return true
			}
			current = parent
			matched = true
			break
		}
		if !matched {
			return false
		}
	}
}

// RefTypeIsSubtype reports whether sub <: super under the standard
// reference-type subtyping rule: (ref null ht1) <: (ref null ht2) requires
// ht1 <: ht2, and non-nullable references may flow into nullable positions
// but not the reverse.
func RefTypeIsSubtype(sub, super RefType, store *TypeStore) bool {
	if sub.Nullable && !super.Nullable {
		return false
	}
	return heapTypeIsSubtype(sub.Heap, super.Heap, store)
}

// ValTypeIsSubtype extends RefTypeIsSubtype to the full value-type lattice:
// numeric and vector types are subtypes only of themselves.
func ValTypeIsSubtype(sub, super ValType, store *TypeStore) bool {
	if sub.Kind != super.Kind {
		return false
	}
	if sub.Kind == KindRef {
		return RefTypeIsSubtype(sub.Ref, super.Ref, store)
	}
	return true
}

// TopType lifts h to the top of its type hierarchy, resolving concrete
// types through store.
func TopType(h HeapType, store *TypeStore) HeapType {
	return topType(h, store.compositeKind)
}
