package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestTypeStore_InternDedup(t *testing.T) {
	store := NewTypeStore()

	addAdd := RecGroup{Types: []SubType{{
		Composite: CompositeType{
			Kind: CompositeFunc,
			Func: FuncType{Params: []ValType{I32(), I32()}, Results: []ValType{I32()}},
		},
		Final: true,
	}}}

	ids1, err := store.Intern(addAdd, 0, false, 0)
	require.NoError(t, err)
	require.Len(t, ids1, 1)

	ids2, err := store.Intern(addAdd, 0, false, 0)
	require.NoError(t, err)
	require.Equal(t, ids1, ids2)
	require.Equal(t, 1, store.Len())
}

func TestTypeStore_DistinctShapesGetDistinctIds(t *testing.T) {
	store := NewTypeStore()

	unary := RecGroup{Types: []SubType{{
		Composite: CompositeType{Kind: CompositeFunc, Func: FuncType{Params: []ValType{I32()}, Results: []ValType{I32()}}},
		Final:     true,
	}}}
	binary := RecGroup{Types: []SubType{{
		Composite: CompositeType{Kind: CompositeFunc, Func: FuncType{Params: []ValType{I32(), I32()}, Results: []ValType{I32()}}},
		Final:     true,
	}}}

	ids1, err := store.Intern(unary, 0, false, 0)
	require.NoError(t, err)
	ids2, err := store.Intern(binary, 0, false, 0)
	require.NoError(t, err)
	require.NotEqual(t, ids1[0], ids2[0])
	require.Equal(t, 2, store.Len())

	// The stored shapes must round-trip field-for-field, not just compare
	// equal by TypeId: go-cmp catches a drifted field that equal() (which
	// is hand-written and can go stale) would miss.
	got := store.At(ids1[0])
	want := &unary.Types[0]
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("interned SubType diverged from input (-want +got):\n%s", diff)
	}
}

func TestTypeStore_InternLimitExceeded(t *testing.T) {
	store := NewTypeStore()
	rec := RecGroup{Types: []SubType{{Composite: CompositeType{Kind: CompositeFunc}, Final: true}}}

	_, err := store.Intern(rec, 5, true, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "offset 5")
}

func TestSubtyping_StructHierarchy(t *testing.T) {
	store := NewTypeStore()

	base := RecGroup{Types: []SubType{{
		Composite: CompositeType{Kind: CompositeStruct, Struct: StructType{
			Fields: []FieldType{{Type: I32()}},
		}},
		Final: false,
	}}}
	baseIDs, err := store.Intern(base, 0, false, 0)
	require.NoError(t, err)

	derived := RecGroup{Types: []SubType{{
		Composite: CompositeType{Kind: CompositeStruct, Struct: StructType{
			Fields: []FieldType{{Type: I32()}, {Type: I64()}},
		}},
		Supertypes: []TypeId{baseIDs[0]},
		Final:      true,
	}}}
	derivedIDs, err := store.Intern(derived, 0, false, 0)
	require.NoError(t, err)

	subRef := RefType{Nullable: true, Heap: Concrete(derivedIDs[0])}
	superRef := RefType{Nullable: true, Heap: Concrete(baseIDs[0])}
	require.True(t, RefTypeIsSubtype(subRef, superRef, store))
	require.False(t, RefTypeIsSubtype(superRef, subRef, store))

	require.True(t, RefTypeIsSubtype(subRef, RefType{Nullable: true, Heap: Abstract(HeapEq)}, store))
	require.True(t, RefTypeIsSubtype(subRef, RefType{Nullable: true, Heap: Abstract(HeapAny)}, store))
	require.False(t, RefTypeIsSubtype(subRef, RefType{Nullable: true, Heap: Abstract(HeapArray)}, store))
}

func TestSubtyping_NonNullableIntoNullable(t *testing.T) {
	store := NewTypeStore()
	nonNull := RefType{Nullable: false, Heap: Abstract(HeapFunc)}
	null := RefType{Nullable: true, Heap: Abstract(HeapFunc)}
	require.True(t, RefTypeIsSubtype(nonNull, null, store))
	require.False(t, RefTypeIsSubtype(null, nonNull, store))
}

func TestSubtyping_BottomTypes(t *testing.T) {
	store := NewTypeStore()
	require.True(t, RefTypeIsSubtype(
		RefType{Nullable: true, Heap: Abstract(HeapNone)},
		RefType{Nullable: true, Heap: Abstract(HeapAny)}, store))
	require.True(t, RefTypeIsSubtype(
		RefType{Nullable: true, Heap: Abstract(HeapNoFunc)},
		RefType{Nullable: true, Heap: Abstract(HeapFunc)}, store))
	require.True(t, RefTypeIsSubtype(
		RefType{Nullable: true, Heap: Abstract(HeapNoExtern)},
		RefType{Nullable: true, Heap: Abstract(HeapExtern)}, store))
}

func TestTopType(t *testing.T) {
	store := NewTypeStore()
	funcs := RecGroup{Types: []SubType{{Composite: CompositeType{Kind: CompositeFunc}, Final: true}}}
	ids, err := store.Intern(funcs, 0, false, 0)
	require.NoError(t, err)

	require.Equal(t, HeapFunc, TopType(Concrete(ids[0]), store).Kind)
	require.Equal(t, HeapFunc, TopType(Abstract(HeapNoFunc), store).Kind)
	require.Equal(t, HeapExtern, TopType(Abstract(HeapNoExtern), store).Kind)
	require.Equal(t, HeapAny, TopType(Abstract(HeapEq), store).Kind)
}
