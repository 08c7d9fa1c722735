package wasm

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaybeOwned_AssertMut(t *testing.T) {
	type payload struct{ n int }
	m := NewOwned(&payload{n: 1})

	m.AssertMut().n = 2
	require.Equal(t, 2, m.Deref().n)
	require.False(t, m.IsShared())
}

func TestMaybeOwned_ShareFreezesMutation(t *testing.T) {
	type payload struct{ n int }
	m := NewOwned(&payload{n: 1})
	m.Share()

	require.True(t, m.IsShared())
	require.Nil(t, m.AsMut())
	require.Panics(t, func() { m.AssertMut() })
}

func TestMaybeOwned_ShareIsIdempotent(t *testing.T) {
	m := NewOwned(&struct{}{})
	m.Share()
	m.Share()
	require.True(t, m.IsShared())
}

func TestMaybeOwned_ConcurrentReadsAfterShare(t *testing.T) {
	type payload struct{ n int }
	m := NewOwned(&payload{n: 42})
	m.Share()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, 42, m.Deref().n)
		}()
	}
	wg.Wait()
}
