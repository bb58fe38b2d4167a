package intern

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInternIdempotent(t *testing.T) {
	tb := New()
	id1 := tb.Intern("pkg.util.helper")
	id2 := tb.Intern("pkg.util.helper")
	require.Equal(t, id1, id2)

	s, ok := tb.Resolve(id1)
	require.True(t, ok)
	require.Equal(t, "pkg.util.helper", s)
}

func TestInternDistinctStrings(t *testing.T) {
	tb := New()
	a := tb.Intern("a")
	b := tb.Intern("b")
	require.NotEqual(t, a, b)
	require.Equal(t, 2, tb.Len())
}

func TestResolveUnknown(t *testing.T) {
	tb := New()
	_, ok := tb.Resolve(999)
	require.False(t, ok)
	_, ok = tb.Resolve(0)
	require.False(t, ok)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	tb := New()
	tb.Intern("one")
	tb.Intern("two")
	snap := tb.Snapshot()

	restored := Restore(snap)
	require.Equal(t, tb.Len(), restored.Len())
	id := restored.Intern("one")
	s, ok := restored.Resolve(id)
	require.True(t, ok)
	require.Equal(t, "one", s)
}

func TestInternConcurrent(t *testing.T) {
	tb := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tb.Intern("shared")
		}()
	}
	wg.Wait()
	require.Equal(t, 1, tb.Len())
}

func TestFileTableIdempotent(t *testing.T) {
	ft := NewFileTable()
	id1 := ft.FileID("/a/b.go")
	id2 := ft.FileID("/a/b.go")
	require.Equal(t, id1, id2)
}
