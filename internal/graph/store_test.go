package graph

import (
	"testing"

	"github.com/agentic-research/codegraf/api"
	"github.com/stretchr/testify/require"
)

func mkSymbol(t *testing.T, s *Store, file string, qname string, kind api.SymbolKind, fileID uint32) *Node {
	t.Helper()
	id := IDFor(file, NodeSymbol, qname, 0)
	n := &Node{
		ID:            id,
		Kind:          NodeSymbol,
		Name:          qname,
		QualifiedName: qname,
		SymbolKind:    kind,
		DefiningFile:  uint64(fileID),
	}
	s.UpsertNode(n)
	s.IndexNodeFile(fileID, n)
	return n
}

func TestIDForStable(t *testing.T) {
	a := IDFor("a.go", NodeSymbol, "pkg.Foo", 10)
	b := IDFor("a.go", NodeSymbol, "pkg.Foo", 10)
	require.Equal(t, a, b)

	c := IDFor("a.go", NodeSymbol, "pkg.Foo", 11)
	require.NotEqual(t, a, c)
}

func TestUpsertAndGetNode(t *testing.T) {
	s := New()
	n := mkSymbol(t, s, "a.go", "pkg.Foo", api.KindFunction, 1)

	got, err := s.GetNode(n.ID)
	require.NoError(t, err)
	require.Equal(t, "pkg.Foo", got.QualifiedName)

	_, err = s.GetNode(999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddEdgeRequiresLiveEndpoints(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)

	err := s.AddEdge(Edge{Type: api.EdgeCalls, From: a.ID, To: 12345})
	require.Error(t, err)
}

func TestAddEdgeAndTraversal(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)
	b := mkSymbol(t, s, "a.go", "pkg.B", api.KindFunction, 1)

	require.NoError(t, s.AddEdge(Edge{Type: api.EdgeCalls, From: a.ID, To: b.ID}))

	out := s.Outgoing(a.ID, MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{b.ID}, out)

	in := s.Incoming(b.ID, MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{a.ID}, in)

	require.Equal(t, uint64(1), s.IncomingCount(b.ID, MaskFor(api.EdgeCalls)))
}

func TestDeleteNodeCascadesEdges(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)
	b := mkSymbol(t, s, "a.go", "pkg.B", api.KindFunction, 1)
	require.NoError(t, s.AddEdge(Edge{Type: api.EdgeCalls, From: a.ID, To: b.ID}))

	s.DeleteNode(a.ID)

	_, err := s.GetNode(a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, s.Incoming(b.ID, AllEdgeTypesMask))
}

func TestByQNamePrefixAndExact(t *testing.T) {
	s := New()
	mkSymbol(t, s, "a.go", "pkg.foo.Bar", api.KindFunction, 1)
	mkSymbol(t, s, "a.go", "pkg.foo.Baz", api.KindFunction, 1)
	mkSymbol(t, s, "a.go", "pkg.other.Qux", api.KindFunction, 1)

	matches := s.ByQNamePrefix("pkg.foo.")
	require.Len(t, matches, 2)

	exact := s.ByExactQName("pkg.foo.Bar")
	require.Len(t, exact, 1)
}

func TestNodesByFile(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)
	mkSymbol(t, s, "b.go", "pkg.B", api.KindFunction, 2)

	ids := s.NodesByFile(1)
	require.Equal(t, []uint64{a.ID}, ids)
}

func TestPendingReferenceRoundTrip(t *testing.T) {
	s := New()
	s.AddPending(1, PendingReference{OriginFileID: 1, TargetQName: "pkg.Missing", EdgeType: api.EdgeCalls})

	ids := s.AllPendingFileIDs()
	require.Equal(t, []uint32{1}, ids)

	drained := s.DrainPending(1)
	require.Len(t, drained, 1)
	require.Empty(t, s.AllPendingFileIDs())
}

func TestBumpEpoch(t *testing.T) {
	s := New()
	require.Equal(t, uint64(0), s.Epoch())
	require.Equal(t, uint64(1), s.BumpEpoch())
	require.Equal(t, uint64(1), s.Epoch())
}

func TestBySymbolKind(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindClass, 1)
	mkSymbol(t, s, "a.go", "pkg.B", api.KindFunction, 1)

	classes := s.BySymbolKind(api.KindClass)
	require.Equal(t, []uint64{a.ID}, classes)
}

func TestOrdinalRoundTrip(t *testing.T) {
	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)

	ord, ok := s.OrdinalFor(a.ID)
	require.True(t, ok)

	id, ok := s.NodeIDForOrdinal(ord)
	require.True(t, ok)
	require.Equal(t, a.ID, id)

	s.DeleteNode(a.ID)
	_, ok = s.NodeIDForOrdinal(ord)
	require.False(t, ok, "ordinal of a deleted node must not resolve")
}
