package resolve

import (
	"testing"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/stretchr/testify/require"
)

func mkFile(s *graph.Store, path string) *graph.Node {
	n := &graph.Node{ID: graph.IDFor(path, graph.NodeFile, path, 0), Kind: graph.NodeFile, FilePath: path}
	s.UpsertNode(n)
	// Mirrors ingest.Engine.commit, which indexes a file's own node into
	// byFile alongside its symbols so the resolver's reachability walk
	// can find it via NodesByFile.
	s.IndexNodeFile(fileIDForPath(path), n)
	return n
}

// fileIDForPath maps the fixture paths used throughout this test file to
// the same small interned ids mkSym's callers pass by hand (1 for a.go, 2
// for b.go), since these tests build the store directly rather than
// through intern.FileTable.
func fileIDForPath(path string) uint32 {
	switch path {
	case "a.go":
		return 1
	case "b.go":
		return 2
	default:
		return 0
	}
}

func mkSym(s *graph.Store, file string, qname string, fileID uint32, vis api.Visibility) *graph.Node {
	n := &graph.Node{
		ID:            graph.IDFor(file, graph.NodeSymbol, qname, 0),
		Kind:          graph.NodeSymbol,
		QualifiedName: qname,
		DefiningFile:  uint64(fileID),
		Visibility:    vis,
	}
	s.UpsertNode(n)
	s.IndexNodeFile(fileID, n)
	return n
}

func TestResolveOneDirectMatch(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	caller := mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	callee := mkSym(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic)
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee", EdgeType: api.EdgeCalls})

	r := New(s, DefaultConfig())
	// Scope is transitive-imports by default, so the resolver needs an
	// import edge from a.go to b.go to consider callee in scope.
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeImports, From: graph.IDFor("a.go", graph.NodeFile, "a.go", 0), To: graph.IDFor("b.go", graph.NodeFile, "b.go", 0)}))

	resolved := r.ResolveAll()
	require.Len(t, resolved, 1)

	out := s.Outgoing(caller.ID, graph.MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{callee.ID}, out)
	require.Empty(t, s.AllPendingFileIDs())
}

func TestResolveStaysPendingWithoutImportReachability(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	mkSym(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic)
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee", EdgeType: api.EdgeCalls})

	r := New(s, DefaultConfig())
	resolved := r.ResolveAll()
	require.Empty(t, resolved)
	require.Len(t, s.AllPendingFileIDs(), 1)
}

func TestResolveWorkspaceScopeIgnoresImports(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	caller := mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	callee := mkSym(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic)
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee", EdgeType: api.EdgeCalls})

	cfg := DefaultConfig()
	cfg.Scope = ScopeWorkspace
	r := New(s, cfg)
	resolved := r.ResolveAll()
	require.Len(t, resolved, 1)

	out := s.Outgoing(caller.ID, graph.MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{callee.ID}, out)
}

func TestResolveImportEdge(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "a.go", TargetQName: "b.go", EdgeType: api.EdgeImports})

	r := New(s, DefaultConfig())
	resolved := r.ResolveAll()
	require.Len(t, resolved, 1)

	aID := graph.IDFor("a.go", graph.NodeFile, "a.go", 0)
	bID := graph.IDFor("b.go", graph.NodeFile, "b.go", 0)
	require.Equal(t, []uint64{bID}, s.Outgoing(aID, graph.MaskFor(api.EdgeImports)))
}

func mkSymWithArity(s *graph.Store, file string, qname string, fileID uint32, vis api.Visibility, byteStart uint32, paramCount int) *graph.Node {
	params := make([]api.Param, paramCount)
	n := &graph.Node{
		ID:            graph.IDFor(file, graph.NodeSymbol, qname, byteStart),
		Kind:          graph.NodeSymbol,
		QualifiedName: qname,
		DefiningFile:  uint64(fileID),
		Visibility:    vis,
		Params:        params,
	}
	s.UpsertNode(n)
	s.IndexNodeFile(fileID, n)
	return n
}

func TestResolvePicksArityMatchOverMismatch(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	caller := mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	// Two equally-ranked (not same-module, both exported) overloads at
	// different byte offsets in the same file; only the two-arg one
	// matches the call site's arg count.
	mkSymWithArity(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic, 0, 1)
	twoArg := mkSymWithArity(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic, 10, 2)
	want := 2
	s.AddPending(1, graph.PendingReference{
		OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee",
		EdgeType: api.EdgeCalls, ArgCount: &want,
	})

	cfg := DefaultConfig()
	cfg.Scope = ScopeWorkspace
	r := New(s, cfg)
	resolved := r.ResolveAll()
	require.Len(t, resolved, 1)

	out := s.Outgoing(caller.ID, graph.MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{twoArg.ID}, out)
}

func TestResolveStaysPendingOnTopRankTie(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	mkFile(s, "c.go")
	mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	// Two candidates tie on every ranking factor (neither same-module,
	// both exported, arity unavailable): the resolver must not pick one
	// arbitrarily.
	mkSym(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic)
	mkSym(s, "c.go", "pkg.Callee", 3, api.VisibilityPublic)
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee", EdgeType: api.EdgeCalls})

	cfg := DefaultConfig()
	cfg.Scope = ScopeWorkspace
	r := New(s, cfg)
	resolved := r.ResolveAll()
	require.Empty(t, resolved)
	require.Len(t, s.AllPendingFileIDs(), 1)
}

func TestResolvePicksSameModuleOverOther(t *testing.T) {
	s := graph.New()
	mkFile(s, "a.go")
	mkFile(s, "b.go")
	caller := mkSym(s, "a.go", "pkg.Caller", 1, api.VisibilityPrivate)
	// Two candidates share the qualified name; the one in the same file
	// as the caller should win.
	local := mkSym(s, "a.go", "pkg.Callee", 1, api.VisibilityPrivate)
	mkSym(s, "b.go", "pkg.Callee", 2, api.VisibilityPublic)
	s.AddPending(1, graph.PendingReference{OriginFileID: 1, FromQName: "pkg.Caller", TargetQName: "pkg.Callee", EdgeType: api.EdgeCalls})

	cfg := DefaultConfig()
	cfg.Scope = ScopeWorkspace
	r := New(s, cfg)
	r.ResolveAll()

	out := s.Outgoing(caller.ID, graph.MaskFor(api.EdgeCalls))
	require.Equal(t, []uint64{local.ID}, out)
}
