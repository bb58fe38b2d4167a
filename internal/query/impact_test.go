package query

import (
	"testing"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeImpactSeverityByEdgeType(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	root := addSymbol(s, fid, "a.go", "pkg.Base", api.KindInterface, 0, 10, api.VisibilityPublic)
	caller := addSymbol(s, fid, "a.go", "pkg.Caller", api.KindFunction, 20, 30, api.VisibilityPrivate)
	referencer := addSymbol(s, fid, "a.go", "pkg.Referencer", api.KindFunction, 40, 50, api.VisibilityPrivate)
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeCalls, From: caller.ID, To: root.ID}))
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeReferences, From: referencer.ID, To: root.ID}))

	resp, err := e.AnalyzeImpact(api.ImpactRequest{SymbolID: root.ID, ChangeKind: api.ChangeModify})
	require.NoError(t, err)
	require.Len(t, resp.Direct, 2)

	bySeverity := map[uint64]api.Severity{}
	for _, d := range resp.Direct {
		bySeverity[d.Node.ID] = d.Severity
	}
	require.Equal(t, api.SeverityBreaking, bySeverity[caller.ID])
	require.Equal(t, api.SeverityInfo, bySeverity[referencer.ID])
}

func TestAnalyzeImpactRenamePromotesReferences(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	root := addSymbol(s, fid, "a.go", "pkg.Base", api.KindVariable, 0, 10, api.VisibilityPublic)
	referencer := addSymbol(s, fid, "a.go", "pkg.Referencer", api.KindFunction, 40, 50, api.VisibilityPrivate)
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeReferences, From: referencer.ID, To: root.ID}))

	resp, err := e.AnalyzeImpact(api.ImpactRequest{SymbolID: root.ID, ChangeKind: api.ChangeRename})
	require.NoError(t, err)
	require.Len(t, resp.Direct, 1)
	require.Equal(t, api.SeverityWarning, resp.Direct[0].Severity)
}

func TestAnalyzeImpactIndirectReachesDepthThree(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	root := addSymbol(s, fid, "a.go", "pkg.Root", api.KindFunction, 0, 10, api.VisibilityPrivate)
	depth1 := addSymbol(s, fid, "a.go", "pkg.Depth1", api.KindFunction, 20, 30, api.VisibilityPrivate)
	depth2 := addSymbol(s, fid, "a.go", "pkg.Depth2", api.KindFunction, 40, 50, api.VisibilityPrivate)
	depth3 := addSymbol(s, fid, "a.go", "pkg.Depth3", api.KindFunction, 60, 70, api.VisibilityPrivate)
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeCalls, From: depth1.ID, To: root.ID}))
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeCalls, From: depth2.ID, To: depth1.ID}))
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeCalls, From: depth3.ID, To: depth2.ID}))

	resp, err := e.AnalyzeImpact(api.ImpactRequest{SymbolID: root.ID, ChangeKind: api.ChangeModify})
	require.NoError(t, err)
	require.Len(t, resp.Direct, 1)
	require.Equal(t, depth1.ID, resp.Direct[0].Node.ID)

	require.Len(t, resp.Indirect, 2)
	var sawDepth3 bool
	for _, ind := range resp.Indirect {
		if ind.Node.ID == depth3.ID {
			sawDepth3 = true
			require.Equal(t, []uint64{depth3.ID, depth2.ID, depth1.ID, root.ID}, ind.Path)
		}
	}
	require.True(t, sawDepth3)
}

func TestAnalyzeImpactAffectedTestsBothDirections(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	root := addSymbol(s, fid, "a.go", "pkg.Root", api.KindFunction, 0, 10, api.VisibilityPrivate)
	testsRoot := addSymbol(s, fid, "a.go", "pkg.TestRoot", api.KindFunction, 20, 30, api.VisibilityPrivate)
	rootTests := addSymbol(s, fid, "a.go", "pkg.Helper", api.KindFunction, 40, 50, api.VisibilityPrivate)
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeTests, From: testsRoot.ID, To: root.ID}))
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeTests, From: root.ID, To: rootTests.ID}))

	resp, err := e.AnalyzeImpact(api.ImpactRequest{SymbolID: root.ID, ChangeKind: api.ChangeModify})
	require.NoError(t, err)
	ids := map[uint64]bool{}
	for _, n := range resp.AffectedTests {
		ids[n.ID] = true
	}
	require.True(t, ids[testsRoot.ID])
	require.True(t, ids[rootTests.ID])
}

func TestUnusedCodePublicSymbolNoLongerPenalized(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	addSymbol(s, fid, "a.go", "pkg.DoThing", api.KindFunction, 0, 10, api.VisibilityPublic)

	resp, err := e.UnusedCode(api.UnusedCodeRequest{Scope: api.ScopeWorkspace, MinConfidence: 0.8})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	require.GreaterOrEqual(t, resp.Items[0].Confidence, 0.8)
}

func TestUnusedCodeExcludesEntryPointCandidate(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "main.go")
	addSymbol(s, fid, "main.go", "main", api.KindFunction, 0, 10, api.VisibilityPublic)

	resp, err := e.UnusedCode(api.UnusedCodeRequest{Scope: api.ScopeWorkspace, MinConfidence: 0})
	require.NoError(t, err)
	require.Empty(t, resp.Items)
}

func TestUnusedCodeExcludesEntryRoot(t *testing.T) {
	e, s, files := setup(t)
	e.EntryRoots = []string{"lib/"}
	fid, _ := addFile(s, files, "lib/api.go")
	addSymbol(s, fid, "lib/api.go", "lib.Exported", api.KindFunction, 0, 10, api.VisibilityPublic)

	resp, err := e.UnusedCode(api.UnusedCodeRequest{Scope: api.ScopeWorkspace, MinConfidence: 0})
	require.NoError(t, err)
	require.Empty(t, resp.Items)
}

func TestUnusedCodeTraitImplementationPenalized(t *testing.T) {
	e, s, files := setup(t)
	fid, _ := addFile(s, files, "a.go")
	iface := addSymbol(s, fid, "a.go", "pkg.Iface", api.KindInterface, 0, 10, api.VisibilityPublic)
	impl := addSymbol(s, fid, "a.go", "pkg.Impl", api.KindMethod, 20, 30, api.VisibilityPrivate)
	require.NoError(t, s.AddEdge(graph.Edge{Type: api.EdgeImplements, From: impl.ID, To: iface.ID}))

	resp, err := e.UnusedCode(api.UnusedCodeRequest{Scope: api.ScopeWorkspace, MinConfidence: 0})
	require.NoError(t, err)
	var found bool
	for _, item := range resp.Items {
		if item.Node.ID == impl.ID {
			found = true
			require.Less(t, item.Confidence, 0.9)
		}
	}
	require.True(t, found)
}
