package gitmine

import (
	"testing"

	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/intern"
	"github.com/agentic-research/codegraf/internal/memory"
	"github.com/agentic-research/codegraf/internal/query"
	"github.com/agentic-research/codegraf/internal/textindex"
	"github.com/stretchr/testify/require"
)

func newTestMiner(t *testing.T, minConfidence float64) (*Miner, *graph.Store) {
	t.Helper()
	store := graph.New()
	files := intern.NewFileTable()
	text := textindex.New()
	q := query.New(store, text, files)
	mem := memory.New(nil)
	return New(q, mem, minConfidence), store
}

func addFileNode(store *graph.Store, path string) {
	store.Lock()
	defer store.Unlock()
	store.UpsertNode(&graph.Node{
		ID:       graph.IDFor(path, graph.NodeFile, path, 0),
		Kind:     graph.NodeFile,
		FilePath: path,
	})
}

func TestMineClassifiesFixCommitAsKnownIssue(t *testing.T) {
	m, store := newTestMiner(t, 0.5)
	addFileNode(store, "internal/server.go")

	ids, err := m.Mine([]CommitRecord{{
		Hash:         "abc123",
		Author:       "dev",
		Time:         100,
		Message:      "fix: handle nil response body\n\nThe handler crashed when upstream returned an empty body.",
		ChangedPaths: []string{"internal/server.go"},
	}}, 200)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	view, err := m.Memory.Get(ids[0])
	require.NoError(t, err)
	require.Equal(t, string(memory.KindKnownIssue), view.Kind)
	require.Equal(t, "fix: handle nil response body", view.Title)
	require.Contains(t, view.Content, "crashed")
	require.Len(t, view.CodeLinks, 1)
}

func TestMineSkipsUnclassifiableCommit(t *testing.T) {
	m, _ := newTestMiner(t, 0.5)
	ids, err := m.Mine([]CommitRecord{{
		Hash:    "def456",
		Message: "bump dependency versions",
	}}, 1)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestMineGatesOnMinConfidence(t *testing.T) {
	m, _ := newTestMiner(t, 0.7)
	// "feat:" carries confidence 0.6 in the default rule set, below 0.7.
	ids, err := m.Mine([]CommitRecord{{
		Hash:    "ghi789",
		Message: "feat: add new query operation",
	}}, 1)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestMineSkipsLinkForPathNeverIngested(t *testing.T) {
	m, _ := newTestMiner(t, 0.5)
	ids, err := m.Mine([]CommitRecord{{
		Hash:         "jkl012",
		Message:      "fix: typo in README",
		ChangedPaths: []string{"README.md"},
	}}, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	view, err := m.Memory.Get(ids[0])
	require.NoError(t, err)
	require.Empty(t, view.CodeLinks)
}

func TestLoadRuleSetOverridesDefaults(t *testing.T) {
	rs, err := LoadRuleSet([]byte(`
- kind: convention
  pattern: '(?im)^chore:'
  confidence: 0.9
`))
	require.NoError(t, err)
	require.Len(t, rs, 1)

	cls, ok := rs.classify("chore: tidy up build scripts")
	require.True(t, ok)
	require.Equal(t, memory.KindConvention, cls.kind)
	require.InDelta(t, 0.9, cls.confidence, 0.0001)
}

func TestLoadRuleSetRejectsUnknownKind(t *testing.T) {
	_, err := LoadRuleSet([]byte(`
- kind: not-a-real-kind
  pattern: 'x'
`))
	require.Error(t, err)
}

func TestSplitSubjectSeparatesBodyFromSubject(t *testing.T) {
	subject, body := splitSubject("fix: oops\n\nsome body text\nmore body")
	require.Equal(t, "fix: oops", subject)
	require.Equal(t, "some body text\nmore body", body)

	subject, body = splitSubject("fix: oops")
	require.Equal(t, "fix: oops", subject)
	require.Equal(t, "", body)
}
