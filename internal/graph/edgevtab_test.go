package graph

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentic-research/codegraf/api"
	_ "modernc.org/sqlite"
)

func TestEdgeVTabTraversesOutgoingAndIncoming(t *testing.T) {
	mod, err := RegisterEdgeVTab()
	require.NoError(t, err)

	s := New()
	a := mkSymbol(t, s, "a.go", "pkg.A", api.KindFunction, 1)
	b := mkSymbol(t, s, "a.go", "pkg.B", api.KindFunction, 1)
	require.NoError(t, s.AddEdge(Edge{Type: api.EdgeCalls, From: a.ID, To: b.ID}))

	mod.RegisterStore("t1", s)
	defer mod.UnregisterStore("t1")

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE VIRTUAL TABLE edges USING codegraf_edges(t1)")
	require.NoError(t, err)

	mask := MaskFor(api.EdgeCalls)

	var target int64
	row := db.QueryRow("SELECT target_id FROM edges WHERE node_id = ? AND direction = 'out' AND type_mask = ?", int64(a.ID), int64(mask))
	require.NoError(t, row.Scan(&target))
	require.Equal(t, int64(b.ID), target)

	row = db.QueryRow("SELECT target_id FROM edges WHERE node_id = ? AND direction = 'in' AND type_mask = ?", int64(b.ID), int64(mask))
	require.NoError(t, row.Scan(&target))
	require.Equal(t, int64(a.ID), target)
}

func TestEdgeVTabUnknownStoreIDErrors(t *testing.T) {
	_, err := RegisterEdgeVTab()
	require.NoError(t, err)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE VIRTUAL TABLE edges USING codegraf_edges(nonexistent)")
	require.Error(t, err)
}
