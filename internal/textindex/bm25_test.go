package textindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeCamelCase(t *testing.T) {
	require.Equal(t, []string{"http", "server", "v", "2"}, tokenize("HTTPServerV2"))
	require.Equal(t, []string{"get", "user", "by", "id"}, tokenize("getUserByID"))
}

func TestSearchRanksNameAboveDocstring(t *testing.T) {
	ix := New()
	ix.Upsert(Doc{Ord: 1, Name: "Widget", QualifiedName: "pkg.Widget", Docstring: "a thing unrelated"})
	ix.Upsert(Doc{Ord: 2, Name: "Gadget", QualifiedName: "pkg.Gadget", Docstring: "renders a widget on screen"})

	hits := ix.Search("widget", 10)
	require.Len(t, hits, 2)
	require.Equal(t, uint32(1), hits[0].Ord)
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New()
	require.Empty(t, ix.Search("anything", 10))
}

func TestDeleteRemovesFromPostings(t *testing.T) {
	ix := New()
	ix.Upsert(Doc{Ord: 1, Name: "Widget"})
	ix.Delete(1)
	require.Empty(t, ix.Search("widget", 10))
}

func TestUpsertReplacesPriorVersion(t *testing.T) {
	ix := New()
	ix.Upsert(Doc{Ord: 1, Name: "Old"})
	ix.Upsert(Doc{Ord: 1, Name: "New"})

	require.Empty(t, ix.Search("old", 10))
	require.Len(t, ix.Search("new", 10), 1)
}

func TestSearchLimit(t *testing.T) {
	ix := New()
	for i := uint32(1); i <= 5; i++ {
		ix.Upsert(Doc{Ord: i, Name: "Widget"})
	}
	hits := ix.Search("widget", 2)
	require.Len(t, hits, 2)
}
