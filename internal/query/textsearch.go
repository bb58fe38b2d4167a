package query

import (
	"sort"

	"github.com/agentic-research/codegraf/api"
)

// TextSearch answers a direct C5 query, projecting BM25 hits to live
// graph nodes. Ordinals with no corresponding live node (deleted since
// indexing, before the text index caught up) are silently skipped.
func (e *Engine) TextSearch(req api.TextSearchRequest) (api.TextSearchResponse, error) {
	if e.Text == nil {
		return api.TextSearchResponse{}, api.NewError(api.ErrInternal, "text index not configured", nil)
	}
	hits := e.Text.Search(req.Query, req.Limit)

	e.Store.RLock()
	defer e.Store.RUnlock()

	var resp api.TextSearchResponse
	for _, h := range hits {
		id, ok := e.Store.NodeIDForOrdinal(h.Ord)
		if !ok {
			continue
		}
		n, err := e.Store.GetNode(id)
		if err != nil {
			continue
		}
		resp.Hits = append(resp.Hits, api.TextSearchHit{Node: toNodeView(n), Score: h.Score})
	}
	sort.SliceStable(resp.Hits, func(i, j int) bool { return resp.Hits[i].Score > resp.Hits[j].Score })
	return resp, nil
}
