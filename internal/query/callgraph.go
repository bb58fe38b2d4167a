package query

import (
	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// CallGraph answers §4.6.2: the caller/callee graph rooted at the symbol
// addressed by (req.FilePath, req.Position).
func (e *Engine) CallGraph(req api.CallGraphRequest) (api.GraphResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	root, ok := e.symbolAtPosition(req.FilePath, req.Position)
	if !ok {
		return api.GraphResponse{}, api.NewError(api.ErrPositionNotOnSymbol, "no symbol at given position", nil)
	}

	depth := clampDepth(req.Depth)
	mask := graph.MaskFor(api.EdgeCalls)
	visited := map[uint64]*graph.Node{root.ID: root}
	var edges []api.EdgeView

	frontier := []uint64{root.ID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []uint64
		for _, id := range frontier {
			for _, dir := range callGraphDirections(req.Direction) {
				var neighbors []uint64
				if dir == DirOut {
					neighbors = e.Store.Outgoing(id, mask)
				} else {
					neighbors = e.Store.Incoming(id, mask)
				}
				for _, to := range neighbors {
					n, err := e.Store.GetNode(to)
					if err != nil {
						continue
					}
					ev := api.EdgeView{Type: api.EdgeCalls}
					if dir == DirOut {
						ev.From, ev.To = id, to
					} else {
						ev.From, ev.To = to, id
					}
					if fromID, toID := ev.From, ev.To; fromID == toID {
						ev.Recursive = true
					}
					if edge, ok := e.Store.Edge(api.EdgeCalls, ev.From, ev.To); ok {
						ev.CallSites = edge.CallSites
					}
					edges = append(edges, ev)
					if _, seen := visited[to]; !seen {
						visited[to] = n
						next = append(next, to)
					}
				}
			}
		}
		frontier = next
	}

	resp := api.GraphResponse{Root: &root.ID}
	for _, n := range visited {
		resp.Nodes = append(resp.Nodes, toNodeView(n))
	}
	resp.Edges = dedupEdges(edges)
	return resp, nil
}
