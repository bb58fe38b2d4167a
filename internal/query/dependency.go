package query

import (
	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// DependencyGraph answers §4.6.1: the file-level import graph rooted at
// req.FilePath, walked to req.Depth in req.Direction.
func (e *Engine) DependencyGraph(req api.DependencyGraphRequest) (api.GraphResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	root, ok := e.fileNodeByPath(req.FilePath)
	if !ok {
		return api.GraphResponse{}, api.NewError(api.ErrNotFound, "file not found in graph: "+req.FilePath, nil)
	}

	depth := clampDepth(req.Depth)
	visitedNodes := map[uint64]*graph.Node{root.ID: root}
	var edges []api.EdgeView

	frontier := []uint64{root.ID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []uint64
		for _, id := range frontier {
			for _, dir := range dependencyDirections(req.Direction) {
				mask := graph.MaskFor(api.EdgeImports)
				var neighbors []uint64
				if dir == DirOut {
					neighbors = e.Store.Outgoing(id, mask)
				} else {
					neighbors = e.Store.Incoming(id, mask)
				}
				for _, to := range neighbors {
					n, err := e.Store.GetNode(to)
					if err != nil || (!req.External && n.Kind != graph.NodeFile) {
						continue
					}
					ev := api.EdgeView{Type: api.EdgeImports}
					if dir == DirOut {
						ev.From, ev.To = id, to
					} else {
						ev.From, ev.To = to, id
					}
					edges = append(edges, ev)
					if _, seen := visitedNodes[to]; !seen {
						visitedNodes[to] = n
						next = append(next, to)
					}
				}
			}
		}
		frontier = next
	}

	resp := api.GraphResponse{Root: &root.ID}
	for _, n := range visitedNodes {
		resp.Nodes = append(resp.Nodes, toNodeView(n))
	}
	resp.Edges = dedupEdges(edges)
	return resp, nil
}

type direction int

const (
	DirOut direction = iota
	DirIn
)

func dependencyDirections(d api.Direction) []direction {
	switch d {
	case api.DirImportedBy:
		return []direction{DirIn}
	case api.DirBoth:
		return []direction{DirOut, DirIn}
	default: // api.DirImports and unset
		return []direction{DirOut}
	}
}

func callGraphDirections(d api.Direction) []direction {
	switch d {
	case api.DirCallers:
		return []direction{DirIn}
	case api.DirBoth:
		return []direction{DirOut, DirIn}
	default: // api.DirCallees and unset
		return []direction{DirOut}
	}
}

func dedupEdges(edges []api.EdgeView) []api.EdgeView {
	seen := make(map[[3]any]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		key := [3]any{e.Type, e.From, e.To}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	return out
}
