package query

import (
	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// godModuleSymbolThreshold and fanInHubThreshold are the fixed violation
// thresholds of §4.6.5; large workspaces may want these tunable, but the
// spec does not make them an Open Question so they stay constants here.
const (
	godModuleSymbolThreshold = 40
	fanInHubThreshold        = 25
)

// Coupling answers §4.6.5: efferent/afferent coupling, instability and a
// cohesion estimate for one file, plus workspace-wide structural
// violations (cyclic imports, god modules, fan-in hubs) detected while
// computing it.
func (e *Engine) Coupling(req api.CouplingRequest) (api.CouplingResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	root, ok := e.fileNodeByPath(req.FilePath)
	if !ok {
		return api.CouplingResponse{}, api.NewError(api.ErrNotFound, "file not found in graph: "+req.FilePath, nil)
	}

	efferent := len(dedupIDs(e.Store.Outgoing(root.ID, graph.MaskFor(api.EdgeImports))))
	afferent := len(dedupIDs(e.Store.Incoming(root.ID, graph.MaskFor(api.EdgeImports))))

	instability := 0.0
	if total := efferent + afferent; total > 0 {
		instability = float64(efferent) / float64(total)
	}

	resp := api.CouplingResponse{
		FilePath:    req.FilePath,
		Efferent:    efferent,
		Afferent:    afferent,
		Instability: instability,
		Cohesion:    e.cohesion(req.FilePath),
	}

	symbolCount := len(e.nodesInFile(req.FilePath))
	if symbolCount > godModuleSymbolThreshold {
		resp.Violations = append(resp.Violations, api.Violation{
			Kind:   "god_module",
			Files:  []string{req.FilePath},
			Detail: "file defines more symbols than a single module should reasonably own",
		})
	}
	if afferent > fanInHubThreshold {
		resp.Violations = append(resp.Violations, api.Violation{
			Kind:   "fan_in_hub",
			Files:  []string{req.FilePath},
			Detail: "file is imported by an unusually large number of other files",
		})
	}
	if cycle, ok := e.findImportCycleThrough(root.ID); ok {
		resp.Violations = append(resp.Violations, api.Violation{
			Kind:   "cyclic_import",
			Files:  cycle,
			Detail: "import graph contains a cycle including this file",
		})
	}

	return resp, nil
}

// cohesion estimates LCOM-style cohesion as the fraction of symbol pairs
// in the file that share at least one call/reference edge — a cheap
// proxy that needs no language-specific notion of "member" to compute.
func (e *Engine) cohesion(filePath string) float64 {
	ids := e.nodesInFile(filePath)
	var symbolIDs []uint64
	for _, id := range ids {
		n, err := e.Store.GetNode(id)
		if err == nil && n.Kind == graph.NodeSymbol {
			symbolIDs = append(symbolIDs, id)
		}
	}
	if len(symbolIDs) < 2 {
		return 1.0
	}
	inFile := make(map[uint64]bool, len(symbolIDs))
	for _, id := range symbolIDs {
		inFile[id] = true
	}

	connected := 0
	total := 0
	mask := graph.MaskFor(api.EdgeCalls, api.EdgeReferences)
	for i, a := range symbolIDs {
		related := make(map[uint64]bool)
		for _, to := range e.Store.Outgoing(a, mask) {
			related[to] = true
		}
		for _, from := range e.Store.Incoming(a, mask) {
			related[from] = true
		}
		for _, b := range symbolIDs[i+1:] {
			total++
			if related[b] {
				connected++
			}
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(connected) / float64(total)
}

// findImportCycleThrough does a bounded DFS looking for a path back to
// start via import edges, returning the file paths on the cycle if found.
func (e *Engine) findImportCycleThrough(start uint64) ([]string, bool) {
	mask := graph.MaskFor(api.EdgeImports)
	visited := map[uint64]bool{}
	var path []uint64

	var dfs func(id uint64, depth int) bool
	dfs = func(id uint64, depth int) bool {
		if depth > maxDepth {
			return false
		}
		if id == start && len(path) > 0 {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		path = append(path, id)
		for _, to := range e.Store.Outgoing(id, mask) {
			if to == start && len(path) > 0 {
				path = append(path, to)
				return true
			}
			if dfs(to, depth+1) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	for _, to := range e.Store.Outgoing(start, mask) {
		path = []uint64{start}
		visited = map[uint64]bool{}
		if dfs(to, 1) {
			var out []string
			for _, id := range path {
				if n, err := e.Store.GetNode(id); err == nil {
					out = append(out, n.FilePath)
				}
			}
			return out, true
		}
	}
	return nil, false
}
