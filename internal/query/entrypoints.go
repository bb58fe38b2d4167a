package query

import (
	"sort"
	"strings"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// entryPointRule is one recognized classification of §4.6.6.
// entryPointRules is checked in order; the first match wins.
type entryPointRule struct {
	typ    string
	match  func(n *graph.Node) (route, method string, ok bool)
}

var entryPointRules = []entryPointRule{
	{typ: "http_handler", match: matchHTTPHandler},
	{typ: "cli_command", match: matchCLICommand},
	{typ: "main", match: matchMain},
	{typ: "test", match: matchTest},
}

// EntryPoints answers §4.6.6: symbols classified as externally-invoked
// surfaces (HTTP handlers, CLI commands, main functions, test functions)
// rather than discovered via explicit framework registration, since the
// graph has no notion of a web framework's routing table.
func (e *Engine) EntryPoints(req api.EntryPointsRequest) (api.EntryPointsResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	var candidateIDs []uint64
	if req.ScopePath != "" {
		candidateIDs = e.nodesInFile(req.ScopePath)
	} else {
		candidateIDs = append(candidateIDs, e.Store.BySymbolKind(api.KindFunction)...)
		candidateIDs = append(candidateIDs, e.Store.BySymbolKind(api.KindMethod)...)
	}

	var resp api.EntryPointsResponse
	for _, id := range dedupIDs(candidateIDs) {
		n, err := e.Store.GetNode(id)
		if err != nil || n.Kind != graph.NodeSymbol {
			continue
		}
		for _, rule := range entryPointRules {
			route, method, ok := rule.match(n)
			if !ok {
				continue
			}
			resp.Items = append(resp.Items, api.EntryPoint{
				Node:   toNodeView(n),
				Type:   rule.typ,
				Route:  route,
				Method: method,
			})
			break
		}
	}

	sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].Node.ID < resp.Items[j].Node.ID })
	return resp, nil
}

var httpMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// matchHTTPHandler recognizes the common (w, r) / (req, res) handler
// signature shape, tagging the method from the function name when one of
// the standard verbs appears anywhere in the upper-cased name (e.g.
// "handleGetUser", "PostComment").
func matchHTTPHandler(n *graph.Node) (string, string, bool) {
	if len(n.Params) != 2 {
		return "", "", false
	}
	sig := strings.ToLower(n.Signature)
	if !strings.Contains(sig, "request") && !strings.Contains(sig, "writer") && !strings.Contains(sig, "context") {
		return "", "", false
	}
	method := ""
	upper := strings.ToUpper(n.Name)
	for _, m := range httpMethods {
		if strings.Contains(upper, m) {
			method = m
			break
		}
	}
	if method == "" && !strings.Contains(strings.ToLower(n.Name), "handle") {
		return "", "", false
	}
	return "", method, true
}

func matchCLICommand(n *graph.Node) (string, string, bool) {
	lower := strings.ToLower(n.Name)
	if strings.HasPrefix(lower, "run") || strings.HasSuffix(lower, "command") || strings.HasPrefix(lower, "cmd") {
		return n.Name, "", true
	}
	return "", "", false
}

func matchMain(n *graph.Node) (string, string, bool) {
	if n.Name == "main" && n.SymbolKind == api.KindFunction {
		return "", "", true
	}
	return "", "", false
}

func matchTest(n *graph.Node) (string, string, bool) {
	if isTestSymbol(n) {
		return "", "", true
	}
	return "", "", false
}
