// Package fixtureparse turns real Go source into api.ParseResult values
// for integration tests, standing in for the external parser adapter
// §1 places out of scope for the core engine. Grounded on the teacher's
// own tree-sitter query idiom (internal/ingest/sitter_walker.go,
// internal/ingest/engine.go's goPackageQueryObj): compile a query once,
// run it with a fresh sitter.QueryCursor per parse, and read capture
// byte ranges straight out of the source buffer rather than walking the
// tree by hand.
package fixtureparse

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/agentic-research/codegraf/api"
)

var (
	packageQuery = mustQuery(`(package_clause (package_identifier) @pkg)`)
	funcQuery    = mustQuery(`(function_declaration name: (identifier) @name) @func`)
	methodQuery  = mustQuery(`
		(method_declaration
			receiver: (parameter_list
				(parameter_declaration
					type: [
						(pointer_type (type_identifier) @recv)
						(type_identifier) @recv
					]))
			name: (field_identifier) @name) @method
	`)
)

func mustQuery(src string) *sitter.Query {
	q, err := sitter.NewQuery([]byte(src), golang.GetLanguage())
	if err != nil {
		panic(fmt.Sprintf("fixtureparse: invalid built-in query: %v", err))
	}
	return q
}

// ParseGoFile parses content (the contents of a .go file) into a
// ParseResult carrying one symbol per top-level func/method declaration.
// Qualified names are "<package>.<Name>" for functions and
// "<package>.<Receiver>.<Name>" for methods, matching the qualified-name
// shape every other internal/ package assumes symbols carry.
func ParseGoFile(filePath string, content []byte) (api.ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return api.ParseResult{}, fmt.Errorf("fixtureparse: parse %s: %w", filePath, err)
	}
	root := tree.RootNode()

	pkg := firstCapture(packageQuery, root, content, "pkg")
	if pkg == "" {
		pkg = "main"
	}

	result := api.ParseResult{
		FilePath:    filePath,
		LanguageTag: "go",
		ContentHash: contentHash(content),
	}

	result.Symbols = append(result.Symbols, funcSymbols(root, content, pkg)...)
	result.Symbols = append(result.Symbols, methodSymbols(root, content, pkg)...)

	return result, nil
}

func funcSymbols(root *sitter.Node, content []byte, pkg string) []api.ParsedSymbol {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(funcQuery, root)

	var out []api.ParsedSymbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, content)

		var name string
		var scope *sitter.Node
		for _, c := range m.Captures {
			switch funcQuery.CaptureNameForId(c.Index) {
			case "name":
				name = string(content[c.Node.StartByte():c.Node.EndByte()])
			case "func":
				scope = c.Node
			}
		}
		if name == "" || scope == nil {
			continue
		}
		out = append(out, api.ParsedSymbol{
			QualifiedName: pkg + "." + name,
			Kind:          api.KindFunction,
			Visibility:    visibilityOf(name),
			ByteRange:     api.ByteRange{Start: scope.StartByte(), End: scope.EndByte()},
		})
	}
	return out
}

func methodSymbols(root *sitter.Node, content []byte, pkg string) []api.ParsedSymbol {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(methodQuery, root)

	var out []api.ParsedSymbol
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		m = qc.FilterPredicates(m, content)

		var name, recv string
		var scope *sitter.Node
		for _, c := range m.Captures {
			switch methodQuery.CaptureNameForId(c.Index) {
			case "name":
				name = string(content[c.Node.StartByte():c.Node.EndByte()])
			case "recv":
				recv = string(content[c.Node.StartByte():c.Node.EndByte()])
			case "method":
				scope = c.Node
			}
		}
		if name == "" || recv == "" || scope == nil {
			continue
		}
		out = append(out, api.ParsedSymbol{
			QualifiedName: pkg + "." + recv + "." + name,
			Kind:          api.KindMethod,
			Visibility:    visibilityOf(name),
			ByteRange:     api.ByteRange{Start: scope.StartByte(), End: scope.EndByte()},
		})
	}
	return out
}

func firstCapture(query *sitter.Query, root *sitter.Node, content []byte, name string) string {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)
	m, ok := qc.NextMatch()
	if !ok || len(m.Captures) == 0 {
		return ""
	}
	for _, c := range m.Captures {
		if query.CaptureNameForId(c.Index) == name {
			return string(content[c.Node.StartByte():c.Node.EndByte()])
		}
	}
	return ""
}

func visibilityOf(name string) api.Visibility {
	if name != "" && name[0] >= 'A' && name[0] <= 'Z' {
		return api.VisibilityPublic
	}
	return api.VisibilityPrivate
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
