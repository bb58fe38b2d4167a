// Package graph implements C2: the typed node/edge store with secondary
// indexes and persistent backing (§3, §4.2).
//
// The store design generalizes the teacher's MemoryStore
// (agentic-research/mache internal/graph.MemoryStore): same roaring-bitmap
// adjacency trick used there for file->node lookups is reused here for
// edge adjacency in both directions, parameterised by edge type rather
// than hard-coded to one "refs" relation.
package graph

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/agentic-research/codegraf/api"
)

// NodeKind discriminates the four node variants of §3.
type NodeKind string

const (
	NodeFile           NodeKind = "file"
	NodeModule         NodeKind = "module"
	NodeSymbol         NodeKind = "symbol"
	NodeExternalSymbol NodeKind = "external_symbol"
)

// Node is the universal graph primitive. Not every field applies to every
// NodeKind; see the per-kind comments. This mirrors the teacher's single
// Node struct with a Mode discriminator (internal/graph.Node), generalized
// from "file or directory" to the four kinds of §3.
type Node struct {
	ID   uint64
	Kind NodeKind

	// File fields.
	FilePath    string
	Language    string
	ContentHash string
	LastParsed  uint64 // graph epoch at last parse

	// Module fields.
	ParentFileID   uint64
	ParentModuleID uint64

	// Symbol / ExternalSymbol fields.
	Name          string
	QualifiedName string
	SymbolKind    api.SymbolKind
	DefiningFile  uint64
	ByteRange     api.ByteRange
	Signature     string
	Docstring     string
	Visibility    api.Visibility
	Modifiers     map[api.Modifier]struct{}
	Complexity    api.ComplexityMetrics
	Params        []api.Param
	ReturnType    string

	// internal bookkeeping
	ord uint32 // dense ordinal used for roaring-bitmap membership
}

// HasModifier reports whether m is set on the node.
func (n *Node) HasModifier(m api.Modifier) bool {
	_, ok := n.Modifiers[m]
	return ok
}

// IDFor computes the stable 64-bit node id of §3:
// hash(file_path, kind, qualified_name, start_byte).
//
// Grounded on the teacher's own use of crypto/sha256 for stable content
// hashes (cmd/agent.go generateMountName truncates a sha256 digest for a
// mount-name suffix); no third-party 64-bit hash is part of this repo's
// dependency footprint, so stdlib sha256 truncation is used here too.
func IDFor(filePath string, kind NodeKind, qualifiedName string, startByte uint32) uint64 {
	h := sha256.New()
	_, _ = h.Write([]byte(filePath))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(kind))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(qualifiedName))
	_, _ = h.Write([]byte{0})
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], startByte)
	_, _ = h.Write(b[:])
	sum := h.Sum(nil)
	return binary.LittleEndian.Uint64(sum[:8])
}

// Edge is a directed, typed relation between two live node ids.
type Edge struct {
	Type      api.EdgeType
	From      uint64
	To        uint64
	CallSites []api.ByteRange
}

// PendingReference is an unresolved call/use target kept on the per-file
// side table of §3/§4.4, keyed for retry by the resolver.
type PendingReference struct {
	OriginFileID uint64
	CallSite     api.ByteRange
	FromQName    string
	TargetQName  string
	EdgeType     api.EdgeType // calls or references
	// ArgCount mirrors api.UnresolvedCall.ArgCount: nil when arity wasn't
	// available at the call site, otherwise the resolver's ranking factor
	// (c) compares it against a candidate's declared parameter count.
	ArgCount *int
}
