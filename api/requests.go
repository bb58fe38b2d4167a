package api

// RequestKind tags the variant of a Request, doubling as the LSP command
// name and the MCP tool name (§6).
type RequestKind string

const (
	ReqDependencyGraph RequestKind = "dependencyGraph"
	ReqCallGraph        RequestKind = "callGraph"
	ReqAnalyzeImpact    RequestKind = "analyzeImpact"
	ReqFindUnusedCode   RequestKind = "findUnusedCode"
	ReqCoupling         RequestKind = "coupling"
	ReqEntryPoints      RequestKind = "entryPoints"
	ReqSignatureSearch  RequestKind = "signatureSearch"
	ReqComplexity       RequestKind = "complexity"
	ReqTextSearch       RequestKind = "textSearch"
	ReqMemoryStore      RequestKind = "memoryStore"
	ReqMemorySearch     RequestKind = "memorySearch"
	ReqMemoryGet        RequestKind = "memoryGet"
	ReqMemoryContext    RequestKind = "memoryContext"
	ReqIngest           RequestKind = "ingest"
	ReqFileRemoved      RequestKind = "fileRemoved"
)

// Direction is shared by dependency-graph and call-graph requests.
type Direction string

const (
	DirImports    Direction = "imports"
	DirImportedBy Direction = "imported-by"
	DirCallers    Direction = "callers"
	DirCallees    Direction = "callees"
	DirBoth       Direction = "both"
)

// ChangeKind is the kind of change analyzeImpact is asked to reason about.
type ChangeKind string

const (
	ChangeModify ChangeKind = "modify"
	ChangeDelete ChangeKind = "delete"
	ChangeRename ChangeKind = "rename"
)

// Scope bounds unused-code detection.
type Scope string

const (
	ScopeFile      Scope = "file"
	ScopeModule    Scope = "module"
	ScopeWorkspace Scope = "workspace"
)

// Severity orders as breaking > warning > info (§4.6.3).
type Severity string

const (
	SeverityBreaking Severity = "breaking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

var severityRank = map[Severity]int{SeverityInfo: 0, SeverityWarning: 1, SeverityBreaking: 2}

// Less reports whether a ranks below b (for sorting worst-first, reverse it).
func (a Severity) Less(b Severity) bool { return severityRank[a] < severityRank[b] }

// DependencyGraphRequest is §4.6.1's input.
type DependencyGraphRequest struct {
	FilePath string    `json:"file_path"`
	Depth    int       `json:"depth"`
	Direction Direction `json:"direction"`
	External bool      `json:"external"`
}

// CallGraphRequest is §4.6.2's input.
type CallGraphRequest struct {
	FilePath  string    `json:"file_path"`
	Position  uint32    `json:"position"`
	Depth     int       `json:"depth"`
	Direction Direction `json:"direction"`
}

// ImpactRequest is §4.6.3's input.
type ImpactRequest struct {
	SymbolID   uint64     `json:"symbol_id"`
	ChangeKind ChangeKind `json:"change_kind"`
}

// UnusedCodeRequest is §4.6.4's input.
type UnusedCodeRequest struct {
	Scope          Scope   `json:"scope"`
	ScopePath      string  `json:"scope_path,omitempty"`
	MinConfidence  float64 `json:"min_confidence"`
}

// CouplingRequest is §4.6.5's input.
type CouplingRequest struct {
	FilePath string `json:"file_path"`
}

// EntryPointsRequest is §4.6.6's input.
type EntryPointsRequest struct {
	ScopePath string `json:"scope_path,omitempty"`
}

// SignatureSearchRequest is §4.6.7's input.
type SignatureSearchRequest struct {
	NamePattern    string     `json:"name_pattern,omitempty"`
	MinArity       *int       `json:"min_arity,omitempty"`
	MaxArity       *int       `json:"max_arity,omitempty"`
	ReturnTypeSubstr string   `json:"return_type_substr,omitempty"`
	Modifiers      []Modifier `json:"modifiers,omitempty"`
}

// ComplexityRequest is §4.6.8's input. FilePath scopes to one file; empty
// scopes to the whole workspace summary.
type ComplexityRequest struct {
	FilePath string `json:"file_path,omitempty"`
}

// TextSearchRequest drives C5 directly.
type TextSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// MemoryRecordInput is the caller-supplied shape for storing a memory.
type MemoryRecordInput struct {
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags,omitempty"`
	Confidence float64   `json:"confidence"`
	ValidFrom  int64      `json:"valid_from"`
	ValidUntil *int64     `json:"valid_until,omitempty"`
	CodeLinks  []CodeLink `json:"code_links,omitempty"`
	Source     string     `json:"source,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// CodeLink ties a memory back to a graph node.
type CodeLink struct {
	NodeID uint64     `json:"node_id"`
	Kind   SymbolKind `json:"kind"`
}

// MemorySearchRequest is §4.7's hybrid-retrieval input.
type MemorySearchRequest struct {
	Query       string    `json:"query,omitempty"`
	QueryVector []float32 `json:"query_vector,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Kinds       []string  `json:"kinds,omitempty"`
	CurrentOnly bool      `json:"current_only"`
	Limit       int       `json:"limit"`
}

// MemoryContextRequest resolves "memories relevant to file F (optionally a
// position)".
type MemoryContextRequest struct {
	FilePath string `json:"file_path"`
	Position *uint32 `json:"position,omitempty"`
}
