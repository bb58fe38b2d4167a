package memory

import "github.com/agentic-research/codegraf/api"

// Kind enumerates the memory classifications of §4.7.
type Kind string

const (
	KindDebugContext          Kind = "debug-context"
	KindArchitecturalDecision Kind = "architectural-decision"
	KindKnownIssue            Kind = "known-issue"
	KindConvention            Kind = "convention"
	KindProjectContext        Kind = "project-context"
)

// Record is the durable shape of a Memory: a stable UUID, free-text body,
// validity lifecycle and optional links back into the code graph.
type Record struct {
	ID         string     `json:"id"`
	Kind       Kind       `json:"kind"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Tags       []string   `json:"tags,omitempty"`
	Confidence float64    `json:"confidence"`
	CreatedAt  int64      `json:"created_at"`
	ValidFrom  int64      `json:"valid_from"`
	ValidUntil *int64     `json:"valid_until,omitempty"`
	IsCurrent  bool       `json:"is_current"`
	CodeLinks  []api.CodeLink `json:"code_links,omitempty"`
	Source     string     `json:"source,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
}

// View projects a Record to its caller-facing api.MemoryView, dropping the
// embedding (callers never need it back, only the retrieval score it fed).
func (r *Record) View() api.MemoryView {
	return api.MemoryView{
		ID:         r.ID,
		Kind:       string(r.Kind),
		Title:      r.Title,
		Content:    r.Content,
		Tags:       r.Tags,
		Confidence: r.Confidence,
		CreatedAt:  r.CreatedAt,
		ValidFrom:  r.ValidFrom,
		ValidUntil: r.ValidUntil,
		IsCurrent:  r.IsCurrent,
		CodeLinks:  r.CodeLinks,
		Source:     r.Source,
	}
}
