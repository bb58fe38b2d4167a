package gitmine

import (
	"strings"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/memory"
	"github.com/agentic-research/codegraf/internal/query"
)

// CommitRecord is the shape §4.7 says an external reader supplies:
// "{hash, author, time, message, changed_paths}". Message is the full
// commit message (subject, optionally followed by a blank line and a
// body); splitSubject below pulls the two apart.
type CommitRecord struct {
	Hash         string
	Author       string
	Time         int64
	Message      string
	ChangedPaths []string
}

// Miner classifies commits and turns the ones that pass into Memory
// records, per §4.7's "Git mining" paragraph.
type Miner struct {
	Rules         RuleSet
	MinConfidence float64
	Query         *query.Engine
	Memory        *memory.Store
}

// New constructs a Miner with the built-in rule set. Callers that loaded
// a project-specific RuleSet via LoadRuleSet can overwrite m.Rules.
func New(q *query.Engine, mem *memory.Store, minConfidence float64) *Miner {
	return &Miner{
		Rules:         DefaultRuleSet(),
		MinConfidence: minConfidence,
		Query:         q,
		Memory:        mem,
	}
}

// Mine classifies each commit and stores a memory for every one that
// clears both the rule match and the confidence threshold, returning the
// ids of the memories it created (in commit order). createdAt is the
// timestamp stamped on every created record, since commit Time reflects
// authorship, not when the memory was mined.
func (m *Miner) Mine(commits []CommitRecord, createdAt int64) ([]string, error) {
	var ids []string
	for _, c := range commits {
		id, created, err := m.mineOne(c, createdAt)
		if err != nil {
			return ids, err
		}
		if created {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Miner) mineOne(c CommitRecord, createdAt int64) (string, bool, error) {
	subject, body := splitSubject(c.Message)
	cls, ok := m.Rules.classify(c.Message)
	if !ok || cls.confidence < m.MinConfidence {
		return "", false, nil
	}

	in := api.MemoryRecordInput{
		Kind:       string(cls.kind),
		Title:      subject,
		Content:    body,
		Tags:       []string{"git-mined", c.Hash},
		Confidence: cls.confidence,
		ValidFrom:  c.Time,
		Source:     "git:" + c.Hash,
		CodeLinks:  m.codeLinks(c.ChangedPaths),
	}
	view, err := m.Memory.Put(in, createdAt)
	if err != nil {
		return "", false, err
	}
	return view.ID, true, nil
}

// codeLinks resolves each changed path to its File node, per §4.7's "code
// links are generated from the file paths (resolved to File nodes; a
// path that no longer exists yields no link)". File node ids are
// deterministic (graph.IDFor keyed by path), the same construction
// ingest.Engine uses when it commits a file's node — so resolution is a
// direct lookup, not a search.
func (m *Miner) codeLinks(paths []string) []api.CodeLink {
	if m.Query == nil {
		return nil
	}
	var links []api.CodeLink
	for _, p := range paths {
		id := graph.IDFor(p, graph.NodeFile, p, 0)
		if n, err := m.Query.Store.GetNodeLocked(id); err == nil && n.Kind == graph.NodeFile {
			links = append(links, api.CodeLink{NodeID: id})
		}
	}
	return links
}

// splitSubject separates a commit message's first line from the rest,
// trimming the leading blank line a "subject\n\nbody" message carries.
func splitSubject(message string) (subject, body string) {
	message = strings.TrimRight(message, "\n")
	i := strings.IndexByte(message, '\n')
	if i < 0 {
		return message, ""
	}
	return message[:i], strings.TrimLeft(message[i+1:], "\n")
}
