// Package gitmine implements §4.7's "Git mining": turning an externally
// supplied stream of commit records into Memory records. The git log
// reader itself (walking a repository, producing CommitRecord values) is
// explicitly out of scope per §1/§5 non-goals — this package only
// classifies and stores.
package gitmine

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/agentic-research/codegraf/internal/memory"
)

// Rule maps a compiled pattern to the memory Kind a matching commit
// subject/body produces. Patterns are matched against "subject\nbody".
type Rule struct {
	Kind       memory.Kind    `yaml:"-"`
	KindTag    string         `yaml:"kind"`
	Pattern    string         `yaml:"pattern"`
	Confidence float64        `yaml:"confidence"`
	re         *regexp.Regexp `yaml:"-"`
}

// RuleSet is an ordered list of classification rules; the first match
// wins, mirroring the teacher's own "first matching case" style used in
// internal/ingest's file-kind detection.
type RuleSet []Rule

// defaultRules implements the six classifications named in §4.7: fix,
// breaking, revert, feat, deprecation, architectural. Subject lines are
// matched case-insensitively against a conventional-commits-ish prefix,
// falling back to looser keyword matches in the body.
func defaultRules() RuleSet {
	return RuleSet{
		{KindTag: string(memory.KindKnownIssue), Pattern: `(?im)^(revert|revert:)\b`, Confidence: 0.9},
		{KindTag: string(memory.KindKnownIssue), Pattern: `(?im)^(fix|fix:|bugfix:)\b`, Confidence: 0.8},
		{KindTag: string(memory.KindArchitecturalDecision), Pattern: `(?im)BREAKING[ _-]?CHANGE`, Confidence: 0.9},
		{KindTag: string(memory.KindArchitecturalDecision), Pattern: `(?im)^(refactor|refactor:|arch:|architecture:)\b`, Confidence: 0.65},
		{KindTag: string(memory.KindConvention), Pattern: `(?im)^(deprecate|deprecate:|deprecated:)\b`, Confidence: 0.8},
		{KindTag: string(memory.KindProjectContext), Pattern: `(?im)^(feat|feat:|feature:)\b`, Confidence: 0.6},
	}
}

// Compile resolves every rule's pattern and kind tag, validating both. A
// RuleSet loaded from YAML must be compiled before use.
func (rs RuleSet) Compile() (RuleSet, error) {
	out := make(RuleSet, len(rs))
	for i, r := range rs {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("gitmine: rule %d pattern %q: %w", i, r.Pattern, err)
		}
		switch memory.Kind(r.KindTag) {
		case memory.KindDebugContext, memory.KindArchitecturalDecision,
			memory.KindKnownIssue, memory.KindConvention, memory.KindProjectContext:
		default:
			return nil, fmt.Errorf("gitmine: rule %d has unrecognised kind %q", i, r.KindTag)
		}
		r.Kind = memory.Kind(r.KindTag)
		r.re = re
		out[i] = r
	}
	return out, nil
}

// DefaultRuleSet returns the built-in classification rules, compiled.
func DefaultRuleSet() RuleSet {
	rs, err := defaultRules().Compile()
	if err != nil {
		panic("gitmine: default rules failed to compile: " + err.Error())
	}
	return rs
}

// LoadRuleSet reads a YAML rule file of the shape:
//
//	- kind: known-issue
//	  pattern: '(?im)^fix:'
//	- kind: architectural-decision
//	  pattern: 'BREAKING CHANGE'
//
// and compiles it. Used to override the built-in classification rules
// with project-specific conventions.
func LoadRuleSet(raw []byte) (RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("gitmine: decode rule set: %w", err)
	}
	return rs.Compile()
}

// classification is the result of matching a commit against a RuleSet.
type classification struct {
	kind       memory.Kind
	confidence float64
}

// classify returns the first rule matching text, or false if no rule
// matches.
func (rs RuleSet) classify(text string) (classification, bool) {
	for _, r := range rs {
		if r.re.MatchString(text) {
			return classification{kind: r.Kind, confidence: r.Confidence}, true
		}
	}
	return classification{}, false
}
