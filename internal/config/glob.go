package config

import "path"

// matchGlob matches pattern against name using the shell-glob semantics of
// path.Match. Exclude-glob evaluation is a single stdlib call; nothing in
// the pack wires a third-party glob matcher against a real call site (the
// only matches are transitive entries in unrelated manifests' go.sum), so
// this stays on the standard library rather than adopting one for show.
func matchGlob(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}
