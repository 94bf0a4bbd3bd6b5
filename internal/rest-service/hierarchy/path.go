// Package hierarchy holds the materialized-path rules of the directory tree.
//
// A directory stores the path of its parent ("Docs/2024/") and its own name.
// Top-level directories have no stored path, the company root has class 0 and
// no remote counterpart.
package hierarchy

import "strings"

const (
	// RootClass is the directory_class of the per-company root.
	RootClass = 0
	// Separator joins directory names in a materialized path.
	Separator = "/"
)

// Node is the part of a directory row that determines its place in the tree.
type Node struct {
	Path  *string
	Name  string
	Class int
}

// ResolvePath returns the full remote path of n and its depth.
// ok is false for the company root.
func ResolvePath(n Node) (p string, depth int, ok bool) {
	if n.Class == RootClass {
		return "", RootClass, false
	}
	var prefix string
	if n.Path != nil {
		prefix = *n.Path
	}
	return prefix + n.Name + Separator, n.Class, true
}

// ChildPath is the path children of parent are stored under.
func ChildPath(parent Node) string {
	p, _, ok := ResolvePath(parent)
	if !ok {
		return ""
	}
	return p
}

// ChildClass derives the depth of a node created under childPath.
func ChildClass(childPath string) int {
	return strings.Count(childPath, Separator) + 1
}

// StoredPath converts a child path to the nullable column value.
func StoredPath(childPath string) *string {
	if childPath == "" {
		return nil
	}
	return &childPath
}

// IsDescendantPath reports whether a node stored under candidate lives below
// the directory whose full path is ancestor.
func IsDescendantPath(candidate *string, ancestor string) bool {
	if candidate == nil || ancestor == "" {
		return false
	}
	return strings.HasPrefix(*candidate, ancestor)
}

// RewritePrefix moves a stored path from under oldPrefix to under newPrefix.
func RewritePrefix(p, oldPrefix, newPrefix string) string {
	if !strings.HasPrefix(p, oldPrefix) {
		return p
	}
	return newPrefix + strings.TrimPrefix(p, oldPrefix)
}

// ValidName reports whether name can be a path segment. Leading or trailing
// white space is rejected.
func ValidName(name string) bool {
	if name == "" || strings.TrimSpace(name) != name {
		return false
	}
	return name != "." && name != ".." && !strings.Contains(name, Separator)
}
