package namespace

import (
	"errors"
	"strings"
)

// Separator delimits segments of a flat key.
const Separator = "/"

// ErrMalformedID is returned when an object id cannot be placed in the tree.
var ErrMalformedID = errors.New("malformed object id")

// Crumb is one step of a breadcrumb trail.
type Crumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Segments splits a directory path into its non-empty segments, so "a//b",
// "a/b/" and "/a/b" all yield ["a", "b"].
func Segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, Separator) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Clean returns the canonical form of a directory path.
func Clean(path string) string {
	return strings.Join(Segments(path), Separator)
}

// AncestorChain lists the (name, path) pairs from the root down to path.
// The root itself is not part of the chain, so "" yields an empty chain.
func AncestorChain(path string) []Crumb {
	segs := Segments(path)
	chain := make([]Crumb, 0, len(segs))
	current := ""
	for _, s := range segs {
		current = joinPath(current, s)
		chain = append(chain, Crumb{Name: s, Path: current})
	}
	return chain
}

// IsAncestorOrSelf reports whether path equals candidate or lies beneath it.
// The match is on whole segments: "ab" is not an ancestor of "abc/x".
func IsAncestorOrSelf(candidate, path string) bool {
	if candidate == "" || path == candidate {
		return true
	}
	return strings.HasPrefix(path, candidate+Separator)
}

// Parent returns the directory portion of a path ("" for top-level entries).
func Parent(path string) string {
	segs := Segments(path)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], Separator)
}

// ObjectID composes the id an object named filename gets inside dir.
func ObjectID(dir, filename string) (string, error) {
	if strings.Contains(filename, Separator) {
		return "", ErrMalformedID
	}
	id := joinPath(Clean(dir), filename)
	if !ValidID(id) {
		return "", ErrMalformedID
	}
	return id, nil
}

// ValidID reports whether id can be attached to the tree.
func ValidID(id string) bool {
	_, ok := splitID(id)
	return ok
}

// splitID splits an object id into segments, rejecting empty ids, empty
// segments and dot segments.
func splitID(id string) ([]string, bool) {
	if id == "" {
		return nil, false
	}
	segs := strings.Split(id, Separator)
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return nil, false
		}
	}
	return segs, true
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + Separator + name
}
