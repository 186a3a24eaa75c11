package namespace

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// ErrNotFound is returned when a path does not name a directory in the tree.
// It is an ordinary negative result, distinct from an empty directory.
var ErrNotFound = errors.New("directory not found")

// DirectorySummary describes an immediate child directory in a Listing.
type DirectorySummary struct {
	Name           string `json:"name"`
	Path           string `json:"path"`
	DirectoryCount int    `json:"directoryCount"`
	ObjectCount    int    `json:"objectCount"`
}

// Listing is the one-level view of a directory.
type Listing struct {
	Path        string             `json:"path"`
	Directories []DirectorySummary `json:"directories"`
	Objects     []LeafObject       `json:"objects"`
}

// Empty reports whether the directory has neither subdirectories nor objects.
func (l Listing) Empty() bool {
	return len(l.Directories) == 0 && len(l.Objects) == 0
}

// Lookup descends from root one segment at a time and returns the directory
// node at path. Only directory nodes are traversed, so an object id never
// resolves.
func Lookup(root *DirectoryNode, path string) (*DirectoryNode, error) {
	if root == nil {
		return nil, ErrNotFound
	}
	node := root
	for _, seg := range Segments(path) {
		child, ok := node.children[seg]
		if !ok {
			return nil, ErrNotFound
		}
		node = child
	}
	return node, nil
}

// Resolve returns the listing of the directory at path.
func Resolve(root *DirectoryNode, path string) (Listing, error) {
	node, err := Lookup(root, path)
	if err != nil {
		return Listing{}, err
	}
	return node.Listing(), nil
}

// Listing returns the node's immediate directories and objects, sorted.
func (n *DirectoryNode) Listing() Listing {
	children := n.Children()
	l := Listing{
		Path:        n.Path,
		Directories: make([]DirectorySummary, 0, len(children)),
		Objects:     n.Objects(),
	}
	for _, c := range children {
		l.Directories = append(l.Directories, DirectorySummary{
			Name:           c.Name,
			Path:           c.Path,
			DirectoryCount: c.DirectoryCount(),
			ObjectCount:    c.ObjectCount(),
		})
	}
	return l
}

// collator is not safe for concurrent use; callers build one per sort.
func newCollator() *collate.Collator {
	return collate.New(language.Und)
}

// compareNames orders names the way a human reads them, falling back to
// byte order so the result is total.
func compareNames(c *collate.Collator, a, b string) int {
	if r := c.CompareString(a, b); r != 0 {
		return r
	}
	return strings.Compare(a, b)
}

func sortNodes(nodes []*DirectoryNode) {
	c := newCollator()
	sort.Slice(nodes, func(i, j int) bool {
		return compareNames(c, nodes[i].Name, nodes[j].Name) < 0
	})
}

func sortObjects(objs []LeafObject) {
	c := newCollator()
	sort.Slice(objs, func(i, j int) bool {
		if r := compareNames(c, objs[i].Filename, objs[j].Filename); r != 0 {
			return r < 0
		}
		return objs[i].ID < objs[j].ID
	})
}
