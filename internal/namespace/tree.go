// Package namespace derives a virtual directory tree from flat, slash-delimited
// object keys and answers path lookups against it. It has no I/O and no
// environment dependencies; the HTTP service and the terminal mirror share it.
package namespace

import (
	"encoding/json"
	"time"
)

// LeafObject is a stored object addressed by its full flat key.
type LeafObject struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
	SizeBytes  *int64    `json:"sizeBytes,omitempty"`
}

// DirectoryNode is a synthetic directory standing for a common key prefix.
// Nodes belong to the tree they were built in and are never patched; a
// refresh produces a new tree.
type DirectoryNode struct {
	Name string
	Path string

	children map[string]*DirectoryNode
	objects  map[string]LeafObject
}

// Stats summarises one build.
type Stats struct {
	Directories int
	Objects     int
	Skipped     int
}

func newNode(name, path string) *DirectoryNode {
	return &DirectoryNode{
		Name:     name,
		Path:     path,
		children: make(map[string]*DirectoryNode),
		objects:  make(map[string]LeafObject),
	}
}

// Build converts a flat listing into a rooted tree. Entries with malformed
// ids are skipped. A repeated id replaces the earlier entry.
func Build(listing []LeafObject) *DirectoryNode {
	root, _ := BuildWithStats(listing)
	return root
}

// BuildWithStats is Build that also reports how many directories and objects
// the tree holds and how many entries were skipped.
func BuildWithStats(listing []LeafObject) (*DirectoryNode, Stats) {
	root := newNode("", "")
	var stats Stats

	for _, obj := range listing {
		segments, ok := splitID(obj.ID)
		if !ok {
			stats.Skipped++
			continue
		}

		node := root
		for _, seg := range segments[:len(segments)-1] {
			child, exists := node.children[seg]
			if !exists {
				child = newNode(seg, joinPath(node.Path, seg))
				node.children[seg] = child
				stats.Directories++
			}
			node = child
		}

		obj.Filename = segments[len(segments)-1]
		if _, dup := node.objects[obj.ID]; !dup {
			stats.Objects++
		}
		node.objects[obj.ID] = obj
	}

	return root, stats
}

// Child returns the immediate child directory with the given name.
func (n *DirectoryNode) Child(name string) (*DirectoryNode, bool) {
	c, ok := n.children[name]
	return c, ok
}

// Children returns the immediate child directories sorted by name.
func (n *DirectoryNode) Children() []*DirectoryNode {
	out := make([]*DirectoryNode, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	sortNodes(out)
	return out
}

// Objects returns the leaf objects attached to this node sorted by filename.
func (n *DirectoryNode) Objects() []LeafObject {
	out := make([]LeafObject, 0, len(n.objects))
	for _, o := range n.objects {
		out = append(out, o)
	}
	sortObjects(out)
	return out
}

// DirectoryCount is the number of immediate child directories.
func (n *DirectoryNode) DirectoryCount() int { return len(n.children) }

// ObjectCount is the number of objects attached directly to this node.
func (n *DirectoryNode) ObjectCount() int { return len(n.objects) }

// Walk visits n and every descendant depth-first, children in name order.
// Returning false from fn skips the node's subtree.
func (n *DirectoryNode) Walk(fn func(node *DirectoryNode, depth int) bool) {
	n.walk(fn, 0)
}

func (n *DirectoryNode) walk(fn func(*DirectoryNode, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children() {
		c.walk(fn, depth+1)
	}
}

// Flatten returns every object in the subtree rooted at n.
func (n *DirectoryNode) Flatten() []LeafObject {
	var out []LeafObject
	n.Walk(func(node *DirectoryNode, _ int) bool {
		out = append(out, node.Objects()...)
		return true
	})
	return out
}

// wireNode is the JSON shape of a tree, as served by the organize endpoint.
type wireNode struct {
	Name        string       `json:"name"`
	Path        string       `json:"path"`
	Directories []wireNode   `json:"directories"`
	Objects     []LeafObject `json:"objects"`
}

func (n *DirectoryNode) wire() wireNode {
	w := wireNode{
		Name:        n.Name,
		Path:        n.Path,
		Directories: make([]wireNode, 0, len(n.children)),
		Objects:     n.Objects(),
	}
	for _, c := range n.Children() {
		w.Directories = append(w.Directories, c.wire())
	}
	return w
}

// MarshalJSON encodes the whole subtree with directories and objects sorted.
func (n *DirectoryNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.wire())
}

// UnmarshalJSON decodes a tree produced by MarshalJSON. The decoded objects
// are run through Build again so the structural invariants hold regardless
// of what the sender claimed for names and paths.
func (n *DirectoryNode) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var listing []LeafObject
	collect(&w, &listing)
	*n = *Build(listing)
	return nil
}

func collect(w *wireNode, out *[]LeafObject) {
	*out = append(*out, w.Objects...)
	for i := range w.Directories {
		collect(&w.Directories[i], out)
	}
}
