// Package mirror holds a client-side copy of the namespace tree and lets a UI
// navigate it locally. Every view is derived from the current path through
// namespace.Resolve and namespace.AncestorChain; the only state transition
// the UI drives is Navigate.
package mirror

import (
	"context"
	"errors"
	"sync"

	"github.com/dinomatic/media/internal/namespace"
)

// ErrNoTree is returned by Resolve before the first successful fetch.
var ErrNoTree = errors.New("tree not loaded")

// Fetcher retrieves a complete tree, typically over the network.
type Fetcher func(ctx context.Context) (*namespace.DirectoryNode, error)

// Row is one visible line of the directory sidebar.
type Row struct {
	Name        string
	Path        string
	Depth       int
	HasChildren bool
	Expanded    bool
	// Active marks the row of the current path; InPath marks its ancestors.
	Active      bool
	InPath      bool
	ObjectCount int
}

// View is everything a UI needs to render the current location.
type View struct {
	Path    string
	Crumbs  []namespace.Crumb
	Listing namespace.Listing
	// Found is false when the current path no longer exists in the tree; the
	// listing is then empty.
	Found bool
	Stale bool
}

// Mirror is a locally held tree plus navigation state.
//
// Refresh replaces the tree in one swap. Reads issued while a refresh is in
// flight see the previous tree, and a refresh that was overtaken by a later
// one is dropped.
type Mirror struct {
	fetch Fetcher

	mu        sync.RWMutex
	tree      *namespace.DirectoryNode
	seq       uint64 // refreshes started
	applied   uint64 // refresh whose tree is installed
	invalidAt uint64 // trees from refreshes up to here predate a mutation
	lastErr   error

	current   string
	overrides map[string]bool
}

// New returns an empty Mirror that loads trees with fetch.
func New(fetch Fetcher) *Mirror {
	return &Mirror{
		fetch:     fetch,
		overrides: make(map[string]bool),
	}
}

// Refresh fetches a full tree and installs it unless a later refresh has
// already landed. On failure the previous tree is kept and the error is
// returned.
func (m *Mirror) Refresh(ctx context.Context) error {
	m.mu.Lock()
	m.seq++
	mine := m.seq
	m.mu.Unlock()

	tree, err := m.fetch(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if mine < m.applied {
		return nil
	}
	if err != nil {
		m.lastErr = err
		return err
	}
	m.tree = tree
	m.applied = mine
	m.lastErr = nil
	return nil
}

// Invalidate marks the tree as predating a mutation. It keeps serving reads
// until the next Refresh lands.
func (m *Mirror) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidAt = m.seq
}

// Stale reports whether the tree must be re-fetched.
func (m *Mirror) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale()
}

func (m *Mirror) stale() bool {
	return m.tree == nil || m.applied <= m.invalidAt
}

// Loaded reports whether any tree has been installed.
func (m *Mirror) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree != nil
}

// Err returns the error of the last failed refresh, cleared by a successful one.
func (m *Mirror) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// DismissErr clears the last refresh error.
func (m *Mirror) DismissErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil
}

// Resolve answers a path query against the local tree.
func (m *Mirror) Resolve(path string) (namespace.Listing, error) {
	m.mu.RLock()
	tree := m.tree
	m.mu.RUnlock()
	if tree == nil {
		return namespace.Listing{}, ErrNoTree
	}
	return namespace.Resolve(tree, path)
}

// AncestorChain returns the breadcrumb trail for path.
func (m *Mirror) AncestorChain(path string) []namespace.Crumb {
	return namespace.AncestorChain(path)
}

// IsAncestorOrSelf reports whether path is candidate or lies beneath it.
func (m *Mirror) IsAncestorOrSelf(candidate, path string) bool {
	return namespace.IsAncestorOrSelf(candidate, path)
}

// Current returns the path the UI is on.
func (m *Mirror) Current() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Navigate moves to path. Any override that had collapsed the new path or
// one of its ancestors is dropped so the active branch stays visible.
func (m *Mirror) Navigate(path string) {
	path = namespace.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = path
	for p, open := range m.overrides {
		if !open && namespace.IsAncestorOrSelf(p, path) {
			delete(m.overrides, p)
		}
	}
}

// Up navigates to the parent of the current path.
func (m *Mirror) Up() {
	m.Navigate(namespace.Parent(m.Current()))
}

// Expanded reports whether the sidebar shows the children of nodePath.
func (m *Mirror) Expanded(nodePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.expanded(nodePath)
}

func (m *Mirror) expanded(nodePath string) bool {
	if open, ok := m.overrides[nodePath]; ok {
		return open
	}
	return namespace.IsAncestorOrSelf(nodePath, m.current)
}

// Toggle flips the expansion of nodePath.
func (m *Mirror) Toggle(nodePath string) {
	nodePath = namespace.Clean(nodePath)
	m.mu.Lock()
	defer m.mu.Unlock()
	want := !m.expanded(nodePath)
	if want == namespace.IsAncestorOrSelf(nodePath, m.current) {
		delete(m.overrides, nodePath)
		return
	}
	m.overrides[nodePath] = want
}

// View derives breadcrumb and listing for the current path. A path that does
// not resolve yields an empty listing with Found unset.
func (m *Mirror) View() View {
	m.mu.RLock()
	tree, current, stale := m.tree, m.current, m.stale()
	m.mu.RUnlock()

	v := View{
		Path:    current,
		Crumbs:  namespace.AncestorChain(current),
		Listing: namespace.Listing{Path: current},
		Stale:   stale,
	}
	if l, err := namespace.Resolve(tree, current); err == nil {
		v.Listing = l
		v.Found = true
	}
	return v
}

// Rows flattens the visible part of the tree for a sidebar, starting with
// the root at depth 0.
func (m *Mirror) Rows() []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.tree == nil {
		return nil
	}

	var rows []Row
	m.tree.Walk(func(n *namespace.DirectoryNode, depth int) bool {
		open := n.Path == "" || m.expanded(n.Path)
		rows = append(rows, Row{
			Name:        n.Name,
			Path:        n.Path,
			Depth:       depth,
			HasChildren: n.DirectoryCount() > 0,
			Expanded:    open,
			Active:      n.Path == m.current,
			InPath:      n.Path != m.current && namespace.IsAncestorOrSelf(n.Path, m.current),
			ObjectCount: n.ObjectCount(),
		})
		return open
	})
	return rows
}
