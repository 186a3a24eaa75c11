// Package browser is a terminal UI for the media namespace. It holds a local
// mirror of the directory tree and renders a sidebar, breadcrumb and content
// list from it.
package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dinomatic/media/internal/mirror"
	"github.com/dinomatic/media/internal/namespace"
)

// API is the part of the media API the browser uses.
type API interface {
	Tree(ctx context.Context) (*namespace.DirectoryNode, error)
	Upload(ctx context.Context, dir, filename string, r io.Reader) (namespace.LeafObject, error)
	Delete(ctx context.Context, id string) error
	ObjectURL(id string) string
}

// ViewMode represents the current view mode
type ViewMode int

const (
	ViewBrowser ViewMode = iota
	ViewDetail
	ViewUpload
	ViewHelp
)

type pane int

const (
	paneContent pane = iota
	paneSidebar
)

// LocalItem represents a local file or directory offered for upload.
type LocalItem struct {
	Name  string
	IsDir bool
	Size  int64
}

// entry is one line of the content list: a directory or an object.
type entry struct {
	dir *namespace.DirectorySummary
	obj *namespace.LeafObject
}

// Model represents the application state
type Model struct {
	api    API
	mirror *mirror.Mirror
	title  string

	viewMode      ViewMode
	focus         pane
	sidebarCursor int
	contentCursor int
	detail        *namespace.LeafObject

	localItems  []LocalItem
	localPath   string
	localCursor int

	err           error
	statusMessage string
	loading       bool
	width         int
	height        int
}

// Messages for async operations
type treeLoadedMsg struct {
	err error
}

type objectUploadedMsg struct {
	filename string
	err      error
}

type objectDeletedMsg struct {
	id  string
	err error
}

type localFilesLoadedMsg struct {
	items []LocalItem
	path  string
	err   error
}

// NewModel creates a browser for api. title is shown in the header.
func NewModel(api API, title string) Model {
	return Model{
		api:     api,
		mirror:  mirror.New(api.Tree),
		title:   title,
		loading: true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.refresh()
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch m.viewMode {
		case ViewBrowser:
			return m.updateBrowser(msg)
		case ViewDetail:
			return m.updateDetail(msg)
		case ViewUpload:
			return m.updateUpload(msg)
		case ViewHelp:
			return m.updateHelp(msg)
		}

	case treeLoadedMsg:
		m.loading = false
		// A failed refresh keeps the previous tree; the mirror holds the error
		// for the banner.
		m.clampCursors()
		m.syncSidebar()
		return m, nil

	case objectUploadedMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			m.statusMessage = ""
			return m, nil
		}
		m.err = nil
		m.statusMessage = fmt.Sprintf("✓ Uploaded '%s'", msg.filename)
		m.mirror.Invalidate()
		return m, m.refresh()

	case objectDeletedMsg:
		if msg.err != nil {
			m.loading = false
			m.err = msg.err
			m.statusMessage = ""
			return m, nil
		}
		m.err = nil
		m.statusMessage = fmt.Sprintf("✓ Deleted '%s'", msg.id)
		m.mirror.Invalidate()
		return m, m.refresh()

	case localFilesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.localItems = msg.items
		m.localPath = msg.path
		m.localCursor = 0
		m.viewMode = ViewUpload
		return m, nil
	}

	return m, nil
}

// updateBrowser handles browser view updates
func (m Model) updateBrowser(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "tab":
		if m.focus == paneContent {
			m.focus = paneSidebar
			m.syncSidebar()
		} else {
			m.focus = paneContent
		}

	case "up", "k":
		if m.focus == paneSidebar {
			if m.sidebarCursor > 0 {
				m.sidebarCursor--
			}
		} else if m.contentCursor > 0 {
			m.contentCursor--
		}

	case "down", "j":
		if m.focus == paneSidebar {
			if m.sidebarCursor < len(m.mirror.Rows())-1 {
				m.sidebarCursor++
			}
		} else if m.contentCursor < len(m.entries())-1 {
			m.contentCursor++
		}

	case "enter", "l", "o":
		if m.focus == paneSidebar {
			rows := m.mirror.Rows()
			if m.sidebarCursor < len(rows) {
				m.navigate(rows[m.sidebarCursor].Path)
			}
			return m, nil
		}
		entries := m.entries()
		if m.contentCursor >= len(entries) {
			return m, nil
		}
		if e := entries[m.contentCursor]; e.dir != nil {
			m.navigate(e.dir.Path)
		} else {
			m.detail = e.obj
			m.viewMode = ViewDetail
		}

	case " ":
		if m.focus == paneSidebar {
			rows := m.mirror.Rows()
			if m.sidebarCursor < len(rows) && rows[m.sidebarCursor].Path != "" {
				m.mirror.Toggle(rows[m.sidebarCursor].Path)
			}
		}

	case "backspace", "h":
		if m.mirror.Current() != "" {
			m.navigate(namespace.Parent(m.mirror.Current()))
		}

	case "r":
		m.loading = true
		return m, m.refresh()

	case "u":
		return m, m.loadLocalFiles(".")

	case "x":
		if obj := m.selectedObject(); obj != nil {
			m.loading = true
			return m, m.deleteObject(obj.ID)
		}

	case "esc":
		m.err = nil
		m.statusMessage = ""
		m.mirror.DismissErr()

	case "?":
		m.viewMode = ViewHelp
	}

	return m, nil
}

// updateDetail handles the object detail view
func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "backspace", "h", "left":
		m.viewMode = ViewBrowser
		m.detail = nil
	case "x":
		if m.detail != nil {
			id := m.detail.ID
			m.viewMode = ViewBrowser
			m.detail = nil
			m.loading = true
			return m, m.deleteObject(id)
		}
	}
	return m, nil
}

// updateHelp handles help view updates
func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "?":
		m.viewMode = ViewBrowser
	}
	return m, nil
}

// updateUpload handles the local file picker
func (m Model) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		m.viewMode = ViewBrowser
	case "up", "k":
		if m.localCursor > 0 {
			m.localCursor--
		}
	case "down", "j":
		if m.localCursor < len(m.localItems)-1 {
			m.localCursor++
		}
	case "enter", "l", "o":
		if len(m.localItems) == 0 {
			return m, nil
		}
		selected := m.localItems[m.localCursor]
		if selected.IsDir {
			return m, m.loadLocalFiles(filepath.Join(m.localPath, selected.Name))
		}
		m.viewMode = ViewBrowser
		m.loading = true
		return m, m.uploadFile(filepath.Join(m.localPath, selected.Name))
	case "backspace", "h":
		return m, m.loadLocalFiles(filepath.Join(m.localPath, ".."))
	}
	return m, nil
}

func (m *Model) navigate(path string) {
	m.mirror.Navigate(path)
	m.contentCursor = 0
	m.syncSidebar()
}

// syncSidebar moves the sidebar cursor onto the active row.
func (m *Model) syncSidebar() {
	for i, row := range m.mirror.Rows() {
		if row.Active {
			m.sidebarCursor = i
			return
		}
	}
}

func (m *Model) clampCursors() {
	if n := len(m.entries()); m.contentCursor >= n {
		m.contentCursor = max(n-1, 0)
	}
	if n := len(m.mirror.Rows()); m.sidebarCursor >= n {
		m.sidebarCursor = max(n-1, 0)
	}
}

// entries lists directories first, then objects, in listing order.
func (m Model) entries() []entry {
	l := m.mirror.View().Listing
	out := make([]entry, 0, len(l.Directories)+len(l.Objects))
	for i := range l.Directories {
		out = append(out, entry{dir: &l.Directories[i]})
	}
	for i := range l.Objects {
		out = append(out, entry{obj: &l.Objects[i]})
	}
	return out
}

func (m Model) selectedObject() *namespace.LeafObject {
	if m.focus != paneContent {
		return nil
	}
	entries := m.entries()
	if m.contentCursor < len(entries) {
		return entries[m.contentCursor].obj
	}
	return nil
}

// banner returns the error to show, mutation errors first.
func (m Model) banner() error {
	if m.err != nil {
		return m.err
	}
	return m.mirror.Err()
}

// refresh fetches a full tree into the mirror
func (m Model) refresh() tea.Cmd {
	mir := m.mirror
	return func() tea.Msg {
		return treeLoadedMsg{err: mir.Refresh(context.Background())}
	}
}

// uploadFile uploads a local file into the current directory
func (m Model) uploadFile(fullPath string) tea.Cmd {
	api, dir := m.api, m.mirror.Current()
	return func() tea.Msg {
		filename := filepath.Base(fullPath)
		f, err := os.Open(fullPath)
		if err != nil {
			return objectUploadedMsg{err: fmt.Errorf("failed to read file '%s': %w", fullPath, err)}
		}
		defer f.Close()

		if _, err := api.Upload(context.Background(), dir, filename, f); err != nil {
			return objectUploadedMsg{filename: filename, err: err}
		}
		return objectUploadedMsg{filename: filename}
	}
}

// deleteObject deletes an object by id
func (m Model) deleteObject(id string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		return objectDeletedMsg{id: id, err: api.Delete(context.Background(), id)}
	}
}

// loadLocalFiles loads files and directories from the specified path
func (m Model) loadLocalFiles(path string) tea.Cmd {
	return func() tea.Msg {
		entries, err := os.ReadDir(path)
		if err != nil {
			return localFilesLoadedMsg{err: err}
		}

		items := []LocalItem{{Name: "..", IsDir: true}}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			items = append(items, LocalItem{Name: e.Name(), IsDir: e.IsDir(), Size: info.Size()})
		}

		// Directories first, ".." stays on top.
		sort.SliceStable(items[1:], func(i, j int) bool {
			a, b := items[1+i], items[1+j]
			if a.IsDir != b.IsDir {
				return a.IsDir
			}
			return a.Name < b.Name
		})
		return localFilesLoadedMsg{items: items, path: filepath.Clean(path)}
	}
}
