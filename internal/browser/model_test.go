package browser

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dinomatic/media/internal/namespace"
)

type fakeAPI struct {
	mu        sync.Mutex
	ids       []string
	listErr   error
	deleteErr error
	uploaded  map[string]string
}

func newFakeAPI(ids ...string) *fakeAPI {
	return &fakeAPI{ids: ids, uploaded: make(map[string]string)}
}

func (f *fakeAPI) Tree(ctx context.Context) (*namespace.DirectoryNode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var leaves []namespace.LeafObject
	for _, id := range f.ids {
		size := int64(len(id))
		leaves = append(leaves, namespace.LeafObject{ID: id, UploadedAt: time.Unix(0, 0), SizeBytes: &size})
	}
	return namespace.Build(leaves), nil
}

func (f *fakeAPI) Upload(ctx context.Context, dir, filename string, r io.Reader) (namespace.LeafObject, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return namespace.LeafObject{}, err
	}
	id, err := namespace.ObjectID(dir, filename)
	if err != nil {
		return namespace.LeafObject{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	f.uploaded[id] = string(data)
	return namespace.LeafObject{ID: id, Filename: filename}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, existing := range f.ids {
		if existing == id {
			f.ids = append(f.ids[:i], f.ids[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeAPI) ObjectURL(id string) string { return "http://api.test/images/" + id }

// send applies msg and runs any resulting command to completion.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for cmd != nil {
		out := cmd()
		if _, quit := out.(tea.QuitMsg); quit {
			return m
		}
		next, cmd = m.Update(out)
		m = next.(Model)
	}
	return m
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, api *fakeAPI) Model {
	t.Helper()
	m := NewModel(api, "media")
	return send(t, m, m.Init()())
}

func entryNames(m Model) []string {
	var out []string
	for _, e := range m.entries() {
		if e.dir != nil {
			out = append(out, e.dir.Name+"/")
		} else {
			out = append(out, e.obj.Filename)
		}
	}
	return out
}

func TestInitialLoad(t *testing.T) {
	m := loaded(t, newFakeAPI("themes/akurai/logo.webp", "themes/akurai/bg.png", "themes/foo/icon.webp", "readme.txt"))
	if m.loading {
		t.Error("still loading after tree arrived")
	}
	if got := strings.Join(entryNames(m), ","); got != "themes/,readme.txt" {
		t.Errorf("root entries = %s", got)
	}
}

func TestNavigateIntoDirectoriesAndBack(t *testing.T) {
	m := loaded(t, newFakeAPI("themes/akurai/logo.webp", "themes/akurai/bg.png", "themes/foo/icon.webp"))

	m = send(t, m, key("enter")) // themes
	if m.mirror.Current() != "themes" {
		t.Fatalf("current = %q", m.mirror.Current())
	}
	if got := strings.Join(entryNames(m), ","); got != "akurai/,foo/" {
		t.Errorf("themes entries = %s", got)
	}

	m = send(t, m, key("enter")) // akurai
	if got := strings.Join(entryNames(m), ","); got != "bg.png,logo.webp" {
		t.Errorf("akurai entries = %s", got)
	}
	if v := m.View(); !strings.Contains(v, "themes › akurai") {
		t.Errorf("breadcrumb missing from view:\n%s", v)
	}

	m = send(t, m, key("h"))
	if m.mirror.Current() != "themes" {
		t.Errorf("after back current = %q", m.mirror.Current())
	}
}

func TestOpenObjectShowsDetail(t *testing.T) {
	m := loaded(t, newFakeAPI("a.png"))
	m = send(t, m, key("enter"))
	if m.viewMode != ViewDetail || m.detail == nil || m.detail.ID != "a.png" {
		t.Fatalf("viewMode = %v detail = %+v", m.viewMode, m.detail)
	}
	if v := m.View(); !strings.Contains(v, "http://api.test/images/a.png") {
		t.Errorf("detail view lacks URL:\n%s", v)
	}
	m = send(t, m, key("esc"))
	if m.viewMode != ViewBrowser {
		t.Errorf("esc did not return to browser")
	}
}

func TestDeleteRefreshesTree(t *testing.T) {
	api := newFakeAPI("themes/akurai/logo.webp", "themes/akurai/bg.png")
	m := loaded(t, api)
	m.navigate("themes/akurai")

	m = send(t, m, key("j")) // logo.webp
	m = send(t, m, key("x"))

	if got := strings.Join(entryNames(m), ","); got != "bg.png" {
		t.Errorf("entries after delete = %s", got)
	}
	if !strings.Contains(m.statusMessage, "themes/akurai/logo.webp") {
		t.Errorf("status = %q", m.statusMessage)
	}
	if m.mirror.Stale() {
		t.Error("mirror still stale after refresh")
	}
}

func TestDeleteFailureShowsBanner(t *testing.T) {
	api := newFakeAPI("a.png")
	api.deleteErr = errors.New("api: timeout (502)")
	m := loaded(t, api)

	m = send(t, m, key("x"))
	if m.banner() == nil {
		t.Fatal("no banner after failed delete")
	}
	if got := strings.Join(entryNames(m), ","); got != "a.png" {
		t.Errorf("entries = %s, want the object kept", got)
	}

	m = send(t, m, key("esc"))
	if m.banner() != nil {
		t.Errorf("banner not dismissed: %v", m.banner())
	}
}

func TestRefreshFailureKeepsTree(t *testing.T) {
	api := newFakeAPI("themes/a.png")
	m := loaded(t, api)

	api.listErr = errors.New("connection refused")
	m = send(t, m, key("r"))

	if m.banner() == nil {
		t.Error("refresh error not surfaced")
	}
	if got := strings.Join(entryNames(m), ","); got != "themes/" {
		t.Errorf("entries = %s, want last good tree", got)
	}
}

func TestSidebarToggle(t *testing.T) {
	m := loaded(t, newFakeAPI("a/b/c.png", "z.png"))

	m = send(t, m, key("tab"))
	if m.focus != paneSidebar {
		t.Fatal("tab did not focus the sidebar")
	}
	// Rows: root, a (collapsed since current is root).
	if n := len(m.mirror.Rows()); n != 2 {
		t.Fatalf("rows = %d, want 2", n)
	}

	m = send(t, m, key("j"))
	m = send(t, m, key(" "))
	if !m.mirror.Expanded("a") {
		t.Fatal("space did not expand a")
	}
	if n := len(m.mirror.Rows()); n != 3 {
		t.Errorf("rows after expand = %d, want 3", n)
	}

	m = send(t, m, key("j"))
	m = send(t, m, key("enter"))
	if m.mirror.Current() != "a/b" {
		t.Errorf("current = %q, want a/b", m.mirror.Current())
	}
	if got := strings.Join(entryNames(m), ","); got != "c.png" {
		t.Errorf("entries = %s", got)
	}
}

func TestUploadLocalFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}

	api := newFakeAPI("themes/a.png")
	m := loaded(t, api)
	m.navigate("themes")

	m = send(t, m, m.loadLocalFiles(dir)())
	if m.viewMode != ViewUpload {
		t.Fatalf("viewMode = %v", m.viewMode)
	}
	if len(m.localItems) != 2 || m.localItems[1].Name != "new.png" {
		t.Fatalf("local items = %+v", m.localItems)
	}

	m = send(t, m, key("j"))
	m = send(t, m, key("enter"))

	if api.uploaded["themes/new.png"] != "png" {
		t.Errorf("uploaded = %v", api.uploaded)
	}
	if got := strings.Join(entryNames(m), ","); got != "a.png,new.png" {
		t.Errorf("entries after upload = %s", got)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mediarc")
	content := "[default]\nendpoint = http://media.test:8080\napi_key = from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MEDIA_ENDPOINT", "")
	t.Setenv("MEDIA_API_KEY", "")
	cfg, err := loadConfig([]string{filepath.Join(dir, "missing"), path})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Endpoint != "http://media.test:8080" || cfg.APIKey != "from-file" {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("MEDIA_API_KEY", "from-env")
	cfg, err = loadConfig([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.APIKey != "from-env" {
		t.Errorf("env override ignored: %+v", cfg)
	}

	t.Setenv("MEDIA_API_KEY", "")
	if _, err := loadConfig(nil); err == nil {
		t.Error("expected error without an api key")
	}
}
