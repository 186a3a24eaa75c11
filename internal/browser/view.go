package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/dinomatic/media/internal/mirror"
	"github.com/dinomatic/media/internal/namespace"
)

const sidebarWidth = 32

// Styles - Minimalistic theme
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff")).
			Background(lipgloss.Color("#333333")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ffffff"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0066cc")).
			Bold(true).
			Underline(true)

	directoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0066cc")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbbbbb"))

	crumbStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#999999"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#cc0000")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#006600")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	sidebarStyle = lipgloss.NewStyle().
			Width(sidebarWidth).
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(lipgloss.Color("#999999")).
			PaddingRight(1)

	contentStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#999999")).
			Padding(1, 2)
)

// View renders the current view
func (m Model) View() string {
	switch m.viewMode {
	case ViewDetail:
		return m.viewDetail()
	case ViewUpload:
		return m.viewUpload()
	case ViewHelp:
		return m.viewHelp()
	}
	return m.viewBrowser()
}

func (m Model) viewBrowser() string {
	var s strings.Builder
	v := m.mirror.View()

	s.WriteString(titleStyle.Render(m.title))
	s.WriteString("\n\n")

	if err := m.banner(); err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %s", err.Error())))
		s.WriteString(helpStyle.Render("  (esc to dismiss)"))
		s.WriteString("\n\n")
	} else if m.statusMessage != "" {
		s.WriteString(successStyle.Render(m.statusMessage))
		s.WriteString("\n\n")
	}

	if m.loading && !m.mirror.Loaded() {
		s.WriteString("Loading...\n")
		return s.String()
	}

	sidebar := sidebarStyle.Render(m.renderSidebar())
	content := contentStyle.Render(m.renderContent(v))
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content))

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("tab: switch pane • ↑/↓: move • enter: open • space: expand • h: up • u: upload • x: delete • r: refresh • ?: help • q: quit"))
	return s.String()
}

func (m Model) renderSidebar() string {
	var s strings.Builder
	for i, row := range m.mirror.Rows() {
		s.WriteString(m.renderRow(i, row))
		s.WriteString("\n")
	}
	return s.String()
}

func (m Model) renderRow(i int, row mirror.Row) string {
	cursor := " "
	if m.focus == paneSidebar && i == m.sidebarCursor {
		cursor = ">"
	}

	marker := " "
	if row.HasChildren {
		marker = "▸"
		if row.Expanded {
			marker = "▾"
		}
	}

	name := row.Name
	if row.Path == "" {
		name = "/"
	}
	label := fmt.Sprintf("%s %s", marker, name)
	switch {
	case row.Active:
		label = activeStyle.Render(label)
	case row.InPath:
		label = directoryStyle.Render(label)
	default:
		label = fileStyle.Render(label)
	}
	return fmt.Sprintf("%s%s%s", cursor, strings.Repeat("  ", row.Depth), label)
}

func (m Model) renderContent(v mirror.View) string {
	var s strings.Builder

	s.WriteString(renderCrumbs(v.Crumbs))
	if v.Stale {
		s.WriteString(helpStyle.Render("  (refreshing)"))
	}
	s.WriteString("\n\n")

	entries := m.entries()
	if len(entries) == 0 {
		s.WriteString("This directory is empty.\n")
		return s.String()
	}

	for i, e := range entries {
		cursor := " "
		if m.focus == paneContent && i == m.contentCursor {
			cursor = ">"
		}

		var line string
		if e.dir != nil {
			line = fmt.Sprintf("%s %s (%d)", cursor, directoryStyle.Render(e.dir.Name+"/"), e.dir.DirectoryCount+e.dir.ObjectCount)
		} else {
			line = fmt.Sprintf("%s %s  %s  %s", cursor, fileStyle.Render(e.obj.Filename),
				formatSize(e.obj.SizeBytes), helpStyle.Render(e.obj.UploadedAt.Format("2006-01-02 15:04")))
		}
		if m.focus == paneContent && i == m.contentCursor {
			line = selectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}
	return s.String()
}

func renderCrumbs(crumbs []namespace.Crumb) string {
	parts := []string{"/"}
	for _, c := range crumbs {
		parts = append(parts, c.Name)
	}
	return crumbStyle.Render(strings.Join(parts, " › "))
}

func (m Model) viewDetail() string {
	if m.detail == nil {
		return ""
	}
	o := m.detail

	var s strings.Builder
	s.WriteString(titleStyle.Render(o.Filename))
	s.WriteString("\n\n")
	fmt.Fprintf(&s, "ID:        %s\n", o.ID)
	fmt.Fprintf(&s, "Size:      %s\n", formatSize(o.SizeBytes))
	fmt.Fprintf(&s, "Uploaded:  %s (%s)\n", o.UploadedAt.Format("2006-01-02 15:04:05"), humanize.Time(o.UploadedAt))
	fmt.Fprintf(&s, "URL:       %s\n", m.api.ObjectURL(o.ID))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("x: delete • esc: back • q: quit"))
	return detailStyle.Render(s.String())
}

func (m Model) viewUpload() string {
	var s strings.Builder
	dest := m.mirror.Current()
	if dest == "" {
		dest = "/"
	}
	s.WriteString(titleStyle.Render(fmt.Sprintf("Upload to %s", dest)))
	s.WriteString("\n")
	s.WriteString(crumbStyle.Render(m.localPath))
	s.WriteString("\n\n")

	for i, item := range m.localItems {
		cursor := " "
		if i == m.localCursor {
			cursor = ">"
		}
		var line string
		if item.IsDir {
			line = fmt.Sprintf("%s %s", cursor, directoryStyle.Render(item.Name+"/"))
		} else {
			line = fmt.Sprintf("%s %s (%s)", cursor, fileStyle.Render(item.Name), humanize.Bytes(uint64(item.Size)))
		}
		if i == m.localCursor {
			line = selectedStyle.Render(line)
		}
		s.WriteString(line)
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/k: up • ↓/j: down • ←/h: parent • enter: select • esc: cancel • q: quit"))
	return s.String()
}

func (m Model) viewHelp() string {
	help := []string{
		"Navigation",
		"  tab            switch between sidebar and content",
		"  ↑/k ↓/j        move the cursor",
		"  enter/l/o      open directory or object",
		"  space          expand or collapse a sidebar directory",
		"  backspace/h    go to the parent directory",
		"",
		"Actions",
		"  u              upload a local file into this directory",
		"  x              delete the selected object",
		"  r              refresh the tree",
		"  esc            dismiss the error banner",
		"",
		"  ?              close help",
		"  q              quit",
	}
	return titleStyle.Render("Help") + "\n\n" + strings.Join(help, "\n")
}

func formatSize(size *int64) string {
	if size == nil {
		return "-"
	}
	return humanize.Bytes(uint64(*size))
}
