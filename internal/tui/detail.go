package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tabgruppen/internal/export"
)

// DetailModel shows information about the selected item.
type DetailModel struct {
	Width      int
	Height     int
	Scroll     int // scroll offset
	ContentLen int // total lines in content
}

// ScrollUp adjusts the scroll offset upward.
func (m *DetailModel) ScrollUp() {
	if m.Scroll > 0 {
		m.Scroll--
	}
}

// ScrollDown adjusts the scroll offset downward.
func (m *DetailModel) ScrollDown() {
	if m.Scroll < m.ContentLen-m.Height {
		m.Scroll++
	}
	if m.Scroll < 0 {
		m.Scroll = 0
	}
}

// ResetScroll resets the scroll offset to 0.
func (m *DetailModel) ResetScroll() {
	m.Scroll = 0
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	valueStyle = lipgloss.NewStyle()
)

func field(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + "\n")
	b.WriteString(valueStyle.Render(value) + "\n\n")
}

// ViewTab renders a tab and the container it belongs to.
func (m DetailModel) ViewTab(tab *export.Tab, container *export.Node, now time.Time) string {
	if tab == nil {
		return ""
	}
	var b strings.Builder

	title := tab.Title
	if w := m.Width - 2; w > 1 && len(title) > w {
		title = title[:w-1] + "…"
	}
	field(&b, "Title", title)

	b.WriteString(labelStyle.Render("URL") + "\n")
	url := tab.URL
	for w := m.Width - 2; w > 0 && len(url) > w; url = url[w:] {
		b.WriteString(valueStyle.Render(url[:w]) + "\n")
	}
	b.WriteString(valueStyle.Render(url) + "\n\n")

	if container != nil {
		field(&b, "Container", container.Name)
	}
	if tab.Site != "" {
		field(&b, "Site", tab.Site)
	}
	if tab.Tag != "" {
		field(&b, "Tag", tab.Tag)
	}
	field(&b, "Last Visited", humanize.RelTime(tab.LastAccessed, now, "ago", "from now"))
	field(&b, "Window", fmt.Sprintf("%d", tab.WindowID))

	var flags []string
	if tab.Pinned {
		flags = append(flags, "pinned")
	}
	if tab.Hidden {
		flags = append(flags, "hidden")
	}
	if len(flags) > 0 {
		b.WriteString(labelStyle.Render("State") + "\n")
		b.WriteString(valueStyle.Render(strings.Join(flags, ", ")) + "\n")
	}
	return b.String()
}

// ViewGroup renders a supergroup or container row.
func (m DetailModel) ViewGroup(group *export.Node) string {
	if group == nil {
		return ""
	}
	var b strings.Builder

	kind := "Container"
	if group.Kind == export.KindSupergroup {
		kind = "Supergroup"
	}
	field(&b, kind, group.Name)
	field(&b, "ID", group.ID)
	field(&b, "Tabs", humanize.Comma(int64(group.TabCount())))
	if group.Color != "" {
		field(&b, "Color", group.Color)
	}

	hidden := 0
	var count func(n export.Node)
	count = func(n export.Node) {
		for _, t := range n.Tabs {
			if t.Hidden {
				hidden++
			}
		}
		for _, ch := range n.Children {
			count(ch)
		}
	}
	count(*group)
	if hidden > 0 {
		b.WriteString(labelStyle.Render("Hidden") + "\n")
		b.WriteString(fmt.Sprintf("  %d of %d tabs\n", hidden, group.TabCount()))
	}
	return b.String()
}

// ViewScrolled applies scroll offset and height truncation to the content string.
func (m *DetailModel) ViewScrolled(content string) string {
	if content == "" {
		return content
	}

	lines := strings.Split(content, "\n")
	m.ContentLen = len(lines)

	maxScroll := max(m.ContentLen-m.Height, 0)
	m.Scroll = min(max(m.Scroll, 0), maxScroll)

	if m.Scroll >= len(lines) {
		return ""
	}
	end := min(m.Scroll+m.Height, len(lines))
	return strings.Join(lines[m.Scroll:end], "\n")
}
