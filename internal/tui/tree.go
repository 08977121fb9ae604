package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgruppen/internal/export"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

// TreeNode represents a visible row in the tree.
type TreeNode struct {
	Group *export.Node // non-nil for supergroup and container rows
	Tab   *export.Tab  // non-nil for tab rows
	Depth int
	// Container is the cookie store a tab row belongs to.
	Container *export.Node
}

// TreeModel manages the collapsible tree view.
type TreeModel struct {
	Groups   []export.Node
	Expanded map[tabgroup.ID]bool
	Cursor   int
	Offset   int // scroll offset
	Width    int
	Height   int
}

// NewTreeModel starts with supergroups expanded and containers collapsed.
func NewTreeModel(groups []export.Node) TreeModel {
	m := TreeModel{Expanded: make(map[tabgroup.ID]bool)}
	m.SetGroups(groups)
	return m
}

// SetGroups replaces the tree, keeping the expanded state of nodes that
// still exist and the cursor position where possible.
func (m *TreeModel) SetGroups(groups []export.Node) {
	m.Groups = groups
	var walk func(ns []export.Node)
	walk = func(ns []export.Node) {
		for _, n := range ns {
			if _, ok := m.Expanded[n.ID]; !ok {
				m.Expanded[n.ID] = n.Kind == export.KindSupergroup
			}
			walk(n.Children)
		}
	}
	walk(groups)
	if last := len(m.VisibleNodes()) - 1; m.Cursor > last {
		m.Cursor = max(last, 0)
	}
	if m.Offset > m.Cursor {
		m.Offset = m.Cursor
	}
}

// VisibleNodes returns the flat list of currently visible nodes.
func (m TreeModel) VisibleNodes() []TreeNode {
	var nodes []TreeNode
	var walk func(ns []export.Node, depth int)
	walk = func(ns []export.Node, depth int) {
		for i := range ns {
			n := &ns[i]
			nodes = append(nodes, TreeNode{Group: n, Depth: depth})
			if !m.Expanded[n.ID] {
				continue
			}
			for j := range n.Tabs {
				nodes = append(nodes, TreeNode{Tab: &n.Tabs[j], Depth: depth + 1, Container: n})
			}
			walk(n.Children, depth+1)
		}
	}
	walk(m.Groups, 0)
	return nodes
}

// SelectedNode returns the currently selected node, or nil.
func (m TreeModel) SelectedNode() *TreeNode {
	nodes := m.VisibleNodes()
	if m.Cursor >= 0 && m.Cursor < len(nodes) {
		return &nodes[m.Cursor]
	}
	return nil
}

func (m *TreeModel) rows() int {
	return max(m.Height-2, 1) // account for padding
}

// MoveUp moves the cursor up.
func (m *TreeModel) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
}

// MoveDown moves the cursor down.
func (m *TreeModel) MoveDown() {
	nodes := m.VisibleNodes()
	if m.Cursor < len(nodes)-1 {
		m.Cursor++
	}
	if m.Cursor >= m.Offset+m.rows() {
		m.Offset = m.Cursor - m.rows() + 1
	}
}

// Toggle expands/collapses the selected group.
func (m *TreeModel) Toggle() {
	node := m.SelectedNode()
	if node == nil || node.Group == nil {
		return
	}
	m.Expanded[node.Group.ID] = !m.Expanded[node.Group.ID]
}

// CollapseOrParent collapses the selected group if expanded, or jumps to the
// enclosing group row otherwise.
func (m *TreeModel) CollapseOrParent() {
	node := m.SelectedNode()
	if node == nil {
		return
	}
	if node.Group != nil && m.Expanded[node.Group.ID] {
		m.Expanded[node.Group.ID] = false
		return
	}
	nodes := m.VisibleNodes()
	for i := m.Cursor - 1; i >= 0; i-- {
		if nodes[i].Group != nil && nodes[i].Depth < node.Depth {
			m.Cursor = i
			if m.Cursor < m.Offset {
				m.Offset = m.Cursor
			}
			return
		}
	}
}

// ExpandOrEnter expands the selected group if collapsed, or moves onto its
// first child if already expanded.
func (m *TreeModel) ExpandOrEnter() {
	node := m.SelectedNode()
	if node == nil || node.Group == nil {
		return
	}
	if !m.Expanded[node.Group.ID] {
		m.Expanded[node.Group.ID] = true
		return
	}
	nodes := m.VisibleNodes()
	if m.Cursor+1 < len(nodes) && nodes[m.Cursor+1].Depth > node.Depth {
		m.MoveDown()
	}
}

// View renders the tree.
func (m TreeModel) View() string {
	nodes := m.VisibleNodes()
	if len(nodes) == 0 {
		return "No tab groups."
	}

	visibleRows := m.Height
	if visibleRows < 1 {
		visibleRows = 20
	}

	var b strings.Builder
	end := min(m.Offset+visibleRows, len(nodes))

	cursorStyle := lipgloss.NewStyle().Bold(true).Reverse(true)
	supergroupStyle := lipgloss.NewStyle().Bold(true)
	hiddenStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	pinStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	tagStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("33"))  // blue

	for i := m.Offset; i < end; i++ {
		node := nodes[i]
		indent := strings.Repeat("  ", node.Depth)
		var line string

		if g := node.Group; g != nil {
			icon := "▶"
			if m.Expanded[g.ID] {
				icon = "▼"
			}
			label := fmt.Sprintf("%s%s %s (%d)", indent, icon, g.Name, g.TabCount())
			if g.Kind == export.KindSupergroup {
				line = supergroupStyle.Render(label)
			} else {
				line = lipgloss.NewStyle().Foreground(containerColor(g.Color)).Render(label)
			}
		} else if t := node.Tab; t != nil {
			var markers []string
			if t.Pinned {
				markers = append(markers, pinStyle.Render("📌"))
			}
			if t.Tag != "" {
				markers = append(markers, tagStyle.Render("#"+t.Tag))
			}
			marker := ""
			if len(markers) > 0 {
				marker = strings.Join(markers, " ") + " "
			}

			title := t.Title
			if title == "" {
				title = t.URL
			}
			maxLen := max(m.Width-len(indent)-lipgloss.Width(marker)-2, 10)
			if len(title) > maxLen {
				title = title[:maxLen-1] + "…"
			}
			line = indent + marker + title
			if t.Hidden {
				line = hiddenStyle.Render(line)
			}
		}

		if i == m.Cursor {
			if w := lipgloss.Width(line); w < m.Width {
				line += strings.Repeat(" ", m.Width-w)
			}
			line = cursorStyle.Render(line)
		}

		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

// containerColor maps Firefox container colors to terminal colors.
func containerColor(name string) lipgloss.Color {
	switch name {
	case "blue":
		return lipgloss.Color("33")
	case "turquoise":
		return lipgloss.Color("44")
	case "green":
		return lipgloss.Color("42")
	case "yellow":
		return lipgloss.Color("226")
	case "orange":
		return lipgloss.Color("214")
	case "red":
		return lipgloss.Color("196")
	case "pink":
		return lipgloss.Color("205")
	case "purple":
		return lipgloss.Color("135")
	}
	return lipgloss.Color("252")
}
