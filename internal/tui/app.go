package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/export"
	"github.com/lotas/tabgruppen/internal/state"
	"github.com/lotas/tabgruppen/internal/tabgroup"
)

const actionTimeout = 10 * time.Second

// StateSource publishes browser states.
type StateSource interface {
	State() *state.BrowserState
	Subscribe() (<-chan struct{}, func())
}

// Hider hides and shows a container's tabs on one window.
type Hider interface {
	HideContainerOnWindow(ctx context.Context, windowID int, cookieStoreID string) ([]int, error)
	ShowContainerOnWindow(ctx context.Context, windowID int, cookieStoreID string) error
}

// Closer closes every tab below a tab group.
type Closer interface {
	CloseTabGroup(ctx context.Context, id tabgroup.ID) error
}

// Options configures a Model. Hider and Closer are nil when the source is
// read-only.
type Options struct {
	Profile string
	Live    bool
	Hider   Hider
	Closer  Closer
}

// --- Messages ---

type stateMsg struct{ st *state.BrowserState }

type actionDoneMsg struct {
	verb string
	err  error
}

// --- Model ---

type Model struct {
	src     StateSource
	opts    Options
	updates <-chan struct{}
	cancel  func()

	st     *state.BrowserState
	doc    export.Document
	tree   TreeModel
	detail DetailModel
	status string
	err    error
	width  int
	height int
	now    func() time.Time
}

func NewModel(src StateSource, opts Options) Model {
	updates, cancel := src.Subscribe()
	m := Model{
		src:     src,
		opts:    opts,
		updates: updates,
		cancel:  cancel,
		tree:    NewTreeModel(nil),
		now:     time.Now,
	}
	m.setState(src.State())
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForState(m.src, m.updates)
}

// waitForState blocks until the source publishes again. The returned
// message re-arms the wait.
func waitForState(src StateSource, updates <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return stateMsg{st: src.State()}
	}
}

func (m *Model) setState(st *state.BrowserState) {
	if st == nil {
		return
	}
	m.st = st
	m.doc = export.Build(st, m.opts.Profile)
	groups := append(append([]export.Node{}, m.doc.Groups...), m.doc.Unfiled...)
	m.tree.SetGroups(groups)
}

func (m Model) readOnly() bool {
	return m.opts.Hider == nil || m.opts.Closer == nil
}

// targets resolves the selected row to the cookie stores and windows an
// action applies to. A tab row targets its container on its own window.
func (m Model) targets() (stores []string, windows []int, group tabgroup.ID) {
	node := m.tree.SelectedNode()
	if node == nil || m.st == nil {
		return nil, nil, ""
	}
	if node.Tab != nil {
		return []string{node.Container.ID}, []int{node.Tab.WindowID}, node.Container.ID
	}
	id := node.Group.ID
	return m.st.Directory().ChildContainers(id), m.st.WindowIDs, id
}

func (m Model) runHide(show bool) tea.Cmd {
	stores, windows, _ := m.targets()
	if len(stores) == 0 {
		return nil
	}
	hider := m.opts.Hider
	verb := "hide"
	if show {
		verb = "show"
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		var errs []error
		for _, w := range windows {
			for _, cs := range stores {
				var err error
				if show {
					err = hider.ShowContainerOnWindow(ctx, w, cs)
				} else {
					_, err = hider.HideContainerOnWindow(ctx, w, cs)
				}
				if err != nil {
					applog.Error("tui."+verb, err, "window", w, "container", cs)
					errs = append(errs, err)
				}
			}
		}
		return actionDoneMsg{verb: verb, err: errors.Join(errs...)}
	}
}

func (m Model) runClose() tea.Cmd {
	_, _, id := m.targets()
	if id == "" {
		return nil
	}
	closer := m.opts.Closer
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		err := closer.CloseTabGroup(ctx, id)
		if err != nil {
			applog.Error("tui.close", err, "group", id)
		}
		return actionDoneMsg{verb: "close", err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		treeWidth := m.width * TreeWidthPct / 100
		detailWidth := m.width - treeWidth - 4 // borders
		paneHeight := m.height - 4             // navbar + bottom bar + borders
		m.tree.Width = treeWidth
		m.tree.Height = paneHeight
		m.detail.Width = detailWidth
		m.detail.Height = paneHeight
		return m, nil

	case stateMsg:
		m.setState(msg.st)
		return m, waitForState(m.src, m.updates)

	case actionDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.verb + " done"
		} else {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case "up", "k":
			m.tree.MoveUp()
			m.detail.ResetScroll()
		case "down", "j":
			m.tree.MoveDown()
			m.detail.ResetScroll()
		case "enter", " ":
			m.tree.Toggle()
		case "left", "h":
			m.tree.CollapseOrParent()
			m.detail.ResetScroll()
		case "right", "l":
			m.tree.ExpandOrEnter()
			m.detail.ResetScroll()
		case "J":
			m.detail.ScrollDown()
		case "K":
			m.detail.ScrollUp()
		case "H", "S", "x":
			if m.readOnly() {
				m.status = "read-only source"
				return m, nil
			}
			m.err = nil
			m.status = "working..."
			switch msg.String() {
			case "H":
				return m, m.runHide(false)
			case "S":
				return m, m.runHide(true)
			default:
				return m, m.runClose()
			}
		}
	}

	return m, nil
}

func (m Model) tabCount() int {
	if m.st == nil {
		return 0
	}
	n := 0
	for _, w := range m.st.Windows {
		n += len(w.Tabs)
	}
	return n
}

func (m Model) View() string {
	if m.st == nil {
		return "\n  Loading browser state...\n"
	}

	navbar := renderNavbar(m.opts.Live, m.opts.Profile, m.tabCount(), len(m.st.WindowIDs), m.width)

	treeBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Width(m.tree.Width).
		Height(m.tree.Height)

	detailBorder := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.detail.Width).
		Height(m.detail.Height)

	var detailContent string
	if node := m.tree.SelectedNode(); node != nil {
		if node.Tab != nil {
			detailContent = m.detail.ViewTab(node.Tab, node.Container, m.now())
		} else if node.Group != nil {
			detailContent = m.detail.ViewGroup(node.Group)
		}
	}
	detailContent = m.detail.ViewScrolled(detailContent)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		treeBorder.Render(m.tree.View()),
		detailBorder.Render(detailContent))

	bottomBarStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1)
	bottomText := "↑↓/jk navigate · h/l collapse/expand · J/K scroll detail · "
	if !m.readOnly() {
		bottomText += "H hide · S show · x close · "
	}
	bottomText += "q quit"
	switch {
	case m.err != nil:
		bottomText = fmt.Sprintf("error: %v  ", m.err) + bottomText
	case m.status != "":
		bottomText = m.status + "  " + bottomText
	}

	return lipgloss.JoinVertical(lipgloss.Left, navbar, panes, bottomBarStyle.Render(bottomText))
}
