// Package tui hosts the interactive review screen shown before a patch is
// written.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	glam "github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const helpLine = "y apply • n cancel • ↑/↓ scroll"

type model struct {
	title   string
	preview string

	vp     viewport.Model
	glam   *glam.TermRenderer
	width  int
	height int
	ready  bool

	border     lipgloss.Style
	titleStyle lipgloss.Style
	helpStyle  lipgloss.Style

	approved bool
	decided  bool
}

func newModel(title, preview string) *model {
	m := &model{
		title:   title,
		preview: preview,
		border:  lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")),
		titleStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("129")).
			Foreground(lipgloss.Color("252")).
			PaddingLeft(1).
			PaddingRight(1),
		helpStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	_ = m.rebuildRenderer(80)
	return m
}

// rebuildRenderer recreates the Glamour renderer with the given wrap width.
func (m *model) rebuildRenderer(wrap int) error {
	if wrap < 10 {
		wrap = 10
	}
	r, err := glam.NewTermRenderer(
		glam.WithStylePath("dark"), // fixed style to avoid OSC queries
		glam.WithWordWrap(wrap),
	)
	if err != nil {
		return err
	}
	m.glam = r
	return nil
}

// renderPreview renders the diff as a fenced markdown block, falling back to
// the raw text when Glamour fails.
func (m *model) renderPreview() string {
	markdown := "```diff\n" + strings.TrimSuffix(m.preview, "\n") + "\n```\n"
	if m.glam == nil {
		return m.preview
	}
	rendered, err := m.glam.Render(markdown)
	if err != nil {
		return m.preview
	}
	return rendered
}

func (m *model) recalcLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	// Title block (3 rows), help line, and the viewport border (2 rows).
	vpH := m.height - 6
	if vpH < 3 {
		vpH = 3
	}
	vpW := m.width - 2
	if vpW < 1 {
		vpW = 1
	}
	if !m.ready {
		m.vp = viewport.New(vpW, vpH)
	} else {
		m.vp.Width = vpW
		m.vp.Height = vpH
	}
	_ = m.rebuildRenderer(vpW - 2)
	m.vp.SetContent(m.renderPreview())
}

func (m *model) Init() tea.Cmd {
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m.decide(false)
		case tea.KeyRunes:
			switch strings.ToLower(string(msg.Runes)) {
			case "y":
				return m.decide(true)
			case "n", "q":
				return m.decide(false)
			}
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *model) decide(approved bool) (tea.Model, tea.Cmd) {
	m.approved = approved
	m.decided = true
	return m, tea.Quit
}

func (m *model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	return m.titleStyle.Render(m.title) + "\n" +
		m.border.Render(m.vp.View()) + "\n" +
		m.helpStyle.Render(helpLine)
}

// Confirm shows preview full-screen and waits for the user to accept or
// reject it. Cancelling ctx rejects.
func Confirm(ctx context.Context, title, preview string, in io.Reader, out io.Writer) (bool, error) {
	// Prevent OSC background color queries from contaminating stdin by
	// explicitly setting color profile and background for lipgloss/termenv.
	lipgloss.SetColorProfile(termenv.TrueColor)
	lipgloss.SetHasDarkBackground(true)

	m := newModel(title, preview)
	p := tea.NewProgram(m,
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("tui: %w", err)
	}
	return m.decided && m.approved, nil
}
