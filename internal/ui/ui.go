// Package ui styles CLI output.
package ui

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/asynkron/chatpatch/pkg/patch"
)

// Styles renders patch results for one output stream.
type Styles struct {
	renderer *lipgloss.Renderer

	added    lipgloss.Style
	modified lipgloss.Style
	deleted  lipgloss.Style
	context  lipgloss.Style
	header   lipgloss.Style
	title    lipgloss.Style
	failure  lipgloss.Style
	detail   lipgloss.Style
}

// New builds styles for w. With noColor set, or when w is not a colour
// terminal, output is plain text.
func New(w io.Writer, noColor bool) *Styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Styles{
		renderer: r,
		added:    r.NewStyle().Foreground(lipgloss.Color("42")),
		modified: r.NewStyle().Foreground(lipgloss.Color("214")),
		deleted:  r.NewStyle().Foreground(lipgloss.Color("203")),
		context:  r.NewStyle().Foreground(lipgloss.Color("252")),
		header:   r.NewStyle().Foreground(lipgloss.Color("63")).Bold(true),
		title: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("129")).
			PaddingLeft(1).
			PaddingRight(1),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		detail:  r.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Summary renders the per-category path lists of result.
func (s *Styles) Summary(result patch.Result) string {
	if result.Empty() {
		return s.detail.Render("No changes applied")
	}
	var lines []string
	add := func(label string, style lipgloss.Style, paths []string) {
		if len(paths) == 0 {
			return
		}
		lines = append(lines, style.Render(label+":")+" "+strings.Join(paths, ", "))
	}
	add("Added", s.added, result.Added)
	add("Modified", s.modified, result.Modified)
	add("Deleted", s.deleted, result.Deleted)
	return strings.Join(lines, "\n")
}

// Preview colours a diff produced by patch.RenderPreview line by line.
func (s *Styles) Preview(diff string) string {
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "--- "), strings.HasPrefix(line, "+++ "):
			lines[i] = s.header.Render(line)
		case strings.HasPrefix(line, "+"):
			lines[i] = s.added.Render(line)
		case strings.HasPrefix(line, "-"):
			lines[i] = s.deleted.Render(line)
		case line == "...":
			lines[i] = s.detail.Render(line)
		default:
			lines[i] = s.context.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

// Title frames a short heading.
func (s *Styles) Title(text string) string {
	return s.title.Render(text)
}

// Failure renders err with the full diagnostic from patch.FormatError. The
// first line is highlighted; the rest is dimmed.
func (s *Styles) Failure(err error) string {
	message := patch.FormatError(err)
	head, rest, found := strings.Cut(message, "\n")
	out := s.failure.Render("error: " + head)
	if found {
		for _, line := range strings.Split(rest, "\n") {
			out += "\n" + s.detail.Render(line)
		}
	}
	return out
}
