// Package termview renders a block tree for the terminal.
package termview

import (
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/starford/float/internal/blocks"
	"github.com/starford/float/internal/markup"
	"github.com/starford/float/internal/models"
)

var (
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	queryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dispatchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	linkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Underline(true)
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	markerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Italic(true)
	resultStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

const indentUnit = "  "

// maxResultWidth truncates rendered results.
const maxResultWidth = 120

// Render formats walk entries as an indented outline, one block per group of
// lines.
func Render(entries []blocks.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		renderBlock(&b, e.Block, strings.Repeat(indentUnit, e.Depth))
	}
	return b.String()
}

func renderBlock(b *strings.Builder, blk models.Block, indent string) {
	b.WriteString(indent)
	b.WriteString(bullet(blk.Type))
	b.WriteString(" ")
	b.WriteString(idStyle.Render(blk.ID))
	b.WriteString("\n")

	body := indent + indentUnit
	for _, line := range strings.Split(blk.Content, "\n") {
		if line == "" {
			continue
		}
		b.WriteString(body)
		if blk.Type.Executable() {
			b.WriteString(styleFor(blk.Type).Render(line))
		} else {
			b.WriteString(Highlight(line))
		}
		b.WriteString("\n")
	}

	switch {
	case blk.IsLoading:
		b.WriteString(body + loadingStyle.Render("… running") + "\n")
	case blk.Error != "":
		b.WriteString(body + errorStyle.Render("✗ "+blk.Error) + "\n")
	case blk.Result != nil:
		b.WriteString(body + resultStyle.Render("↳ "+compact(blk.Result)) + "\n")
	}
}

// Highlight styles inline markup in a single line of text.
func Highlight(line string) string {
	var b strings.Builder
	for _, seg := range markup.Segments(line) {
		switch seg.Kind {
		case markup.KindLink:
			b.WriteString(linkStyle.Render(seg.Text))
		case markup.KindTag:
			b.WriteString(tagStyle.Render(seg.Text))
		case markup.KindMarker:
			b.WriteString(markerStyle.Render(seg.Text))
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

func bullet(t models.BlockType) string {
	switch t {
	case models.BlockQuery:
		return queryStyle.Render("?")
	case models.BlockDispatch:
		return dispatchStyle.Render("»")
	default:
		return "•"
	}
}

func styleFor(t models.BlockType) lipgloss.Style {
	if t == models.BlockDispatch {
		return dispatchStyle
	}
	return queryStyle
}

func compact(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "<unprintable result>"
	}
	s := string(data)
	if len(s) > maxResultWidth {
		s = s[:maxResultWidth] + "…"
	}
	return s
}
