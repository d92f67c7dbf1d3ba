package tui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle can block on terminal queries, so a
	// fixed style is resolved up front and renderers are reused.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}
	style := markdownStyle()
	key := style + ":" + strconv.Itoa(width)

	mdRendererMu.Lock()
	r := mdRenderers[key]
	if r == nil {
		cfg := markdownStyleConfig(style)
		zero := uint(0)
		cfg.Document.Margin = &zero
		rr, err := glamour.NewTermRenderer(glamour.WithStyles(cfg), glamour.WithWordWrap(width))
		if err != nil {
			mdRendererMu.Unlock()
			return md
		}
		mdRenderers[key] = rr
		r = rr
	}
	mdRendererMu.Unlock()

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func markdownStyle() string {
	if dark, ok := themePreference(); ok {
		if dark {
			return "dark"
		}
		return "light"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

func markdownStyleConfig(style string) ansi.StyleConfig {
	cfg := styles.DarkStyleConfig
	if style == "light" {
		cfg = styles.LightStyleConfig
	}
	heading := mdColor(colorSurfaceFg, style)
	cfg.Heading.Color = heading
	cfg.H1.Color = heading
	cfg.H2.Color = heading
	cfg.H3.Color = heading

	link := mdColor(colorAccent, style)
	cfg.Link.Color = link
	cfg.LinkText.Color = link

	cfg.Text.Color = mdColor(colorSurfaceFg, style)
	cfg.Code.Color = mdColor(colorSurfaceFg, style)
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	return cfg
}

func mdColor(c lipgloss.AdaptiveColor, style string) *string {
	v := c.Dark
	if style == "light" {
		v = c.Light
	}
	return &v
}
