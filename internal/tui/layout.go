package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane pads or cuts s to exactly width columns (ANSI-aware) and, when height is
// positive, exactly height lines, so panes line up under lipgloss.JoinHorizontal.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}
	for i, ln := range lines {
		lines[i] = fitWidth(ln, width)
	}
	return strings.Join(lines, "\n")
}

func fitWidth(ln string, width int) string {
	w := xansi.StringWidth(ln)
	switch {
	case w > width && width <= 0:
		return ""
	case w > width && width == 1:
		return xansi.Cut(ln, 0, 1)
	case w > width:
		return xansi.Cut(ln, 0, width-1) + "…"
	case w < width:
		return ln + strings.Repeat(" ", width-w)
	}
	return ln
}

// wrapWords wraps plain text to maxW, hard-cutting words wider than a line.
func wrapWords(s string, maxW int) []string {
	if maxW <= 0 {
		return []string{""}
	}
	var lines []string
	cur, curW := "", 0
	for _, word := range strings.Fields(s) {
		ww := xansi.StringWidth(word)
		for ww > maxW {
			if cur != "" {
				lines = append(lines, cur)
				cur, curW = "", 0
			}
			lines = append(lines, xansi.Cut(word, 0, maxW))
			word = xansi.Cut(word, maxW, ww)
			ww = xansi.StringWidth(word)
		}
		switch {
		case cur == "":
			cur, curW = word, ww
		case curW+1+ww <= maxW:
			cur += " " + word
			curW += 1 + ww
		default:
			lines = append(lines, cur)
			cur, curW = word, ww
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}
