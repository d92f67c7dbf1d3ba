package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Colors are adaptive so the board stays readable on light and dark terminals. Faint
// styling is only applied on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted      = ac("240", "243")
	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")
	colorSurfaceFg  = ac("235", "252")
	colorControlBg  = ac("252", "235")
	colorAccent     = ac("27", "62")
	colorBlockedFg  = ac("160", "203")
	colorDueFg      = ac("130", "179")
	colorPriorityFg = ac("90", "176")
	colorErrorFg    = ac("196", "203")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

var (
	metaBlockedStyle  = lipgloss.NewStyle().Foreground(colorBlockedFg).Bold(true)
	metaDueStyle      = lipgloss.NewStyle().Foreground(colorDueFg)
	metaPriorityStyle = lipgloss.NewStyle().Foreground(colorPriorityFg)
	statusErrStyle    = lipgloss.NewStyle().Foreground(colorErrorFg)
	titleBarStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg).Padding(0, 1)
)

// applyColorProfilePreference honors NO_COLOR and otherwise trusts TERM/COLORTERM when
// they claim more than termenv detects.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()
	term := strings.ToLower(os.Getenv("TERM"))
	colorterm := strings.ToLower(os.Getenv("COLORTERM"))
	switch {
	case strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit"):
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	case strings.Contains(term, "256color") && profile != termenv.TrueColor:
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// themePreference resolves TASKBOARD_TUI_THEME (light|dark|auto) and the COLORFGBG hint.
// ok is false when neither decides.
func themePreference() (dark bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TASKBOARD_TUI_THEME"))) {
	case "light":
		return false, true
	case "dark":
		return true, true
	}
	// COLORFGBG is "fg;bg"; xterm palette 0-6 are dark backgrounds.
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			return bg < 7, true
		}
	}
	return false, false
}

func applyThemePreference() {
	if dark, ok := themePreference(); ok {
		lipgloss.SetHasDarkBackground(dark)
	}
}
