package tui

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestMarkdownStyle_RespectsTUITheme(t *testing.T) {
	t.Setenv("COLORFGBG", "")

	t.Setenv("TASKBOARD_TUI_THEME", "light")
	if got := markdownStyle(); got != "light" {
		t.Fatalf("expected light; got %q", got)
	}

	t.Setenv("TASKBOARD_TUI_THEME", "dark")
	if got := markdownStyle(); got != "dark" {
		t.Fatalf("expected dark; got %q", got)
	}
}

func TestThemePreference_FallsBackToColorFGBG(t *testing.T) {
	t.Setenv("TASKBOARD_TUI_THEME", "")

	tests := []struct {
		env      string
		wantDark bool
		wantOK   bool
	}{
		{env: "15;0", wantDark: true, wantOK: true},
		{env: "0;15", wantDark: false, wantOK: true},
		{env: "15;default;0", wantDark: true, wantOK: true},
		{env: "junk", wantOK: false},
		{env: "", wantOK: false},
	}
	for _, tc := range tests {
		t.Setenv("COLORFGBG", tc.env)
		dark, ok := themePreference()
		if ok != tc.wantOK || (ok && dark != tc.wantDark) {
			t.Fatalf("COLORFGBG=%q: got dark=%v ok=%v", tc.env, dark, ok)
		}
	}
}

func TestMarkdownStyleConfig_UsesPalette(t *testing.T) {
	for _, style := range []string{"dark", "light"} {
		cfg := markdownStyleConfig(style)
		want := colorAccent.Dark
		if style == "light" {
			want = colorAccent.Light
		}
		if cfg.Link.Color == nil || *cfg.Link.Color != want {
			t.Fatalf("%s: link color: got %v want %q", style, cfg.Link.Color, want)
		}
		if cfg.Strong.Color != nil {
			t.Fatalf("%s: strong text must inherit its color", style)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Setenv("TASKBOARD_TUI_THEME", "dark")

	if got := renderMarkdown("   ", 40); got != "" {
		t.Fatalf("expected empty render; got %q", got)
	}
	out := xansi.Strip(renderMarkdown("## Draft design\n\nSketch the board layout.", 40))
	if !strings.Contains(out, "Draft design") || !strings.Contains(out, "Sketch the board layout.") {
		t.Fatalf("unexpected render:\n%s", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Fatalf("render must not end with a newline")
	}
}

func TestFitWidth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"abc", 1, "a"},
		{"abc", 0, ""},
		{"abc", 3, "abc"},
	}
	for _, tc := range tests {
		if got := fitWidth(tc.in, tc.width); got != tc.want {
			t.Fatalf("fitWidth(%q, %d): got %q want %q", tc.in, tc.width, got, tc.want)
		}
	}
}

func TestNormalizePane(t *testing.T) {
	t.Parallel()

	got := normalizePane("a\nbb\nccc", 2, 2)
	if got != "a \nbb" {
		t.Fatalf("normalizePane: got %q", got)
	}
	got = normalizePane("a", 1, 3)
	if got != "a\n \n " {
		t.Fatalf("normalizePane pad: got %q", got)
	}
}

func TestWrapWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		maxW int
		want []string
	}{
		{"review the design doc", 10, []string{"review the", "design doc"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"", 5, []string{""}},
		{"x", 0, []string{""}},
	}
	for _, tc := range tests {
		got := wrapWords(tc.in, tc.maxW)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("wrapWords(%q, %d): got %q want %q", tc.in, tc.maxW, got, tc.want)
		}
	}
}
