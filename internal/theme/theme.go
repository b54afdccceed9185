package theme

import (
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// SemanticRoles defines stable semantic color slots used across the UI.
//
// Screens should depend on these roles rather than palette literals.
type SemanticRoles struct {
	Primary string
	Accent  string
	Muted   string
	Danger  string
	Warning string
	Success string
	Border  string
}

// Style describes presentational attributes for a UI element.
type Style struct {
	Foreground string
	Background string
	Bold       bool
}

// Render builds a lipgloss style from s using r, so that per-connection
// color profiles are honoured. A nil renderer uses the process default.
func (s Style) Render(r *lipgloss.Renderer) lipgloss.Style {
	var out lipgloss.Style
	if r != nil {
		out = r.NewStyle()
	} else {
		out = lipgloss.NewStyle()
	}
	if s.Foreground != "" {
		out = out.Foreground(lipgloss.Color(s.Foreground))
	}
	if s.Background != "" {
		out = out.Background(lipgloss.Color(s.Background))
	}
	return out.Bold(s.Bold)
}

// StyleSet provides strongly-typed styles for the dashboard surfaces.
type StyleSet struct {
	Header        Style
	Sidebar       Style
	SidebarActive Style
	Body          Style
	Card          Style
	Prompt        Style
	Warning       Style
}

// Bundle contains all display styles needed for one resolved theme.
type Bundle struct {
	StyleSet
	Roles SemanticRoles
}

// TermProfile describes terminal rendering capabilities derived from TERM.
type TermProfile struct {
	Colors    int
	TrueColor bool
	IsTTY     bool
}

var (
	termProfileCache sync.Map
	knownProfiles    = map[string]TermProfile{
		"dumb":           {Colors: 0, TrueColor: false, IsTTY: false},
		"ansi":           {Colors: 8, TrueColor: false, IsTTY: true},
		"linux":          {Colors: 16, TrueColor: false, IsTTY: true},
		"xterm":          {Colors: 16, TrueColor: false, IsTTY: true},
		"xterm-256color": {Colors: 256, TrueColor: false, IsTTY: true},
		"screen":         {Colors: 8, TrueColor: false, IsTTY: true},
		"tmux":           {Colors: 256, TrueColor: false, IsTTY: true},
		"vt100":          {Colors: 8, TrueColor: false, IsTTY: true},
		"xterm-kitty":    {Colors: 1 << 24, TrueColor: true, IsTTY: true},
		"wezterm":        {Colors: 1 << 24, TrueColor: true, IsTTY: true},
	}
)

var palettes = map[Resolved]Bundle{
	ResolvedDark: {
		StyleSet: StyleSet{
			Header:        Style{Foreground: "#F8FAFC", Background: "#0F172A", Bold: true},
			Sidebar:       Style{Foreground: "#94A3B8", Background: "#111827"},
			SidebarActive: Style{Foreground: "#0F172A", Background: "#F97316", Bold: true},
			Body:          Style{Foreground: "#E2E8F0", Background: "#0B1220"},
			Card:          Style{Foreground: "#F1F5F9", Background: "#1E293B"},
			Prompt:        Style{Foreground: "#FDBA74", Background: "#0F172A", Bold: true},
			Warning:       Style{Foreground: "#FECACA", Background: "#7F1D1D", Bold: true},
		},
		Roles: SemanticRoles{Primary: "#F8FAFC", Accent: "#F97316", Muted: "#94A3B8", Danger: "#F87171", Warning: "#FBBF24", Success: "#4ADE80", Border: "#334155"},
	},
	ResolvedLight: {
		StyleSet: StyleSet{
			Header:        Style{Foreground: "#0F172A", Background: "#FFFFFF", Bold: true},
			Sidebar:       Style{Foreground: "#475569", Background: "#F1F5F9"},
			SidebarActive: Style{Foreground: "#FFFFFF", Background: "#EA580C", Bold: true},
			Body:          Style{Foreground: "#1E293B", Background: "#F8FAFC"},
			Card:          Style{Foreground: "#0F172A", Background: "#FFFFFF"},
			Prompt:        Style{Foreground: "#C2410C", Background: "#FFFFFF", Bold: true},
			Warning:       Style{Foreground: "#991B1B", Background: "#FEE2E2", Bold: true},
		},
		Roles: SemanticRoles{Primary: "#0F172A", Accent: "#EA580C", Muted: "#64748B", Danger: "#DC2626", Warning: "#D97706", Success: "#16A34A", Border: "#CBD5E1"},
	},
}

// BundleFor returns the style bundle for a resolved theme on a terminal.
//
// Terminals without color support get a monochrome bundle regardless of the
// resolved theme. Unknown resolved values fall back to light.
func BundleFor(resolved Resolved, term string) Bundle {
	profile := DetectTermProfile(term)
	if !profile.IsTTY || profile.Colors == 0 {
		return monochromeBundle()
	}
	if b, ok := palettes[resolved]; ok {
		return b
	}
	return palettes[ResolvedLight]
}

// DetectTermProfile maps TERM to a terminal capability profile.
func DetectTermProfile(term string) TermProfile {
	norm := strings.ToLower(strings.TrimSpace(term))
	if cached, ok := termProfileCache.Load(norm); ok {
		return cached.(TermProfile)
	}

	profile := detectTermProfileUncached(norm)
	termProfileCache.Store(norm, profile)
	return profile
}

func detectTermProfileUncached(norm string) TermProfile {
	if norm == "" {
		return TermProfile{Colors: 0, TrueColor: false, IsTTY: false}
	}

	if p, ok := knownProfiles[norm]; ok {
		return p
	}

	profile := TermProfile{Colors: 16, TrueColor: false, IsTTY: true}
	if strings.Contains(norm, "truecolor") || strings.Contains(norm, "24bit") || strings.Contains(norm, "kitty") || strings.Contains(norm, "wezterm") {
		profile.TrueColor = true
		profile.Colors = 1 << 24
	}
	if strings.Contains(norm, "256") {
		profile.Colors = 256
	}
	if strings.Contains(norm, "dumb") {
		profile = TermProfile{Colors: 0, TrueColor: false, IsTTY: false}
	}
	if strings.Contains(norm, "screen") {
		profile.Colors = 8
	}

	return profile
}

func monochromeBundle() Bundle {
	return Bundle{
		StyleSet: StyleSet{
			Header:        Style{Bold: true},
			Sidebar:       Style{},
			SidebarActive: Style{Bold: true},
			Body:          Style{},
			Card:          Style{},
			Prompt:        Style{Bold: true},
			Warning:       Style{Bold: true},
		},
	}
}
