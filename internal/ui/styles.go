package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual style for the assistant.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	Success lipgloss.Color
	Error   lipgloss.Color
	Muted   lipgloss.Color

	Text    lipgloss.Color
	TextDim lipgloss.Color
}

// DefaultTheme returns the default color theme.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Secondary: lipgloss.Color("#06B6D4"), // Cyan
		Accent:    lipgloss.Color("#F59E0B"), // Amber

		Success: lipgloss.Color("#10B981"), // Emerald
		Error:   lipgloss.Color("#EF4444"), // Red
		Muted:   lipgloss.Color("#6B7280"), // Gray

		Text:    lipgloss.Color("#F9FAFB"), // Near white
		TextDim: lipgloss.Color("#9CA3AF"), // Gray
	}
}

// Styles contains all the styled components for the UI.
type Styles struct {
	App lipgloss.Style

	BannerTitle lipgloss.Style

	Prompt lipgloss.Style

	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	SystemMessage    lipgloss.Style
	ErrorMessage     lipgloss.Style

	SQLBox     lipgloss.Style
	SQLText    lipgloss.Style
	ContextBox lipgloss.Style
	DocTitle   lipgloss.Style
	DocBody    lipgloss.Style

	TableHeader lipgloss.Style
	TableCell   lipgloss.Style

	StatusText lipgloss.Style
	StateLabel lipgloss.Style

	HelpKey   lipgloss.Style
	HelpValue lipgloss.Style
	HelpBar   lipgloss.Style
}

// NewStyles creates styled components from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		BannerTitle: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		Prompt: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),

		UserMessage: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true).
			PaddingLeft(2),

		AssistantMessage: lipgloss.NewStyle().
			Foreground(t.Text).
			PaddingLeft(2),

		SystemMessage: lipgloss.NewStyle().
			Foreground(t.Muted).
			Italic(true).
			PaddingLeft(2),

		ErrorMessage: lipgloss.NewStyle().
			Foreground(t.Error).
			Bold(true).
			PaddingLeft(2),

		SQLBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Accent).
			Padding(0, 1).
			MarginLeft(2).
			MarginTop(1),

		SQLText: lipgloss.NewStyle().
			Foreground(t.Secondary),

		ContextBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1).
			MarginLeft(2).
			MarginTop(1),

		DocTitle: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),

		DocBody: lipgloss.NewStyle().
			Foreground(t.TextDim),

		TableHeader: lipgloss.NewStyle().
			Foreground(t.Secondary).
			Bold(true),

		TableCell: lipgloss.NewStyle().
			Foreground(t.Text),

		StatusText: lipgloss.NewStyle().
			Foreground(t.TextDim),

		StateLabel: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Muted),

		HelpValue: lipgloss.NewStyle().
			Foreground(t.TextDim),

		HelpBar: lipgloss.NewStyle().
			Foreground(t.Muted).
			MarginTop(1),
	}
}

// DefaultStyles returns styles with the default theme.
func DefaultStyles() Styles {
	return NewStyles(DefaultTheme())
}

// Banner returns the ASCII art banner.
func Banner() string {
	return `
 ╔═══════════════════════════════════════════════════════╗
 ║   ███████╗ ██████╗ ██╗     ███████╗ █████╗  ██████╗   ║
 ║   ██╔════╝██╔═══██╗██║     ██╔════╝██╔══██╗██╔════╝   ║
 ║   ███████╗██║   ██║██║     ███████╗███████║██║  ███╗  ║
 ║   ╚════██║██║▄▄ ██║██║     ╚════██║██╔══██║██║   ██║  ║
 ║   ███████║╚██████╔╝███████╗███████║██║  ██║╚██████╔╝  ║
 ║   ╚══════╝ ╚══▀▀═╝ ╚══════╝╚══════╝╚═╝  ╚═╝ ╚═════╝   ║
 ║                                                       ║
 ║        Natural language to SQL, with receipts         ║
 ╚═══════════════════════════════════════════════════════╝`
}
