package colors

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha color palette
var (
	// Base colors
	Base     = lipgloss.Color("#1e1e2e") // Dark background
	Mantle   = lipgloss.Color("#181825") // Darker background
	Crust    = lipgloss.Color("#11111b") // Darkest background
	Surface0 = lipgloss.Color("#313244") // Surface colors
	Surface1 = lipgloss.Color("#45475a")
	Surface2 = lipgloss.Color("#585b70")
	Overlay0 = lipgloss.Color("#6c7086") // Overlay colors
	Overlay1 = lipgloss.Color("#7f849c")
	Overlay2 = lipgloss.Color("#9399b2")
	Subtext0 = lipgloss.Color("#a6adc8") // Text colors
	Subtext1 = lipgloss.Color("#bac2de")
	Text     = lipgloss.Color("#cdd6f4") // Main text

	// Accent colors
	Lavender  = lipgloss.Color("#b4befe") // Light purple
	Blue      = lipgloss.Color("#89b4fa") // Blue
	Sapphire  = lipgloss.Color("#74c7ec") // Light blue
	Sky       = lipgloss.Color("#89dceb") // Sky blue
	Teal      = lipgloss.Color("#94e2d5") // Teal
	Green     = lipgloss.Color("#a6e3a1") // Green
	Yellow    = lipgloss.Color("#f9e2af") // Yellow
	Peach     = lipgloss.Color("#fab387") // Orange
	Maroon    = lipgloss.Color("#eba0ac") // Light red
	Red       = lipgloss.Color("#f38ba8") // Red
	Mauve     = lipgloss.Color("#cba6f7") // Purple
	Pink      = lipgloss.Color("#f5c2e7") // Pink
	Flamingo  = lipgloss.Color("#f2cdcd") // Light pink
	Rosewater = lipgloss.Color("#f5e0dc") // Lightest pink
)

// Semantic aliases
var (
	LineOn   = Green
	LineOff  = Surface2
	Received = Sky
	Sent     = Peach
	Failure  = Red
)
