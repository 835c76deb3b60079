package app

import "github.com/charmbracelet/lipgloss"

var (
	chromeBG        = lipgloss.Color("#070B14")
	panelBorder     = lipgloss.Color("#34507A")
	accentPrimary   = lipgloss.Color("#FACC15")
	accentSecondary = lipgloss.Color("#7DD3FC")
	mutedText       = lipgloss.Color("#8B9BB4")
	warningText     = lipgloss.Color("#FF6B6B")
	anomalyText     = lipgloss.Color("#F97316")
	barEmpty        = lipgloss.Color("#1E2A3D")
	barPalette      = []lipgloss.Color{
		lipgloss.Color("#FACC15"),
		lipgloss.Color("#7DD3FC"),
		lipgloss.Color("#A78BFA"),
		lipgloss.Color("#34D399"),
	}
)

var (
	headerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(accentPrimary)

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	statusStyle = lipgloss.NewStyle().
			Foreground(accentSecondary).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(warningText).
			Bold(true)

	anomalyStyle = lipgloss.NewStyle().
			Foreground(anomalyText).
			Bold(true)

	panelTitleStyle = lipgloss.NewStyle().
			Foreground(accentPrimary).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(accentSecondary).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(accentPrimary).
			Bold(true)

	buttonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0F19")).
			Background(accentPrimary).
			Padding(0, 1).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(panelBorder).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedText)

	selectedLineStyle = lipgloss.NewStyle().
				Foreground(accentPrimary).
				Bold(true)
)

func mutedTextStyle(text string) string {
	return lipgloss.NewStyle().Foreground(mutedText).Render(text)
}

func renderPanel(title, body string, width, height int, focused bool) string {
	borderColor := panelBorder
	if focused {
		borderColor = accentPrimary
	}
	style := panelStyle.Copy().
		BorderForeground(borderColor).
		Width(width).
		Height(height)

	titleLine := panelTitleStyle.Render(title)
	return style.Render(titleLine + "\n" + body)
}
