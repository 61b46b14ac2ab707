package ui

import "github.com/charmbracelet/lipgloss"

// Gruvbox palette; each colour carries a light and a dark terminal variant.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#7C6F64", Dark: "#7C6F64"}
	colorGreen  = lipgloss.AdaptiveColor{Light: "#79740E", Dark: "#98971A"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#B57614", Dark: "#D79921"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#076678", Dark: "#458588"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#9D0006", Dark: "#CC241D"}
	colorSubtle = lipgloss.AdaptiveColor{Light: "#928374", Dark: "#665C54"}
	colorFG     = lipgloss.AdaptiveColor{Light: "#3C3836", Dark: "#EBDBB2"}
	colorDim    = lipgloss.AdaptiveColor{Light: "#BDAE93", Dark: "#504945"}
)

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

func boxed(border lipgloss.TerminalColor, v, h int) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(v, h)
}

var (
	styleTitle        = fg(colorGreen).Bold(true)
	styleSubtitle     = fg(colorSubtle)
	styleHint         = fg(colorSubtle)
	styleDimItem      = fg(colorSubtle)
	styleDivider      = fg(colorDim)
	styleNormalItem   = fg(colorFG)
	styleSelectedItem = fg(colorYellow).Bold(true)
	styleTag          = fg(colorBlue)
	styleLabel        = fg(colorBlue).Bold(true)
	styleSuccess      = fg(colorGreen)
	styleError        = fg(colorRed)
	styleConfirm      = fg(colorRed).Bold(true)

	styleInputBorder = boxed(colorAccent, 0, 1)
	styleInputActive = boxed(colorYellow, 0, 1)
	stylePanelBorder = boxed(colorBlue, 1, 2)

	// right-hand rule only
	styleSidebar = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(colorDim).
			PaddingRight(1)
)
