package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
)

// Pastel / adaptive lipgloss styles. Users may disable color with
// NO_COLOR.
var (
	styleHeader  lipgloss.Style
	styleSuccess lipgloss.Style
	styleWarning lipgloss.Style
	styleError   lipgloss.Style
	styleNumber  lipgloss.Style
	styleArrow   lipgloss.Style
	styleSubtle  lipgloss.Style
	styleLabel   lipgloss.Style
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		reset := lipgloss.NewStyle()
		styleHeader = lipgloss.NewStyle().Bold(true)
		styleSuccess = reset
		styleWarning = lipgloss.NewStyle().Bold(true)
		styleError = lipgloss.NewStyle().Bold(true)
		styleNumber = reset
		styleArrow = reset
		styleSubtle = reset
		styleLabel = reset
		return
	}

	pastelBlue := lipgloss.AdaptiveColor{Light: "#3366cc", Dark: "#8fb3ff"}
	pastelTeal := lipgloss.AdaptiveColor{Light: "#2b7a78", Dark: "#7ad1c4"}
	pastelRose := lipgloss.AdaptiveColor{Light: "#ad5d7d", Dark: "#ffb3c9"}
	pastelGold := lipgloss.AdaptiveColor{Light: "#b58b00", Dark: "#ffd666"}
	pastelGreen := lipgloss.AdaptiveColor{Light: "#2f7d32", Dark: "#9ada9f"}
	pastelGray := lipgloss.AdaptiveColor{Light: "#6b6f76", Dark: "#9aa0aa"}
	pastelEdge := lipgloss.AdaptiveColor{Light: "#7a7f88", Dark: "#aab2bd"}

	styleHeader = lipgloss.NewStyle().Foreground(pastelBlue).Bold(true)
	styleSuccess = lipgloss.NewStyle().Foreground(pastelGreen)
	styleWarning = lipgloss.NewStyle().Foreground(pastelGold).Bold(true)
	styleError = lipgloss.NewStyle().Foreground(pastelRose).Bold(true)
	styleNumber = lipgloss.NewStyle().Foreground(pastelGold).Bold(true)
	styleArrow = lipgloss.NewStyle().Foreground(pastelEdge)
	styleSubtle = lipgloss.NewStyle().Foreground(pastelGray)
	styleLabel = lipgloss.NewStyle().Foreground(pastelTeal)
}

func renderError(err error) string {
	return styleError.Render("✗ ") + err.Error()
}

// renderReport prints findings as numbered source → sink chains,
// trimmed to the terminal width.
func renderReport(w io.Writer, g *flowgraph.Graph, queryName string, report *taint.Report) {
	width := 80
	if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
		width = tw
	}

	fmt.Fprintln(w, styleHeader.Render(queryName)+
		styleSubtle.Render(fmt.Sprintf(" (%d findings)", len(report.Findings))))

	if len(report.Findings) == 0 {
		fmt.Fprintln(w, styleSuccess.Render("✓ no tainted flows found"))
	}

	for i, f := range report.Findings {
		line := fmt.Sprintf("%s %s %s %s",
			styleNumber.Render(fmt.Sprintf("%d.", i+1)),
			renderNode(f.Source),
			styleArrow.Render("⇒"),
			renderNode(f.Sink))
		fmt.Fprintln(w, trim(line, width))

		if !f.Path.Empty() {
			chain := f.Path.Format(g)
			chain = strings.ReplaceAll(chain, " → ", styleArrow.Render(" → "))
			fmt.Fprintln(w, trim(styleSubtle.Render("   via ")+chain, width))
		}
	}

	if report.Truncated {
		fmt.Fprintln(w, styleWarning.Render("! analysis truncated, results may be incomplete"))
	}
}

func renderNode(n *flowgraph.Node) string {
	label := n.Label
	if label == "" {
		label = fmt.Sprintf("#%d", n.ID)
	}
	out := styleLabel.Render(label)
	if n.Pos.File != "" {
		out += styleSubtle.Render(fmt.Sprintf(" (%s)", n.Pos))
	}
	return out
}

// trim cuts a rendered line down to the terminal width, counting
// printable cells rather than styled bytes.
func trim(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
