// Package components holds small lipgloss renderers shared by text reports.
package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/sabaio/qaeval/internal/ui/theme"
)

// AccuracyBar displays a horizontal bar filled in proportion to an accuracy
// in [0,1], colored by grade.
type AccuracyBar struct {
	Label       string
	Accuracy    float64
	ShowPercent bool
	Width       int
}

// NewAccuracyBar creates a new accuracy bar.
func NewAccuracyBar(label string, accuracy float64, showPercent bool, width int) AccuracyBar {
	return AccuracyBar{
		Label:       label,
		Accuracy:    accuracy,
		ShowPercent: showPercent,
		Width:       width,
	}
}

// View renders the bar.
func (p AccuracyBar) View() string {
	var result string

	if p.Label != "" {
		result += theme.Label.Render(p.Label) + "  "
	}

	labelWidth := lipgloss.Width(result)
	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6 // " 100%"
	}

	barWidth := p.Width - labelWidth - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * p.Accuracy)
	filled = min(max(filled, 0), barWidth)
	empty := barWidth - filled

	result += lipgloss.NewStyle().
		Background(theme.ScoreColor(p.Accuracy)).
		Render(strings.Repeat(" ", filled))
	result += lipgloss.NewStyle().
		Background(theme.Border).
		Render(strings.Repeat(" ", empty))

	if p.ShowPercent {
		result += lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Render(fmt.Sprintf("  %d%%", int(p.Accuracy*100)))
	}

	return result
}

// FailureStrip draws one cell per record position, marking failures. When
// there are more positions than Width, each cell covers a bucket of
// positions and is marked if any of them failed.
type FailureStrip struct {
	Total    int
	Failures []int // 1-based positions
	Width    int
}

// Cells returns the failure flag of every cell.
func (s FailureStrip) Cells() []bool {
	if s.Total <= 0 {
		return nil
	}
	n := s.Total
	if s.Width > 0 && n > s.Width {
		n = s.Width
	}
	cells := make([]bool, n)
	for _, pos := range s.Failures {
		if pos < 1 || pos > s.Total {
			continue
		}
		cells[(pos-1)*n/s.Total] = true
	}
	return cells
}

// View renders the strip.
func (s FailureStrip) View() string {
	ok := lipgloss.NewStyle().Foreground(theme.Success)
	bad := lipgloss.NewStyle().Foreground(theme.Error)

	var b strings.Builder
	for _, failed := range s.Cells() {
		if failed {
			b.WriteString(bad.Render("█"))
		} else {
			b.WriteString(ok.Render("▁"))
		}
	}
	return b.String()
}
