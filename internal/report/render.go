package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"gopkg.in/yaml.v3"

	"github.com/sabaio/qaeval/internal/pattern"
	"github.com/sabaio/qaeval/internal/ui/components"
	"github.com/sabaio/qaeval/internal/ui/theme"
)

const barWidth = 48

// Format selects how a summary is written.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
	}
}

// Encode writes the summary to w in the given format.
func Encode(w io.Writer, s *Summary, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		return RenderText(w, s)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// RenderText writes a human-readable report. Colors are downsampled to what
// w supports, so non-terminal writers receive plain text.
func RenderText(w io.Writer, s *Summary) error {
	var b strings.Builder

	b.WriteString(theme.Title.Render(fmt.Sprintf("Evaluation report (%s)", s.Mode)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n",
		theme.Label.Render("Overall deficiency:"),
		theme.Score(1-s.OverallDeficiency).Render(formatFloat(s.OverallDeficiency)))

	if len(s.Categories) == 0 {
		b.WriteString(theme.Hint.Render("No records evaluated."))
		b.WriteString("\n")
		_, err := lipgloss.Fprint(w, b.String())
		return err
	}

	correct, total := s.Categories.totals()
	fmt.Fprintf(&b, "%s\n", components.NewAccuracyBar("Accuracy:", float64(correct)/float64(total), true, barWidth).View())

	b.WriteString(theme.Section.Render("Categories"))
	b.WriteString("\n")
	b.WriteString(categoryTable(s.Categories))
	b.WriteString("\n")

	b.WriteString(theme.Section.Render("Global failures"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Positions:"), theme.Value.Render(formatInts(s.GlobalFailures)))
	fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Timeline:"),
		components.FailureStrip{Total: total, Failures: s.GlobalFailures, Width: barWidth}.View())
	writePattern(&b, s.GlobalPattern)

	_, err := lipgloss.Fprint(w, b.String())
	return err
}

func categoryTable(cats Categories) string {
	rows := make([][]string, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, []string{
			c.Name,
			formatPercent(c.Accuracy),
			fmt.Sprintf("%d/%d", c.Correct, c.Total),
			formatInts(c.FailPositions),
			formatRegion(c.Pattern.Region),
			strconv.Itoa(c.Pattern.LongestStreak),
			formatAvgGap(c.Pattern.AvgGap),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(theme.TableBorder).
		Headers("Category", "Accuracy", "Correct", "Fail positions", "Region", "Streak", "Avg gap").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.TableHeader
			}
			if col == 1 {
				return theme.TableCell.Foreground(theme.ScoreColor(cats[row].Accuracy))
			}
			return theme.TableCell
		})
	return t.Render()
}

func writePattern(b *strings.Builder, p pattern.Summary) {
	fmt.Fprintf(b, "%s %s\n", theme.Label.Render("Region:"), theme.Value.Render(formatRegion(p.Region)))
	fmt.Fprintf(b, "%s %s\n", theme.Label.Render("Longest streak:"), theme.Value.Render(strconv.Itoa(p.LongestStreak)))
	fmt.Fprintf(b, "%s %s\n", theme.Label.Render("Average gap:"), theme.Value.Render(formatAvgGap(p.AvgGap)))
	fmt.Fprintf(b, "%s %s\n", theme.Label.Render("Gaps:"), theme.Value.Render(formatInts(p.Gaps)))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func formatPercent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 1, 64) + "%"
}

func formatAvgGap(g *float64) string {
	if g == nil {
		return "-"
	}
	return strconv.FormatFloat(*g, 'f', 2, 64)
}

func formatRegion(r pattern.Region) string {
	if !r.Defined() {
		return "-"
	}
	return string(r)
}

func formatInts(in []int) string {
	if len(in) == 0 {
		return "none"
	}
	parts := make([]string, len(in))
	for i, n := range in {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}
