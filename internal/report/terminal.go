package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/nao1215/portalshot/internal/model"
)

// WriteIndex prints the captured URLs in first-seen order, colored like the
// report, followed by the group count. noColor prints plain text.
func WriteIndex(w io.Writer, order []model.Target, groups []model.Group, noColor bool) {
	if len(order) == 0 {
		fmt.Fprintln(w, "\nNo portal was captured.")
		return
	}

	groupOf := make(map[string]int)
	for i, g := range groups {
		for _, u := range g.URLs {
			groupOf[u] = i + 1
		}
	}

	fmt.Fprintln(w)
	if noColor {
		fmt.Fprintln(w, Title)
		for i, target := range order {
			fmt.Fprintf(w, "  %3d  %-8s  %s\n", i+1, groupLabel(groupOf, target.Raw), target.Raw)
		}
		fmt.Fprintf(w, "\n%d URLs, %d distinct pages\n", len(order), len(groups))
		return
	}

	t := table.New().
		Headers("#", "Group", "URL").
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if col == 2 && row >= 0 && row < len(order) {
				c := ColorFor(order[row].Class())
				// HTTPS keeps the terminal's default foreground.
				if c == black {
					return lipgloss.NewStyle()
				}
				return lipgloss.NewStyle().Foreground(lipgloss.Color(c.Hex()))
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for i, target := range order {
		t.Row(strconv.Itoa(i+1), groupLabel(groupOf, target.Raw), target.Raw)
	}

	title := lipgloss.NewStyle().Bold(true).Render(Title)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d URLs, %d distinct pages\n", len(order), len(groups))
}

func groupLabel(groupOf map[string]int, url string) string {
	if g, ok := groupOf[url]; ok {
		return strconv.Itoa(g)
	}
	return "-"
}
