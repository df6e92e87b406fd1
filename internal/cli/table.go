package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"yt-allinone/internal/discovery"
	"yt-allinone/internal/model"
)

func renderEntriesTable(w io.Writer, entries []model.Entry, quality model.Quality, onlyAudio bool) error {
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		kind := "regular"
		if discovery.IsShort(e) {
			kind = "short"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			e.ID,
			truncate(e.Title, 48),
			formatDuration(e.Duration),
			formatEstimate(discovery.EstimateSize(e, quality, onlyAudio)),
			kind,
			e.URL,
		})
	}

	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "ID", "TITLE", "DURATION", "EST. SIZE", "KIND", "URL").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	total, unknown := discovery.EstimateTotal(entries, quality, onlyAudio)
	footer := fmt.Sprintf("%d entries, about %s", len(entries), formatBytesIEC(total))
	if unknown > 0 {
		footer += fmt.Sprintf(" (%d without an estimate)", unknown)
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", t.String(), footer)
	return err
}

func formatEstimate(n int64) string {
	if n <= 0 {
		return "?"
	}
	return "~" + formatBytesIEC(n)
}

// formatDuration renders seconds as m:ss or h:mm:ss, "-" when unknown.
func formatDuration(d *float64) string {
	if d == nil || *d < 0 {
		return "-"
	}
	secs := int64(math.Round(*d))
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
