package benchmark

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Report formats.
const (
	FormatTable    = "table"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

var reportHeader = table.Row{
	"Scenario", "Frames", "Objects", "Mode", "FPS", "Mean", "P95", "Max",
	"ID Sw", "Frag", "Coverage", "IDs",
}

// Render formats results as a summary table.
//
// Arguments:
//   - results: Scenario results in display order.
//   - format: FormatTable, FormatCSV or FormatMarkdown. Unknown formats
//     render as a table.
//
// Returns:
//   - string: The rendered report.
func Render(results []PerformanceMetrics, format string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(reportHeader)

	for _, r := range results {
		mode := "byte"
		if r.Scenario.Tracker.SortMode {
			mode = "sort"
		}
		tw.AppendRow(table.Row{
			r.Scenario.Name,
			r.Tracking.Frames,
			r.Scenario.Objects,
			mode,
			fmt.Sprintf("%.0f", r.FramesPerSecond),
			formatLatency(r.Latency.Mean),
			formatLatency(r.Latency.P95),
			formatLatency(r.Latency.Max),
			r.Tracking.IDSwitches,
			r.Tracking.Fragmentations,
			fmt.Sprintf("%.1f%%", r.Tracking.Coverage*100),
			r.Tracking.DistinctIDs,
		})
	}

	configs := make([]table.ColumnConfig, 0, len(reportHeader))
	for i := range reportHeader {
		align := text.AlignRight
		if i == 0 || i == 3 {
			align = text.AlignLeft
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	switch format {
	case FormatCSV:
		return tw.RenderCSV()
	case FormatMarkdown:
		return tw.RenderMarkdown()
	default:
		return tw.Render()
	}
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
}
