package report

import (
	"fmt"
	"io"

	"insightpilot/backend/internal/risk"

	"github.com/wcharczuk/go-chart/v2"
)

// RenderRiskChart draws a PNG bar chart with one bar per risk level.
func RenderRiskChart(w io.Writer, counts map[risk.Level]int64) error {
	bars := make([]chart.Value, 0, len(risk.Levels))
	top := 1.0
	for _, level := range risk.Levels {
		n := float64(counts[level])
		if n > top {
			top = n
		}
		bars = append(bars, chart.Value{Value: n, Label: fmt.Sprintf("%s (%d)", level, counts[level])})
	}

	graph := chart.BarChart{
		Title:    "Churn Risk Distribution",
		Height:   512,
		Width:    640,
		BarWidth: 80,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		// fixed range: go-chart rejects a range derived from equal bar values
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render risk chart: %w", err)
	}
	return nil
}
