package ledgerservice

import (
	"bytes"
	"fmt"

	ledgerdomain "github.com/Black-And-White-Club/score-ledger/app/modules/ledger/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartPalette sets the colours of rendered leaderboard charts.
type ChartPalette struct {
	Background drawing.Color
	Bar        drawing.Color
	Leader     drawing.Color
	Text       drawing.Color
}

// DefaultChartPalette is a dark theme with a gold bar for first place.
var DefaultChartPalette = ChartPalette{
	Background: drawing.ColorFromHex("1b1f24"),
	Bar:        drawing.ColorFromHex("3c8d6e"),
	Leader:     drawing.ColorFromHex("d4a72c"),
	Text:       drawing.ColorFromHex("e6edf3"),
}

const chartLabelLen = 10

// RenderTopChart draws entries as a PNG bar chart in rank order.
func RenderTopChart(entries []ledgerdomain.ScoreEntry, palette ChartPalette) ([]byte, error) {
	if len(entries) == 0 {
		return renderNoDataPlaceholder(palette)
	}

	var maxScore float64
	bars := make([]chart.Value, len(entries))
	for i, e := range entries {
		color := palette.Bar
		if i == 0 {
			color = palette.Leader
		}
		bars[i] = chart.Value{
			Label: fmt.Sprintf("#%d %s", i+1, shortID(e.ParticipantID)),
			Value: float64(e.BestScore),
			Style: chart.Style{FillColor: color, StrokeColor: color},
		}
		if v := float64(e.BestScore); v > maxScore {
			maxScore = v
		}
	}

	width := 120 + 90*len(entries)
	if width < 480 {
		width = 480
	}

	graph := chart.BarChart{
		Title:      "Top scores",
		TitleStyle: chart.Style{FontColor: palette.Text},
		Width:      width,
		Height:     420,
		BarWidth:   60,
		BarSpacing: 30,
		Background: chart.Style{
			FillColor: palette.Background,
			Padding:   chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Canvas: chart.Style{FillColor: palette.Background},
		XAxis:  chart.Style{FontColor: palette.Text, FontSize: 8},
		YAxis: chart.YAxis{
			Style: chart.Style{FontColor: palette.Text},
			// Anchor at zero; go-chart cannot scale a range whose bounds coincide.
			Range: &chart.ContinuousRange{Min: 0, Max: maxScore * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

func renderNoDataPlaceholder(palette ChartPalette) ([]byte, error) {
	const (
		width  = 400
		height = 200
		msg    = "No scores submitted yet"
	)

	graph := chart.Chart{
		Width:      width,
		Height:     height,
		Background: chart.Style{FillColor: palette.Background},
		Canvas:     chart.Style{FillColor: palette.Background},
		Elements: []chart.Renderable{
			func(r chart.Renderer, cb chart.Box, _ chart.Style) {
				r.SetFontColor(palette.Text)
				r.SetFontSize(12.0)
				tb := r.MeasureText(msg)
				x := (cb.Width() - tb.Width()) / 2
				y := (cb.Height() + tb.Height()) / 2
				r.Text(msg, x, y)
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// shortID keeps chart labels legible for long account addresses.
func shortID(id ledgerdomain.ParticipantID) string {
	s := string(id)
	if len(s) <= chartLabelLen {
		return s
	}
	return s[:6] + ".." + s[len(s)-2:]
}
