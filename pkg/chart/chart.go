// Package chart draws the hourly series as an SVG bar chart.
package chart

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/canopy-network/txdash/pkg/models"
	"github.com/canopy-network/txdash/pkg/utils"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("chart: no data")

// DefaultHeight matches the fixed chart height of the page.
const DefaultHeight = 500

const (
	minWidth   = 640
	targetPlot = 1200
	sidePad    = 120

	shortSpan   = 48
	minLongGap  = 6
	minShortGap = 3
)

var barColor = drawing.ColorFromHex("4c78a8")

// Options tune the rendered chart. Zero values take defaults.
type Options struct {
	Title  string
	Height int
	// Width is computed from the number of bars when zero.
	Width int
}

// BarSVG writes one bar per hour to w. Bars sit on an hour axis so gaps in
// the series stay visible, and tick labels are drawn whole under the axis.
func BarSVG(w io.Writer, rows []models.HourlyTx, o Options) error {
	if len(rows) == 0 {
		return ErrNoData
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}

	first := rows[0].Hour.UTC()
	span := hourSpan(rows)
	if o.Width <= 0 {
		o.Width = Width(span)
	}

	xs := make([]float64, len(rows))
	ys := make([]float64, len(rows))
	var peak int64
	for i, r := range rows {
		if r.TxCount > peak {
			peak = r.TxCount
		}
		xs[i] = r.Hour.UTC().Sub(first).Hours()
		ys[i] = float64(r.TxCount)
	}

	ch := gochart.Chart{
		Title:      o.Title,
		Height:     o.Height,
		Width:      o.Width,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: gochart.XAxis{
			Style: gochart.Style{FontSize: 8},
			Ticks: Ticks(rows),
		},
		YAxis: gochart.YAxis{
			Range: YRange(peak),
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []gochart.Series{
			gochart.HistogramSeries{
				Style:       gochart.Style{FillColor: barColor, StrokeColor: barColor, StrokeWidth: 0},
				InnerSeries: gochart.ContinuousSeries{XValues: xs, YValues: ys},
			},
		},
	}
	if o.Title == "" {
		ch.TitleStyle = gochart.Style{Hidden: true}
	}

	if err := ch.Render(gochart.SVG, w); err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	return nil
}

// Ticks places labels at day boundaries, plus every six hours on short
// series. Blank ticks half an hour outside the first and last bar pin the
// axis range so the outer bars are not clipped. The first bar keeps its label
// only when the next labelled tick is far enough away not to overlap it.
func Ticks(rows []models.HourlyTx) []gochart.Tick {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0].Hour.UTC()
	span := hourSpan(rows)
	short := span <= shortSpan
	gap := float64(minLongGap)
	if short {
		gap = minShortGap
	}

	ticks := []gochart.Tick{{Value: -0.5}}
	for i, r := range rows {
		text := label(r, i == 0, short)
		if text == "" {
			continue
		}
		x := r.Hour.UTC().Sub(first).Hours()
		if len(ticks) == 2 && ticks[1].Value == 0 && !boundary(first, short) && x-ticks[1].Value < gap {
			ticks = ticks[:1]
		}
		ticks = append(ticks, gochart.Tick{Value: x, Label: text})
	}
	return append(ticks, gochart.Tick{Value: float64(span) - 0.5})
}

// YRange starts at zero and always spans a non-empty interval.
func YRange(peak int64) *gochart.ContinuousRange {
	if peak <= 0 {
		return &gochart.ContinuousRange{Min: 0, Max: 1}
	}
	return &gochart.ContinuousRange{Min: 0, Max: float64(peak) * 1.1}
}

// Width grows with the number of hours drawn so long ranges stay readable.
func Width(hours int) int {
	if hours <= 0 {
		hours = 1
	}
	pitch := utils.Clamp(targetPlot/hours, 4, 30)
	w := hours*pitch + sidePad
	if w < minWidth {
		return minWidth
	}
	return w
}

func hourSpan(rows []models.HourlyTx) int {
	first := rows[0].Hour.UTC()
	last := rows[len(rows)-1].Hour.UTC()
	return int(last.Sub(first)/time.Hour) + 1
}

func boundary(h time.Time, short bool) bool {
	if short {
		return h.Hour()%6 == 0
	}
	return h.Hour() == 0
}

// label marks day boundaries. Short series also get a label every six hours.
func label(r models.HourlyTx, first, short bool) string {
	h := r.Hour.UTC()
	switch {
	case short && (first || h.Hour()%6 == 0):
		return h.Format("01-02 15h")
	case first || h.Hour() == 0:
		return h.Format("01-02")
	default:
		return ""
	}
}
