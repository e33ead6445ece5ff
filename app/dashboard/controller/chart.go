package controller

import (
	"bytes"
	"net/http"

	"github.com/canopy-network/txdash/pkg/chart"
	"go.uber.org/zap"
)

// renderChart draws the series for both the page and the SVG endpoint.
var renderChart = chart.BarSVG

// HandleChartSVG serves the bar chart alone. No rows means 204.
func (c *Controller) HandleChartSVG(w http.ResponseWriter, r *http.Request) {
	series, err := c.App.Fetcher.Fetch(r.Context(), parseDays(r))
	if err != nil {
		c.logger(r).Warn("chart fetch failed", zap.Error(err))
		http.Error(w, err.Error(), fetchStatus(err))
		return
	}
	if series.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := renderChart(&buf, series.Data, chart.Options{}); err != nil {
		c.logger(r).Error("chart render failed", zap.Error(err))
		http.Error(w, "chart render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}
