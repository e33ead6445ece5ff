package controller

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleHourly returns the hourly series as JSON.
func (c *Controller) HandleHourly(w http.ResponseWriter, r *http.Request) {
	series, err := c.App.Fetcher.Fetch(r.Context(), parseDays(r))
	if err != nil {
		c.logger(r).Warn("hourly fetch failed", zap.Error(err))
		writeError(w, fetchStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, series)
}
