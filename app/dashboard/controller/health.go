package controller

import (
	"context"
	"net/http"
	"time"
)

// HandleHealth reports whether the result cache backend answers.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	rc := c.App.Fetcher.Cache()
	body := map[string]string{
		"status": "ok",
		"cache":  rc.Name(),
		"mode":   string(c.App.Fetcher.Mode()),
	}
	if err := rc.Health(ctx); err != nil {
		body["status"] = "degraded"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
