package controller

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/i18n"
)

// parseDays reads ?days=, clamped to the allowed range. Missing or
// non-numeric values give the default.
func parseDays(r *http.Request) int {
	v := strings.TrimSpace(r.URL.Query().Get("days"))
	if v == "" {
		return flipside.DefaultDays
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return flipside.DefaultDays
	}
	return flipside.ClampDays(n)
}

// parseTable reads the "show table" checkbox.
func parseTable(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("table")) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

func (c *Controller) printer(r *http.Request) *i18n.Printer {
	tag := i18n.Resolve(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), c.App.Config.DefaultLang)
	return i18n.NewPrinter(tag)
}
