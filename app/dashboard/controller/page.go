package controller

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/canopy-network/txdash/pkg/chart"
	"github.com/canopy-network/txdash/pkg/fetcher"
	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/i18n"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").ParseFS(templateFS, "templates/*.html"))

const hourLayout = "2006-01-02 15:04"

type tableRow struct {
	Hour  string
	Count string
}

type pageData struct {
	Lang  string
	Dir   string
	Title string

	OtherLabel string
	OtherURL   string

	// Controls are hidden when there is no credential to query with.
	ShowControls bool
	DaysLabel    string
	Apply        string
	TableLabel   string
	Days         int
	MinDays      int
	MaxDays      int
	ShowTable    bool

	Running   string
	Error     string
	Info      string
	Subheader string
	Summary   string
	Cached    string
	AxisHour  string
	AxisCount string
	Chart     template.HTML
	Rows      []tableRow
	Caption   string
}

// HandlePage renders the dashboard.
func (c *Controller) HandlePage(w http.ResponseWriter, r *http.Request) {
	p := c.printer(r)
	days := parseDays(r)
	showTable := parseTable(r)

	data := pageData{
		Lang:         p.Lang(),
		Dir:          p.Dir(),
		Title:        p.T(i18n.MsgTitle),
		OtherLabel:   p.T(i18n.MsgOtherLanguage),
		OtherURL:     pageURL(days, showTable, p.Other()),
		ShowControls: true,
		DaysLabel:    p.T(i18n.MsgDaysLabel),
		Apply:        p.T(i18n.MsgApply),
		TableLabel:   p.T(i18n.MsgShowTable),
		Days:         days,
		MinDays:      flipside.MinDays,
		MaxDays:      flipside.MaxDays,
		ShowTable:    showTable,
		Running:      p.T(i18n.MsgRunning),
		AxisHour:     p.T(i18n.MsgAxisHour),
		AxisCount:    p.T(i18n.MsgAxisCount),
		Caption:      p.T(i18n.MsgCaption),
	}

	status := http.StatusOK
	series, err := c.App.Fetcher.Fetch(r.Context(), days)
	switch {
	case errors.Is(err, fetcher.ErrMissingCredential):
		status = fetchStatus(err)
		data.ShowControls = false
		data.Error = p.T(i18n.MsgMissingKey, c.App.Fetcher.Mode().SecretName())
	case err != nil:
		c.logger(r).Warn("page fetch failed", zap.Int("days", days), zap.Error(err))
		status = fetchStatus(err)
		data.Error = p.T(i18n.MsgQueryFailed, err.Error())
	default:
		data.Days = series.Days
		data.Subheader = p.T(i18n.MsgSubheader, series.Days)
		status = c.fillSeries(r, p, &data, series)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "page.html", data); err != nil {
		c.logger(r).Error("page render failed", zap.Error(err))
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// fillSeries adds the chart, summary and table to data and returns the status
// the page is served with.
func (c *Controller) fillSeries(r *http.Request, p *i18n.Printer, data *pageData, series *fetcher.Series) int {
	if series.Empty() {
		data.Info = p.T(i18n.MsgNoData)
		return http.StatusOK
	}

	var svg bytes.Buffer
	if err := renderChart(&svg, series.Data, chart.Options{}); err != nil {
		c.logger(r).Error("chart render failed", zap.Error(err))
		data.Error = p.T(i18n.MsgQueryFailed, err.Error())
		return http.StatusInternalServerError
	}
	// go-chart output, not user input.
	data.Chart = template.HTML(svg.String())

	data.Summary = p.T(i18n.MsgSummary, series.Total, series.Peak)
	if series.Cached {
		data.Cached = p.T(i18n.MsgCached, series.FetchedAt.UTC().Format(hourLayout)+" UTC")
	}
	if data.ShowTable {
		data.Rows = make([]tableRow, 0, len(series.Data))
		for _, row := range series.Data {
			data.Rows = append(data.Rows, tableRow{
				Hour:  row.Hour.UTC().Format(hourLayout),
				Count: p.Number(row.TxCount),
			})
		}
	}
	return http.StatusOK
}

func pageURL(days int, table bool, lang string) string {
	q := url.Values{}
	q.Set("days", strconv.Itoa(days))
	if table {
		q.Set("table", "1")
	}
	q.Set("lang", lang)
	return "/?" + q.Encode()
}
