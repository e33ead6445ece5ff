// Package i18n holds the Persian and English strings of the dashboard.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	MsgTitle         = "title"
	MsgMissingKey    = "missing_key"
	MsgDaysLabel     = "days_label"
	MsgRunning       = "running"
	MsgQueryFailed   = "query_failed"
	MsgSubheader     = "subheader"
	MsgNoData        = "no_data"
	MsgAxisHour      = "axis_hour"
	MsgAxisCount     = "axis_count"
	MsgTooltipCount  = "tooltip_count"
	MsgShowTable     = "show_table"
	MsgApply         = "apply"
	MsgSummary       = "summary"
	MsgCached        = "cached"
	MsgCaption       = "caption"
	MsgOtherLanguage = "other_language"
)

var translations = map[language.Tag]map[string]string{
	language.Persian: {
		MsgTitle:         "نمودار ستونی تراکنش‌ها (ساعتی) - Flipside Data",
		MsgMissingKey:    "کلید API پیدا نشد. لطفاً کلید %s را در مخزن اسرار وارد کنید.",
		MsgDaysLabel:     "روزهای گذشته برای نمایش",
		MsgRunning:       "در حال اجرای کوئری روی Flipside...",
		MsgQueryFailed:   "اجرای کوئری ناموفق بود: %s",
		MsgSubheader:     "تعداد تراکنش‌ها - هر ساعت در %d روز گذشته",
		MsgNoData:        "نتیجه‌ای برای نمایش وجود ندارد.",
		MsgAxisHour:      "ساعت",
		MsgAxisCount:     "تعداد تراکنش‌های یکتا",
		MsgTooltipCount:  "تعداد تراکنش",
		MsgShowTable:     "نمایش جدول داده‌ها",
		MsgApply:         "نمایش",
		MsgSummary:       "مجموع: %d، بیشترین در یک ساعت: %d",
		MsgCached:        "از حافظه نهان، دریافت‌شده در %s",
		MsgCaption:       "تذکر: کلید API را در مخزن اسرار قرار دهید تا امنیت حفظ شود.",
		MsgOtherLanguage: "English",
	},
	language.English: {
		MsgTitle:         "Hourly transactions bar chart - Flipside Data",
		MsgMissingKey:    "API key not found. Please add %s to the secret store.",
		MsgDaysLabel:     "Past days to show",
		MsgRunning:       "Running the query on Flipside...",
		MsgQueryFailed:   "Query failed: %s",
		MsgSubheader:     "Transactions per hour over the last %d days",
		MsgNoData:        "No results to show.",
		MsgAxisHour:      "Hour",
		MsgAxisCount:     "Unique transactions",
		MsgTooltipCount:  "Transactions",
		MsgShowTable:     "Show data table",
		MsgApply:         "Show",
		MsgSummary:       "Total: %d, busiest hour: %d",
		MsgCached:        "Served from cache, fetched at %s",
		MsgCaption:       "Note: keep the API key in the secret store so it stays private.",
		MsgOtherLanguage: "فارسی",
	},
}

var (
	supported = []language.Tag{language.Persian, language.English}
	matcher   = language.NewMatcher(supported)
	cat       = buildCatalog()
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				panic(fmt.Sprintf("i18n: %s/%s: %v", tag, key, err))
			}
		}
	}
	return b
}

// Printer formats dashboard strings in one language.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a Printer for tag, which should be one of the
// supported languages.
func NewPrinter(tag language.Tag) *Printer {
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// T formats the message stored under key.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Number formats n with the language's digits and grouping.
func (p *Printer) Number(n int64) string {
	return p.p.Sprintf("%d", n)
}

// Lang is the BCP 47 code, e.g. "fa".
func (p *Printer) Lang() string { return p.tag.String() }

// Dir is the text direction for the html dir attribute.
func (p *Printer) Dir() string {
	if p.tag == language.Persian {
		return "rtl"
	}
	return "ltr"
}

// Other is the code of the language the page can switch to.
func (p *Printer) Other() string {
	if p.tag == language.Persian {
		return language.English.String()
	}
	return language.Persian.String()
}

// Resolve picks the page language from the lang query parameter, then the
// Accept-Language header, then def. Persian is the last resort.
func Resolve(query, acceptLanguage, def string) language.Tag {
	if tag, ok := match(query); ok {
		return tag
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := matcher.Match(tags...); conf != language.No {
				return supported[idx]
			}
		}
	}
	if tag, ok := match(def); ok {
		return tag
	}
	return language.Persian
}

func match(s string) (language.Tag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, false
	}
	t, err := language.Parse(s)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		return language.Und, false
	}
	return supported[idx], true
}
