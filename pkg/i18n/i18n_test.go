package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		accept string
		def    string
		want   language.Tag
	}{
		{name: "query wins", query: "en", accept: "fa-IR", def: "fa", want: language.English},
		{name: "regional query", query: "en-GB", def: "fa", want: language.English},
		{name: "accept language", accept: "de-DE, en;q=0.8", def: "fa", want: language.English},
		{name: "persian header", accept: "fa-IR,fa;q=0.9", def: "en", want: language.Persian},
		{name: "default", def: "en", want: language.English},
		{name: "garbage falls back to default", query: "!!", accept: "zz-ZZ", def: "fa", want: language.Persian},
		{name: "nothing configured", want: language.Persian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.query, tt.accept, tt.def))
		})
	}
}

func TestEveryKeyTranslated(t *testing.T) {
	fa := translations[language.Persian]
	en := translations[language.English]
	assert.Equal(t, len(fa), len(en))
	for key := range fa {
		_, ok := en[key]
		assert.True(t, ok, "english is missing %s", key)
	}
}

func TestPrinter(t *testing.T) {
	en := NewPrinter(language.English)
	assert.Equal(t, "Transactions per hour over the last 7 days", en.T(MsgSubheader, 7))
	assert.Equal(t, "API key not found. Please add FLIPSIDE_API_KEY to the secret store.", en.T(MsgMissingKey, "FLIPSIDE_API_KEY"))
	assert.Equal(t, "ltr", en.Dir())
	assert.Equal(t, "en", en.Lang())
	assert.Equal(t, "fa", en.Other())

	fa := NewPrinter(language.Persian)
	assert.Equal(t, "rtl", fa.Dir())
	assert.Equal(t, "نتیجه‌ای برای نمایش وجود ندارد.", fa.T(MsgNoData))
	assert.Equal(t, "en", fa.Other())
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "1,234,567", NewPrinter(language.English).Number(1234567))
	assert.NotEqual(t, "1234567", NewPrinter(language.Persian).Number(1234567))
}
