// Package normalize turns the differently shaped answers of the data API into
// a sorted hourly series.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/canopy-network/txdash/pkg/models"
)

const (
	hourColumn  = "hour"
	countColumn = "tx_count"
)

var (
	// ErrUnexpectedShape is returned when the answer is neither a row list,
	// a wrapper around one, nor a columnar page.
	ErrUnexpectedShape = errors.New("unexpected response shape")
	// ErrMissingColumn is returned when rows lack the hour or count column.
	ErrMissingColumn = errors.New("missing column")
	// ErrRemote is returned when the answer carries an error member, which
	// some gateways send with a 200 status.
	ErrRemote = errors.New("remote error")
)

// wrapper keys tried in order when the answer is an object.
var wrapperKeys = []string{"results", "records", "data", "result"}

var hourLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Rows decodes raw into hourly points sorted by hour.
func Rows(raw json.RawMessage) ([]models.HourlyTx, error) {
	records, err := extract(bytes.TrimSpace(raw), 0)
	if err != nil {
		return nil, err
	}

	out := make([]models.HourlyTx, 0, len(records))
	for i, rec := range records {
		hv, ok := lookup(rec, hourColumn)
		if !ok {
			if i == 0 {
				return nil, fmt.Errorf("%w: %s", ErrMissingColumn, hourColumn)
			}
			return nil, fmt.Errorf("row %d: %w: %s", i, ErrMissingColumn, hourColumn)
		}
		hour, err := ParseHour(hv)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		cv, _ := lookup(rec, countColumn)
		out = append(out, models.HourlyTx{Hour: hour, TxCount: Count(cv)})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Hour.Before(out[j].Hour) })
	return out, nil
}

// extract finds the list of records inside raw. depth bounds how many
// wrapper objects are unwrapped.
func extract(raw []byte, depth int) ([]map[string]any, error) {
	if len(raw) == 0 || depth > 3 {
		return nil, ErrUnexpectedShape
	}

	switch raw[0] {
	case '[':
		var list []map[string]any
		if err := decode(raw, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := decode(raw, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedShape, err)
		}
		if msg, ok := remoteError(obj["error"]); ok {
			return nil, fmt.Errorf("%w: %s", ErrRemote, msg)
		}
		if _, ok := obj["columnNames"]; ok {
			return columnar(obj)
		}
		for _, key := range wrapperKeys {
			if inner, ok := obj[key]; ok {
				inner = bytes.TrimSpace(inner)
				if bytes.Equal(inner, []byte("null")) {
					return []map[string]any{}, nil
				}
				return extract(inner, depth+1)
			}
		}
	}
	return nil, ErrUnexpectedShape
}

// remoteError reports whether an error member is set, with its message.
func remoteError(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw), true
	}
	switch e := v.(type) {
	case nil:
		return "", false
	case bool:
		if !e {
			return "", false
		}
		return "error", true
	case string:
		if strings.TrimSpace(e) == "" {
			return "", false
		}
		return e, true
	case map[string]any:
		if m, ok := e["message"].(string); ok && m != "" {
			return m, true
		}
		return string(raw), true
	default:
		return string(raw), true
	}
}

func columnar(obj map[string]json.RawMessage) ([]map[string]any, error) {
	var names []string
	if err := json.Unmarshal(obj["columnNames"], &names); err != nil {
		return nil, fmt.Errorf("%w: columnNames: %v", ErrUnexpectedShape, err)
	}
	var rows [][]any
	if r, ok := obj["rows"]; ok && !bytes.Equal(bytes.TrimSpace(r), []byte("null")) {
		if err := decode(r, &rows); err != nil {
			return nil, fmt.Errorf("%w: rows: %v", ErrUnexpectedShape, err)
		}
	}

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(names))
		for i, name := range names {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// decode keeps numbers as json.Number so large counts are not rounded.
func decode(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func lookup(rec map[string]any, name string) (any, bool) {
	if v, ok := rec[name]; ok {
		return v, v != nil
	}
	for k, v := range rec {
		if strings.EqualFold(k, name) {
			return v, v != nil
		}
	}
	return nil, false
}

// ParseHour reads a timestamp given as text or as unix seconds or
// milliseconds. The result is in UTC.
func ParseHour(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range hourLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC(), nil
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return fromUnix(n), nil
		}
		return time.Time{}, fmt.Errorf("unparsable hour %q", t)
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return time.Time{}, fmt.Errorf("unparsable hour %q", t.String())
			}
			n = int64(f)
		}
		return fromUnix(n), nil
	case float64:
		return fromUnix(int64(t)), nil
	default:
		return time.Time{}, fmt.Errorf("unparsable hour %v", v)
	}
}

// fromUnix treats values past year 5138 in seconds as milliseconds.
func fromUnix(n int64) time.Time {
	if n > 1e11 || n < -1e11 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// Count coerces a count cell. Floats are truncated; anything that is not a
// number, and anything negative, is 0.
func Count(v any) int64 {
	var f float64
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return clampCount(n)
		}
		parsed, err := t.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case float64:
		f = t
	case int64:
		return clampCount(t)
	case int:
		return clampCount(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return clampCount(n)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

func clampCount(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
