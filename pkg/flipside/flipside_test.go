package flipside

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/txdash/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHourlyTxSQLClampsDays(t *testing.T) {
	tests := []struct {
		name string
		days int
		want string
	}{
		{name: "default", days: DefaultDays, want: "interval '7 days'"},
		{name: "below range", days: 0, want: "interval '1 days'"},
		{name: "negative", days: -4, want: "interval '1 days'"},
		{name: "upper bound", days: 30, want: "interval '30 days'"},
		{name: "above range", days: 45, want: "interval '30 days'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := HourlyTxSQL(tt.days)
			assert.Contains(t, sql, tt.want)
			assert.Contains(t, sql, "count(distinct tx_hash) as tx_count")
			assert.Contains(t, sql, "date_trunc('hour', block_timestamp) as hour")
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeSDK, m)

	m, err = ParseMode(" MCP ")
	require.NoError(t, err)
	assert.Equal(t, ModeMCP, m)
	assert.Equal(t, "FLIPSIDE_MCP_KEY", m.SecretName())
	assert.Equal(t, "FLIPSIDE_API_KEY", ModeHTTP.SecretName())

	_, err = ParseMode("grpc")
	require.Error(t, err)
}

func TestDirectQuerierSendsSQLAndHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT 1", body["sql"])
		assert.NotContains(t, body, "apiKey")
		_, _ = w.Write([]byte(`{"results":[{"hour":"2024-01-01 00:00:00.000","tx_count":12}]}`))
	}))
	defer srv.Close()

	q, err := NewQuerier(Opts{Mode: ModeHTTP, URL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, q.Endpoint())
	assert.Equal(t, ModeHTTP, q.Mode())

	raw, err := q.Query(context.Background(), "SELECT 1", "key-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":[{"hour":"2024-01-01 00:00:00.000","tx_count":12}]}`, string(raw))
}

func TestMCPQuerierSendsKeyInBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("x-api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT 2", body["sql"])
		assert.Equal(t, "mcp-key", body["apiKey"])
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	q, err := NewQuerier(Opts{Mode: ModeMCP, URL: srv.URL})
	require.NoError(t, err)
	raw, err := q.Query(context.Background(), "SELECT 2", "mcp-key")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestPostJSONDoesNotRetryFailures(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusBadGateway} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				http.Error(w, "nope", code)
			}))
			defer srv.Close()

			q, err := NewQuerier(Opts{Mode: ModeHTTP, URL: srv.URL})
			require.NoError(t, err)
			_, err = q.Query(context.Background(), "SELECT 1", "k")

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, code, se.Code)
			assert.Equal(t, "nope", se.Body)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestHTTPClientBreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPWithOpts(HTTPOpts{Endpoints: []string{srv.URL}, BreakerFailures: 2, BreakerCooldown: time.Minute})
	for i := 0; i < 2; i++ {
		require.Error(t, c.PostJSON(context.Background(), "", nil, map[string]string{}, nil))
	}
	err := c.PostJSON(context.Background(), "", nil, map[string]string{}, nil)
	require.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestHTTPClientWithoutEndpoints(t *testing.T) {
	c := NewHTTPWithOpts(HTTPOpts{})
	require.ErrorIs(t, c.PostJSON(context.Background(), "", nil, nil, nil), ErrNoEndpoints)
}

// fakeRPC emulates the query-run API: the run reports RUNNING once, then
// SUCCESS, and results are spread over three pages.
type fakeRPC struct {
	t          *testing.T
	polls      int32
	finalState string
}

func (f *fakeRPC) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	require.Equal(f.t, rpcPath, r.URL.Path)
	require.Equal(f.t, "sdk-key", r.Header.Get("x-api-key"))

	var req struct {
		Method string           `json:"method"`
		Params []map[string]any `json:"params"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	var result string
	switch req.Method {
	case "createQueryRun":
		assert.True(f.t, strings.Contains(req.Params[0]["sql"].(string), "tx_count"))
		result = `{"queryRun":{"id":"run-1","state":"QUERY_STATE_READY"}}`
	case "getQueryRun":
		assert.Equal(f.t, "run-1", req.Params[0]["queryRunId"])
		state := StateRunning
		if atomic.AddInt32(&f.polls, 1) > 1 {
			state = f.finalState
		}
		result = fmt.Sprintf(`{"queryRun":{"id":"run-1","state":%q,"errorMessage":"boom"}}`, state)
	case "getQueryRunResults":
		page := int(req.Params[0]["page"].(map[string]any)["number"].(float64))
		result = fmt.Sprintf(`{"columnNames":["hour","tx_count"],"columnTypes":["timestamp","number"],`+
			`"rows":[["2024-01-0%d 00:00:00.000",%d]],"page":{"currentPageNumber":%d,"totalPages":3}}`, page, page*10, page)
	default:
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":%s}`, result)
}

func newTestSDK(t *testing.T, url string) Querier {
	q, err := NewQuerier(Opts{
		Mode:   ModeSDK,
		URL:    url,
		Logger: zaptest.NewLogger(t),
		Poll:   retry.Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 1},
	})
	require.NoError(t, err)
	return q
}

func TestSDKQuerierCollectsAllPages(t *testing.T) {
	fake := &fakeRPC{t: t, finalState: StateSuccess}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	raw, err := newTestSDK(t, srv.URL).Query(context.Background(), HourlyTxSQL(7), "sdk-key")
	require.NoError(t, err)

	var res ColumnarResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, []string{"hour", "tx_count"}, res.ColumnNames)
	require.Len(t, res.Rows, 3)
	for i, row := range res.Rows {
		assert.JSONEq(t, fmt.Sprintf(`["2024-01-0%d 00:00:00.000",%d]`, i+1, (i+1)*10), string(row))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&fake.polls))
}

func TestSDKQuerierReportsFailedRun(t *testing.T) {
	srv := httptest.NewServer(&fakeRPC{t: t, finalState: StateFailed})
	defer srv.Close()

	_, err := newTestSDK(t, srv.URL).Query(context.Background(), HourlyTxSQL(7), "sdk-key")
	var runErr *QueryRunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StateFailed, runErr.State)
	assert.Equal(t, "boom", runErr.Message)
}

func TestSDKQuerierSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	_, err := newTestSDK(t, srv.URL).Query(context.Background(), "SELECT 1", "sdk-key")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "invalid api key", rpcErr.Message)
}
