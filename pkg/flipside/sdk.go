package flipside

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/canopy-network/txdash/pkg/retry"
	"go.uber.org/zap"
)

const rpcPath = "/json-rpc"

// Query run states reported by getQueryRun.
const (
	StateReady     = "QUERY_STATE_READY"
	StateRunning   = "QUERY_STATE_RUNNING"
	StateStreaming = "QUERY_STATE_STREAMING_RESULTS"
	StateSuccess   = "QUERY_STATE_SUCCESS"
	StateFailed    = "QUERY_STATE_FAILED"
	StateCanceled  = "QUERY_STATE_CANCELED"
)

var errRunPending = errors.New("query run still in progress")

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type createQueryRunParams struct {
	ResultTTLHours int               `json:"resultTTLHours"`
	MaxAgeMinutes  int               `json:"maxAgeMinutes"`
	SQL            string            `json:"sql"`
	Tags           map[string]string `json:"tags"`
	DataSource     string            `json:"dataSource"`
	DataProvider   string            `json:"dataProvider"`
}

type queryRun struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	ErrorName    string `json:"errorName"`
	ErrorMessage string `json:"errorMessage"`
}

type queryRunResult struct {
	QueryRun queryRun `json:"queryRun"`
}

type resultsParams struct {
	QueryRunID string     `json:"queryRunId"`
	Format     string     `json:"format"`
	Page       pageParams `json:"page"`
}

type pageParams struct {
	Number int `json:"number"`
	Size   int `json:"size"`
}

type resultsPage struct {
	ColumnNames []string          `json:"columnNames"`
	ColumnTypes []string          `json:"columnTypes"`
	Rows        []json.RawMessage `json:"rows"`
	Page        struct {
		CurrentPageNumber int `json:"currentPageNumber"`
		CurrentPageSize   int `json:"currentPageSize"`
		TotalRows         int `json:"totalRows"`
		TotalPages        int `json:"totalPages"`
	} `json:"page"`
}

// ColumnarResult is what SDKQuerier returns: every page's rows under one header.
type ColumnarResult struct {
	ColumnNames []string          `json:"columnNames"`
	ColumnTypes []string          `json:"columnTypes,omitempty"`
	Rows        []json.RawMessage `json:"rows"`
}

// SDKQuerier creates a query run, waits for it to finish and collects every
// result page.
type SDKQuerier struct {
	http        *HTTPClient
	endpoint    string
	logger      *zap.Logger
	poll        retry.Config
	pageSize    int
	pageWorkers int
}

func newSDKQuerier(hc *HTTPClient, o Opts) *SDKQuerier {
	q := &SDKQuerier{
		http:        hc,
		endpoint:    o.URL,
		logger:      o.Logger,
		poll:        o.Poll,
		pageSize:    o.PageSize,
		pageWorkers: o.PageWorkers,
	}
	if q.poll.MaxRetries <= 0 {
		q.poll = retry.DefaultConfig()
	}
	if q.pageSize <= 0 {
		q.pageSize = 10000
	}
	if q.pageWorkers <= 0 {
		q.pageWorkers = 4
	}
	return q
}

func (q *SDKQuerier) Endpoint() string { return q.endpoint }
func (q *SDKQuerier) Mode() Mode       { return ModeSDK }

func (q *SDKQuerier) call(ctx context.Context, apiKey, method string, params any, out any) error {
	h := http.Header{}
	h.Set("x-api-key", apiKey)

	var resp rpcResponse
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: []any{params}, ID: 1}
	if err := q.http.PostJSON(ctx, rpcPath, h, req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (q *SDKQuerier) Query(ctx context.Context, sql, apiKey string) (json.RawMessage, error) {
	var created queryRunResult
	err := q.call(ctx, apiKey, "createQueryRun", createQueryRunParams{
		ResultTTLHours: 1,
		MaxAgeMinutes:  0,
		SQL:            sql,
		Tags:           map[string]string{"source": "txdash"},
		DataSource:     "snowflake-default",
		DataProvider:   "flipside",
	}, &created)
	if err != nil {
		return nil, err
	}
	runID := created.QueryRun.ID
	if runID == "" {
		return nil, errors.New("createQueryRun: response has no query run id")
	}
	q.logger.Debug("query run created", zap.String("run_id", runID), zap.String("state", created.QueryRun.State))

	if err := q.waitForRun(ctx, apiKey, runID); err != nil {
		return nil, err
	}

	first, err := q.page(ctx, apiKey, runID, 1)
	if err != nil {
		return nil, err
	}
	out := ColumnarResult{ColumnNames: first.ColumnNames, ColumnTypes: first.ColumnTypes, Rows: first.Rows}

	if first.Page.TotalPages > 1 {
		rest, err := q.remainingPages(ctx, apiKey, runID, first.Page.TotalPages)
		if err != nil {
			return nil, err
		}
		for _, p := range rest {
			out.Rows = append(out.Rows, p.Rows...)
		}
	}
	if out.Rows == nil {
		out.Rows = []json.RawMessage{}
	}

	return json.Marshal(out)
}

func (q *SDKQuerier) waitForRun(ctx context.Context, apiKey, runID string) error {
	return retry.WithBackoff(ctx, q.poll, q.logger, "getQueryRun", func() error {
		var res queryRunResult
		if err := q.call(ctx, apiKey, "getQueryRun", map[string]string{"queryRunId": runID}, &res); err != nil {
			return retry.Permanent(err)
		}
		switch res.QueryRun.State {
		case StateSuccess:
			return nil
		case StateFailed, StateCanceled:
			msg := res.QueryRun.ErrorMessage
			if msg == "" {
				msg = res.QueryRun.ErrorName
			}
			return retry.Permanent(&QueryRunError{RunID: runID, State: res.QueryRun.State, Message: msg})
		default:
			return errRunPending
		}
	})
}

func (q *SDKQuerier) page(ctx context.Context, apiKey, runID string, number int) (*resultsPage, error) {
	var res resultsPage
	err := q.call(ctx, apiKey, "getQueryRunResults", resultsParams{
		QueryRunID: runID,
		Format:     "json",
		Page:       pageParams{Number: number, Size: q.pageSize},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// remainingPages fetches pages 2..total concurrently and returns them in order.
func (q *SDKQuerier) remainingPages(ctx context.Context, apiKey, runID string, total int) ([]*resultsPage, error) {
	pool := pond.NewPool(q.pageWorkers, pond.WithQueueSize(total))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	pages := make([]*resultsPage, total-1)
	var (
		mu       sync.Mutex
		firstErr error
	)
	for n := 2; n <= total; n++ {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			p, err := q.page(groupCtx, apiKey, runID, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			pages[n-2] = p
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, p := range pages {
		if p == nil {
			return nil, fmt.Errorf("getQueryRunResults: page %d missing", i+2)
		}
	}
	return pages, nil
}
