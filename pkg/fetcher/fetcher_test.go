package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/canopy-network/txdash/pkg/cache"
	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeQuerier struct {
	calls   int32
	mu      sync.Mutex
	lastSQL string
	lastKey string
	release chan struct{}
	answer  string
	err     error
}

func (f *fakeQuerier) Query(ctx context.Context, sql, apiKey string) (json.RawMessage, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastSQL, f.lastKey = sql, apiKey
	f.mu.Unlock()
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return json.RawMessage(f.answer), nil
}

func (f *fakeQuerier) Endpoint() string     { return "https://example.test" }
func (f *fakeQuerier) Mode() flipside.Mode { return flipside.ModeSDK }
func (f *fakeQuerier) Calls() int          { return int(atomic.LoadInt32(&f.calls)) }

type mapSecrets map[string]string

func (m mapSecrets) Name() string { return "map" }
func (m mapSecrets) Lookup(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

const twoHours = `{"results":[
	{"hour":"2024-03-01 01:00:00.000","tx_count":"7"},
	{"hour":"2024-03-01 00:00:00.000","tx_count":5}
]}`

func newService(t *testing.T, q *fakeQuerier, sec mapSecrets) *Service {
	return New(Opts{
		Querier: q,
		Secrets: sec,
		Cache:   cache.NewMemory(),
		TTL:     time.Minute,
		Logger:  zaptest.NewLogger(t),
	})
}

func TestFetchParsesAndSummarizes(t *testing.T) {
	q := &fakeQuerier{answer: twoHours}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})

	s, err := svc.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, s.Days)
	assert.False(t, s.Cached)
	assert.Equal(t, "sdk", s.Mode)
	require.Len(t, s.Data, 2)
	assert.True(t, s.Data[0].Hour.Before(s.Data[1].Hour))
	assert.Equal(t, int64(12), s.Total)
	assert.Equal(t, int64(7), s.Peak)
	assert.Equal(t, "k", q.lastKey)
	assert.Contains(t, q.lastSQL, "interval '7 days'")
}

func TestFetchClampsDays(t *testing.T) {
	q := &fakeQuerier{answer: `[]`}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})

	s, err := svc.Fetch(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, 30, s.Days)
	assert.Contains(t, q.lastSQL, "interval '30 days'")
	assert.True(t, s.Empty())
}

func TestFetchMissingCredentialMakesNoCall(t *testing.T) {
	for name, sec := range map[string]mapSecrets{
		"absent": {},
		"blank":  {"FLIPSIDE_API_KEY": "  "},
		"other":  {"FLIPSIDE_MCP_KEY": "k"},
	} {
		t.Run(name, func(t *testing.T) {
			q := &fakeQuerier{answer: twoHours}
			_, err := newService(t, q, sec).Fetch(context.Background(), 7)
			require.ErrorIs(t, err, ErrMissingCredential)
			assert.Contains(t, err.Error(), "FLIPSIDE_API_KEY")
			assert.Equal(t, 0, q.Calls())
		})
	}
}

func TestFetchCachesWithinTTL(t *testing.T) {
	q := &fakeQuerier{answer: twoHours}
	sec := mapSecrets{"FLIPSIDE_API_KEY": "k"}
	svc := newService(t, q, sec)
	ctx := context.Background()

	_, err := svc.Fetch(ctx, 7)
	require.NoError(t, err)
	s, err := svc.Fetch(ctx, 7)
	require.NoError(t, err)
	assert.True(t, s.Cached)
	assert.Len(t, s.Data, 2)
	assert.Equal(t, 1, q.Calls())

	// A different range or credential is a different entry.
	_, err = svc.Fetch(ctx, 8)
	require.NoError(t, err)
	sec["FLIPSIDE_API_KEY"] = "k2"
	_, err = svc.Fetch(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Calls())

	// Refresh always goes to the remote service.
	_, err = svc.Refresh(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, q.Calls())

	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	_, err = svc.Fetch(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, q.Calls())
}

func TestFetchCollapsesConcurrentCalls(t *testing.T) {
	q := &fakeQuerier{answer: twoHours, release: make(chan struct{})}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*Series, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Fetch(context.Background(), 7)
		}(i)
	}

	require.Eventually(t, func() bool { return q.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(q.release)
	wg.Wait()

	assert.Equal(t, 1, q.Calls())
	for i := range results {
		require.NoError(t, errs[i])
		assert.Len(t, results[i].Data, 2)
	}
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	boom := &flipside.StatusError{Code: 500, Body: "down"}
	q := &fakeQuerier{err: boom}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})

	_, err := svc.Fetch(context.Background(), 7)
	var se *flipside.StatusError
	require.ErrorAs(t, err, &se)

	_, err = svc.Fetch(context.Background(), 7)
	require.Error(t, err)
	assert.Equal(t, 2, q.Calls())
}

func TestFetchErrorReplyIsNotCached(t *testing.T) {
	q := &fakeQuerier{answer: `{"jsonrpc":"2.0","id":1,"result":null,"error":{"code":-32000,"message":"invalid api key"}}`}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})

	_, err := svc.Fetch(context.Background(), 7)
	require.ErrorIs(t, err, normalize.ErrRemote)
	assert.Contains(t, err.Error(), "invalid api key")

	_, err = svc.Fetch(context.Background(), 7)
	require.ErrorIs(t, err, normalize.ErrRemote)
	assert.Equal(t, 2, q.Calls())
}

func TestFetchRejectsUnknownShape(t *testing.T) {
	q := &fakeQuerier{answer: `{"unexpected":true}`}
	_, err := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"}).Fetch(context.Background(), 7)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingCredential))
	assert.Contains(t, err.Error(), "unexpected response shape")
}

func TestFetchHonoursCallerContext(t *testing.T) {
	q := &fakeQuerier{answer: twoHours, release: make(chan struct{})}
	defer close(q.release)
	// The shared fetch outlives the test, so it must not log through t.
	svc := New(Opts{Querier: q, Secrets: mapSecrets{"FLIPSIDE_API_KEY": "k"}})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.Fetch(ctx, 7)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWarmer(t *testing.T) {
	q := &fakeQuerier{answer: twoHours}
	svc := newService(t, q, mapSecrets{"FLIPSIDE_API_KEY": "k"})
	logger := zaptest.NewLogger(t)

	_, err := NewWarmer(context.Background(), svc, "not a cron spec", 7, logger)
	require.Error(t, err)

	w, err := NewWarmer(context.Background(), svc, "0 */5 * * * *", 7, logger)
	require.NoError(t, err)
	w.Warm(context.Background())
	w.Warm(context.Background())
	assert.Equal(t, 2, q.Calls())

	s, err := svc.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, s.Cached)
	assert.Equal(t, 2, q.Calls())

	w.Start()
	w.Stop()
}
