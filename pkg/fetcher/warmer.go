package fetcher

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Warmer refreshes the default range on a schedule so page loads hit the cache.
type Warmer struct {
	cron    *cron.Cron
	svc     *Service
	spec    string
	days    int
	timeout time.Duration
	logger  *zap.Logger
}

// NewWarmer schedules Refresh(days) on spec, a six-field cron expression
// with seconds.
func NewWarmer(ctx context.Context, svc *Service, spec string, days int, logger *zap.Logger) (*Warmer, error) {
	w := &Warmer{
		svc:     svc,
		spec:    spec,
		days:    days,
		timeout: svc.fetchTimeout,
		logger:  logger,
	}

	cl := cronLogger{logger: logger.Sugar()}
	// Seconds field, optional
	w.cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)))

	if _, err := w.cron.AddFunc(spec, func() { w.Warm(ctx) }); err != nil {
		return nil, err
	}
	return w, nil
}

// Warm runs one refresh.
func (w *Warmer) Warm(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	series, err := w.svc.Refresh(rctx, w.days)
	if err != nil {
		w.logger.Warn("[warmer] refresh failed", zap.Int("days", w.days), zap.Error(err))
		return
	}
	w.logger.Debug("[warmer] cache refreshed", zap.Int("days", series.Days), zap.Int("rows", len(series.Data)))
}

// Start starts the scheduler.
func (w *Warmer) Start() {
	w.cron.Start()
	w.logger.Info("[warmer] Cron started", zap.String("cronSpec", w.spec), zap.Int("days", w.days))
}

// Stop stops the scheduler and waits for a running refresh.
func (w *Warmer) Stop() {
	<-w.cron.Stop().Done()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
