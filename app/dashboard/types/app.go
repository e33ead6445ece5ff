package types

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/canopy-network/txdash/pkg/fetcher"
	"go.uber.org/zap"
)

type App struct {
	Config *Config

	// Query pipeline (credential, cache, remote call)
	Fetcher *fetcher.Service

	// Optional scheduled cache refresh
	Warmer *fetcher.Warmer

	// Closed on shutdown (Redis pool when the redis backend is used)
	Closers []io.Closer

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// Start starts the application and blocks until ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.Warmer != nil {
		a.Warmer.Start()
		if a.Config != nil && a.Config.WarmOnStart {
			go a.Warmer.Warm(ctx)
		}
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Error("server stopped", zap.Error(err))
		}
	}()
	<-ctx.Done()

	if a.Warmer != nil {
		a.Logger.Info("stopping cache warmer")
		a.Warmer.Stop()
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	for _, c := range a.Closers {
		if err := c.Close(); err != nil {
			a.Logger.Error("Failed to close resource", zap.Error(err))
		}
	}

	_ = a.Logger.Sync()
	a.Logger.Info("さようなら!")
}
