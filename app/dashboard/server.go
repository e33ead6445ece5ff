package dashboard

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/canopy-network/txdash/app/dashboard/controller"
	"github.com/canopy-network/txdash/app/dashboard/types"
)

// NewServer builds the HTTP server for app and stores it on app.Server.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	app.Server = &http.Server{
		Addr:              app.Config.Addr,
		Handler:           ctler.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", app.Config.Addr))

	return nil
}
