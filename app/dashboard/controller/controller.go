package controller

import (
	"net/http"
	"slices"

	"github.com/canopy-network/txdash/app/dashboard/types"
	"github.com/canopy-network/txdash/pkg/metrics"
	"github.com/canopy-network/txdash/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Controller struct {
	App         *types.App
	AdminToken  string
	Users       map[string]types.User
	JWTSecret   []byte
	CORSOrigins []string
}

// NewController returns a new controller. Admin accounts come from
// ADMIN_USER/ADMIN_PASSWORD and ADMIN_USERS; with no password and no token
// the admin API stays closed.
func NewController(app *types.App) *Controller {
	cfg := app.Config
	users := map[string]types.User{}

	if cfg.AdminPassword != "" {
		phash, err := utils.HashOrRead(cfg.AdminPassword)
		if err != nil {
			app.Logger.Error("Unable to hash ADMIN_PASSWORD", zap.Error(err))
		} else {
			users[cfg.AdminUser] = types.User{Username: cfg.AdminUser, Hash: phash, Role: types.RoleAdmin}
		}
	}
	if cfg.AdminUsers != "" {
		var specs map[string]types.UserSpec
		if err := json.Unmarshal([]byte(cfg.AdminUsers), &specs); err != nil {
			app.Logger.Error("Ignoring malformed ADMIN_USERS", zap.Error(err))
		}
		for name, spec := range specs {
			h, err := utils.HashOrRead(spec.Password)
			if err != nil || spec.Password == "" {
				app.Logger.Warn("Skipping admin user without usable password", zap.String("user", name))
				continue
			}
			role := spec.Role
			if role == "" {
				role = types.RoleAdmin
			}
			users[name] = types.User{Username: name, Hash: h, Role: role}
		}
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		// Sessions then only live as long as the process.
		secret = []byte(utils.RandomToken(32))
		if len(users) > 0 {
			app.Logger.Warn("SESSION_SECRET not set, using an ephemeral signing key")
		}
	}

	return &Controller{
		App:         app,
		AdminToken:  cfg.AdminToken,
		Users:       users,
		JWTSecret:   secret,
		CORSOrigins: cfg.CORSOrigins,
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func (c *Controller) WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Credentials are only shared with origins listed in CORS_ORIGINS.
		switch {
		case origin != "" && slices.Contains(c.CORSOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		case origin == "" || len(c.CORSOrigins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes of the dashboard.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()
	r.Use(c.WithRequestID, metrics.HTTPMetrics)

	// Dashboard
	r.HandleFunc("/", c.HandlePage).Methods(http.MethodGet)
	r.HandleFunc("/chart.svg", c.HandleChartSVG).Methods(http.MethodGet)
	r.HandleFunc("/api/hourly", c.HandleHourly).Methods(http.MethodGet)

	// Ops
	r.HandleFunc("/health", c.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Admin API - Login/Logout
	r.HandleFunc("/api/auth/login", c.HandleAdminLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleAdminLogout).Methods(http.MethodPost)
	r.Handle("/api/cache/purge", c.RequireAdmin(http.HandlerFunc(c.HandleCachePurge))).Methods(http.MethodPost)

	return r, nil
}
