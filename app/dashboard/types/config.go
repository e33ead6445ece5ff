package types

import (
	"fmt"
	"time"

	"github.com/canopy-network/txdash/pkg/cache"
	"github.com/canopy-network/txdash/pkg/flipside"
	"github.com/canopy-network/txdash/pkg/utils"
)

// Config is the process configuration, read from the environment.
type Config struct {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	Addr string

	// Remote query
	Mode            flipside.Mode
	FlipsideURL     string
	FlipsideTimeout time.Duration
	FlipsideRPS     int
	PageSize        int
	PollAttempts    int

	// Result cache
	CacheBackend string
	CacheTTL     time.Duration
	WarmCron     string
	WarmOnStart  bool

	// Secret stores (env is always consulted first)
	SecretsPrefix       string
	SecretsFile         string
	SecretsK8sName      string
	SecretsK8sNamespace string
	SecretsRefresh      time.Duration

	DefaultLang string
	// Empty means any origin is echoed back.
	CORSOrigins []string

	// Admin API
	AdminToken    string
	AdminUser     string
	AdminPassword string
	AdminUsers    string
	SessionSecret string
	Production    bool
}

// LoadConfig reads Config from the environment and validates the enumerations.
func LoadConfig() (*Config, error) {
	mode, err := flipside.ParseMode(utils.Env("FLIPSIDE_MODE", string(flipside.ModeSDK)))
	if err != nil {
		return nil, err
	}
	backend, err := cache.ParseBackend(utils.Env("CACHE_BACKEND", cache.BackendMemory))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr: utils.Env("ADDR", ":3001"),

		Mode:            mode,
		FlipsideURL:     utils.Env("FLIPSIDE_URL", ""),
		FlipsideTimeout: utils.EnvDuration("FLIPSIDE_TIMEOUT", 60*time.Second),
		FlipsideRPS:     utils.EnvInt("FLIPSIDE_RPS", 5),
		PageSize:        utils.EnvInt("FLIPSIDE_PAGE_SIZE", 10000),
		PollAttempts:    utils.EnvInt("FLIPSIDE_POLL_ATTEMPTS", 60),

		CacheBackend: backend,
		CacheTTL:     utils.EnvDuration("CACHE_TTL", cache.DefaultTTL),
		WarmCron:     utils.Env("CACHE_WARM_CRON", ""),
		WarmOnStart:  utils.EnvBool("CACHE_WARM_ON_START", false),

		SecretsPrefix:       utils.Env("SECRETS_ENV_PREFIX", ""),
		SecretsFile:         utils.Env("SECRETS_FILE", ""),
		SecretsK8sName:      utils.Env("SECRETS_K8S_NAME", ""),
		SecretsK8sNamespace: utils.Env("SECRETS_K8S_NAMESPACE", ""),
		SecretsRefresh:      utils.EnvDuration("SECRETS_REFRESH", time.Minute),

		DefaultLang: utils.Env("DEFAULT_LANG", "fa"),
		CORSOrigins: utils.EnvList("CORS_ORIGINS", nil),

		AdminToken:    utils.Env("ADMIN_TOKEN", ""),
		AdminUser:     utils.Env("ADMIN_USER", "admin"),
		AdminPassword: utils.Env("ADMIN_PASSWORD", ""),
		AdminUsers:    utils.Env("ADMIN_USERS", ""),
		SessionSecret: utils.Env("SESSION_SECRET", ""),
		Production:    utils.Env("ENVIRONMENT", "") == "production",
	}

	if cfg.WarmOnStart && cfg.WarmCron == "" {
		return nil, fmt.Errorf("CACHE_WARM_ON_START needs CACHE_WARM_CRON")
	}
	return cfg, nil
}
