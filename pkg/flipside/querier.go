package flipside

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/canopy-network/txdash/pkg/retry"
	"go.uber.org/zap"
)

// Mode selects how queries reach the data API.
type Mode string

const (
	// ModeSDK runs queries through the JSON-RPC query-run API, the way the vendor SDK does.
	ModeSDK Mode = "sdk"
	// ModeHTTP posts {"sql"} directly with the key in a header.
	ModeHTTP Mode = "http"
	// ModeMCP posts {"sql", "apiKey"} to the MCP endpoint.
	ModeMCP Mode = "mcp"
)

// Default endpoints per mode. FLIPSIDE_URL overrides them.
const (
	DefaultSDKURL  = "https://api-v2.flipsidecrypto.xyz"
	DefaultHTTPURL = "https://api-v2.flipsidecrypto.xyz/sql"
	DefaultMCPURL  = "https://mcp.flipsidecrypto.xyz/query"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSDK, ModeHTTP, ModeMCP:
		return m, nil
	case "":
		return ModeSDK, nil
	default:
		return "", fmt.Errorf("unknown flipside mode %q (want sdk, http or mcp)", s)
	}
}

// SecretName is the secret holding the credential for the mode.
func (m Mode) SecretName() string {
	if m == ModeMCP {
		return "FLIPSIDE_MCP_KEY"
	}
	return "FLIPSIDE_API_KEY"
}

// DefaultURL is the endpoint used when none is configured.
func (m Mode) DefaultURL() string {
	switch m {
	case ModeHTTP:
		return DefaultHTTPURL
	case ModeMCP:
		return DefaultMCPURL
	default:
		return DefaultSDKURL
	}
}

// Querier submits SQL and returns the raw JSON answer. Shaping the answer
// into rows is left to the caller.
type Querier interface {
	Query(ctx context.Context, sql, apiKey string) (json.RawMessage, error)
	// Endpoint identifies where queries go; it is part of the cache key.
	Endpoint() string
	Mode() Mode
}

// Opts configures NewQuerier.
type Opts struct {
	Mode        Mode
	URL         string
	Timeout     time.Duration
	RPS         int
	PageSize    int
	PageWorkers int
	Poll        retry.Config
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// NewQuerier builds the Querier for o.Mode.
func NewQuerier(o Opts) (Querier, error) {
	mode, err := ParseMode(string(o.Mode))
	if err != nil {
		return nil, err
	}
	if o.URL == "" {
		o.URL = mode.DefaultURL()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	hc := NewHTTPWithOpts(HTTPOpts{
		Endpoints:  []string{o.URL},
		Timeout:    o.Timeout,
		RPS:        o.RPS,
		HTTPClient: o.HTTPClient,
	})

	switch mode {
	case ModeHTTP:
		return &DirectQuerier{http: hc, endpoint: o.URL}, nil
	case ModeMCP:
		return &MCPQuerier{http: hc, endpoint: o.URL}, nil
	default:
		return newSDKQuerier(hc, o), nil
	}
}
