package flipside

import (
	"context"
	"encoding/json"
	"net/http"
)

type sqlRequest struct {
	SQL    string `json:"sql"`
	APIKey string `json:"apiKey,omitempty"`
}

// DirectQuerier posts the statement in one request and returns whatever the
// service answers.
type DirectQuerier struct {
	http     *HTTPClient
	endpoint string
}

func (q *DirectQuerier) Query(ctx context.Context, sql, apiKey string) (json.RawMessage, error) {
	h := http.Header{}
	h.Set("x-api-key", apiKey)

	var raw json.RawMessage
	if err := q.http.PostJSON(ctx, "", h, sqlRequest{SQL: sql}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (q *DirectQuerier) Endpoint() string { return q.endpoint }
func (q *DirectQuerier) Mode() Mode       { return ModeHTTP }

// MCPQuerier talks to the MCP endpoint, which takes the key in the body.
type MCPQuerier struct {
	http     *HTTPClient
	endpoint string
}

func (q *MCPQuerier) Query(ctx context.Context, sql, apiKey string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := q.http.PostJSON(ctx, "", nil, sqlRequest{SQL: sql, APIKey: apiKey}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (q *MCPQuerier) Endpoint() string { return q.endpoint }
func (q *MCPQuerier) Mode() Mode       { return ModeMCP }
