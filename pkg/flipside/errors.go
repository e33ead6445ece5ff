package flipside

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEndpoints is returned when a client is built without a URL.
	ErrNoEndpoints = errors.New("no endpoints configured")
	// ErrBreakerOpen is returned when every endpoint is cooling down after failures.
	ErrBreakerOpen = errors.New("all endpoints unavailable (circuit open)")
)

// StatusError reports a non-2xx answer from the remote service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Body)
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// QueryRunError is a query run that ended in a failed or canceled state.
type QueryRunError struct {
	RunID   string
	State   string
	Message string
}

func (e *QueryRunError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("query run %s ended in %s", e.RunID, e.State)
	}
	return fmt.Sprintf("query run %s ended in %s: %s", e.RunID, e.State, e.Message)
}
