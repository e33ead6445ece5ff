// Package secrets resolves credentials from the environment, a YAML secrets
// file or a Kubernetes Secret.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrMissing is returned by Require when no store holds a non-blank value.
var ErrMissing = errors.New("secret not found")

// Store looks secrets up by name. ok is false when the store does not know
// the name; err is reserved for the store itself failing.
type Store interface {
	Lookup(ctx context.Context, name string) (value string, ok bool, err error)
	Name() string
}

// Require returns the trimmed value of name or an error wrapping ErrMissing.
func Require(ctx context.Context, s Store, name string) (string, error) {
	v, ok, err := s.Lookup(ctx, name)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", name, err)
	}
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return v, nil
}

// Chain asks each store in order; the first one holding a non-blank value
// wins. A failing store is logged and skipped.
type Chain struct {
	stores []Store
	logger *zap.Logger
}

// NewChain builds a Chain over the non-nil stores.
func NewChain(logger *zap.Logger, stores ...Store) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{logger: logger}
	for _, s := range stores {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

func (c *Chain) Name() string {
	names := make([]string, 0, len(c.stores))
	for _, s := range c.stores {
		names = append(names, s.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

func (c *Chain) Lookup(ctx context.Context, name string) (string, bool, error) {
	var (
		lastErr error
		failed  int
	)
	for _, s := range c.stores {
		v, ok, err := s.Lookup(ctx, name)
		if err != nil {
			c.logger.Warn("secret store lookup failed",
				zap.String("store", s.Name()),
				zap.String("secret", name),
				zap.Error(err))
			lastErr = err
			failed++
			continue
		}
		if ok && strings.TrimSpace(v) != "" {
			return v, true, nil
		}
	}
	if ctx.Err() != nil {
		return "", false, ctx.Err()
	}
	// Only surface an error when no store could answer at all.
	if failed > 0 && failed == len(c.stores) {
		return "", false, lastErr
	}
	return "", false, nil
}
