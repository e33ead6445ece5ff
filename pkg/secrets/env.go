package secrets

import (
	"context"
	"os"
)

// EnvStore reads secrets from the process environment.
type EnvStore struct {
	// Prefix is prepended to every name, e.g. "TXDASH_".
	Prefix string
}

func (EnvStore) Name() string { return "env" }

func (e EnvStore) Lookup(_ context.Context, name string) (string, bool, error) {
	v, ok := os.LookupEnv(e.Prefix + name)
	return v, ok, nil
}
