package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	meta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

type mapStore map[string]string

func (m mapStore) Name() string { return "map" }
func (m mapStore) Lookup(_ context.Context, name string) (string, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

type failingStore struct{}

func (failingStore) Name() string { return "failing" }
func (failingStore) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	s := mapStore{"KEY": "  abc  ", "BLANK": "   "}

	v, err := Require(ctx, s, "KEY")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)

	_, err = Require(ctx, s, "BLANK")
	require.ErrorIs(t, err, ErrMissing)

	_, err = Require(ctx, s, "NOPE")
	require.ErrorIs(t, err, ErrMissing)
}

func TestChainOrderAndErrors(t *testing.T) {
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	c := NewChain(logger, failingStore{}, mapStore{"A": ""}, nil, mapStore{"A": "second", "B": "b"})
	v, ok, err := c.Lookup(ctx, "A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)

	_, ok, err = c.Lookup(ctx, "C")
	require.NoError(t, err)
	assert.False(t, ok)

	only := NewChain(logger, failingStore{})
	_, err = Require(ctx, only, "A")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissing)
	assert.Contains(t, only.Name(), "failing")
}

func TestEnvStore(t *testing.T) {
	t.Setenv("TXDASH_TEST_KEY", "from-env")
	v, ok, err := EnvStore{Prefix: "TXDASH_"}.Lookup(context.Background(), "TEST_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "from-env", v)

	_, ok, _ = EnvStore{}.Lookup(context.Background(), "TXDASH_DEFINITELY_UNSET")
	assert.False(t, ok)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secrets.yaml")
	s := NewFileStore(path)

	_, ok, err := s.Lookup(ctx, "FLIPSIDE_API_KEY")
	require.NoError(t, err, "missing file holds nothing")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte("FLIPSIDE_API_KEY: \"k-123\"\nnested:\n  a: b\nPORT: 42\n"), 0o600))
	v, ok, err := s.Lookup(ctx, "FLIPSIDE_API_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k-123", v)

	v, ok, _ = s.Lookup(ctx, "PORT")
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	_, ok, _ = s.Lookup(ctx, "nested")
	assert.False(t, ok)

	// Rewrite with a newer mtime so the store reloads.
	require.NoError(t, os.WriteFile(path, []byte("FLIPSIDE_API_KEY: rotated\n"), 0o600))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	v, _, _ = s.Lookup(ctx, "FLIPSIDE_API_KEY")
	assert.Equal(t, "rotated", v)

	require.NoError(t, os.WriteFile(path, []byte("FLIPSIDE_API_KEY: [unclosed"), 0o600))
	evenLater := later.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, evenLater, evenLater))
	_, _, err = s.Lookup(ctx, "FLIPSIDE_API_KEY")
	require.Error(t, err)
}

func TestKubernetesStore(t *testing.T) {
	ctx := context.Background()
	cs := fake.NewSimpleClientset(&corev1.Secret{
		ObjectMeta: meta.ObjectMeta{Name: "txdash", Namespace: "data"},
		Data:       map[string][]byte{"FLIPSIDE_API_KEY": []byte("k8s-key")},
	})
	var gets int
	cs.PrependReactor("get", "secrets", func(k8stesting.Action) (bool, runtime.Object, error) {
		gets++
		return false, nil, nil
	})

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewKubernetesStore(cs, "data", "txdash", time.Minute, zaptest.NewLogger(t))
	s.now = func() time.Time { return now }

	v, ok, err := s.Lookup(ctx, "FLIPSIDE_API_KEY")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "k8s-key", v)

	_, ok, err = s.Lookup(ctx, "FLIPSIDE_MCP_KEY")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, gets, "second lookup is served from the cached object")

	now = now.Add(2 * time.Minute)
	_, _, err = s.Lookup(ctx, "FLIPSIDE_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, 2, gets)
	assert.Equal(t, "k8s:data/txdash", s.Name())
}

func TestKubernetesStoreMissingObject(t *testing.T) {
	s := NewKubernetesStore(fake.NewSimpleClientset(), "data", "absent", time.Minute, nil)
	_, ok, err := s.Lookup(context.Background(), "FLIPSIDE_API_KEY")
	require.NoError(t, err)
	assert.False(t, ok)
}
