package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	meta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const serviceAccountNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// KubernetesStore reads the keys of one Secret object. The object is cached
// for the refresh interval.
type KubernetesStore struct {
	client    kubernetes.Interface
	namespace string
	name      string
	refresh   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	fetched time.Time
	data    map[string][]byte
	now     func() time.Time
}

// NewKubernetesStore reads Secret namespace/name through client.
func NewKubernetesStore(client kubernetes.Interface, namespace, name string, refresh time.Duration, logger *zap.Logger) *KubernetesStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KubernetesStore{
		client:    client,
		namespace: namespace,
		name:      name,
		refresh:   refresh,
		logger:    logger.With(zap.String("component", "k8s_secrets")),
		now:       time.Now,
	}
}

// NewKubernetesStoreFromConfig builds the client from the in-cluster config,
// falling back to KUBECONFIG or ~/.kube/config. An empty namespace means the
// pod's own namespace.
func NewKubernetesStoreFromConfig(namespace, name string, refresh time.Duration, logger *zap.Logger) (*KubernetesStore, error) {
	var (
		cfg *rest.Config
		err error
		src string
	)

	if cfg, err = rest.InClusterConfig(); err == nil {
		src = "in_cluster"
	} else {
		kubeconfig := os.Getenv("KUBECONFIG")
		if kubeconfig == "" {
			kubeconfig = clientcmd.RecommendedHomeFile
		}
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("build kube config: %w", err)
		}
		src = "kubeconfig"
	}

	cs, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("k8s client: %w", err)
	}

	if namespace == "" {
		namespace = podNamespace()
	}
	if logger != nil {
		logger.Info("kubernetes secret store ready",
			zap.String("source", src),
			zap.String("namespace", namespace),
			zap.String("secret", name))
	}
	return NewKubernetesStore(cs, namespace, name, refresh, logger), nil
}

func podNamespace() string {
	if b, err := os.ReadFile(serviceAccountNamespaceFile); err == nil {
		if ns := strings.TrimSpace(string(b)); ns != "" {
			return ns
		}
	}
	return "default"
}

func (k *KubernetesStore) Name() string { return "k8s:" + k.namespace + "/" + k.name }

func (k *KubernetesStore) Lookup(ctx context.Context, name string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.data == nil || k.refresh <= 0 || k.now().Sub(k.fetched) >= k.refresh {
		if err := k.load(ctx); err != nil {
			return "", false, err
		}
	}
	v, ok := k.data[name]
	return string(v), ok, nil
}

func (k *KubernetesStore) load(ctx context.Context) error {
	sec, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, k.name, meta.GetOptions{})
	if apierrors.IsNotFound(err) {
		k.logger.Debug("secret object not found", zap.String("namespace", k.namespace), zap.String("name", k.name))
		k.data, k.fetched = map[string][]byte{}, k.now()
		return nil
	}
	if err != nil {
		return fmt.Errorf("get secret %s/%s: %w", k.namespace, k.name, err)
	}

	data := make(map[string][]byte, len(sec.Data)+len(sec.StringData))
	for key, v := range sec.Data {
		data[key] = v
	}
	for key, v := range sec.StringData {
		data[key] = []byte(v)
	}
	k.data, k.fetched = data, k.now()
	return nil
}
