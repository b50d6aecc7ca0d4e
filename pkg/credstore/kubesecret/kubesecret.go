// Package kubesecret stores credentials as Kubernetes Secrets, one Secret
// per key, for clients that run inside a cluster.
package kubesecret

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/authsession/pkg/credstore"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const (
	// DataKey is the Secret data entry holding the credential record.
	DataKey = "credentials"

	managedByLabel = "app.kubernetes.io/managed-by"
	managedBy      = "authsession"
	serviceLabel   = "authsession/service"
)

type Backend struct {
	clientset kubernetes.Interface
	namespace string
}

var _ credstore.Backend = (*Backend)(nil)

func New(clientset kubernetes.Interface, namespace string) *Backend {
	if namespace == "" {
		namespace = metav1.NamespaceDefault
	}
	return &Backend{clientset: clientset, namespace: namespace}
}

// NewFromConfig builds a clientset from kubeconfig, or from the in-cluster
// service account when kubeconfig is empty.
func NewFromConfig(kubeconfig, namespace string) (*Backend, error) {
	var (
		config *rest.Config
		err    error
	)
	if kubeconfig == "" {
		config, err = rest.InClusterConfig()
	} else {
		config, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("kubernetes config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("kubernetes clientset: %w", err)
	}

	return New(clientset, namespace), nil
}

// SecretName returns the Secret name used for key. Names are lowercase
// DNS-1123 subdomains with a digest suffix so distinct keys never collide
// after sanitising.
func SecretName(key credstore.Key) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key.Service + "-" + key.Account) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	base := strings.Trim(b.String(), "-.")
	if len(base) > 200 {
		base = strings.TrimRight(base[:200], "-.")
	}
	if base == "" {
		base = "credentials"
	}

	sum := sha256.Sum256([]byte(key.String()))
	return base + "-" + hex.EncodeToString(sum[:4])
}

func (b *Backend) Add(ctx context.Context, key credstore.Key, data []byte) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      SecretName(key),
			Namespace: b.namespace,
			Labels: map[string]string{
				managedByLabel: managedBy,
				serviceLabel:   SecretName(credstore.Key{Service: key.Service}),
			},
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{DataKey: data},
	}

	_, err := b.clientset.CoreV1().Secrets(b.namespace).Create(ctx, secret, metav1.CreateOptions{})
	return mapError(err)
}

func (b *Backend) Update(ctx context.Context, key credstore.Key, data []byte) error {
	secrets := b.clientset.CoreV1().Secrets(b.namespace)

	// Read-modify-write keeps the resourceVersion for optimistic locking
	current, err := secrets.Get(ctx, SecretName(key), metav1.GetOptions{})
	if err != nil {
		return mapError(err)
	}

	if current.Data == nil {
		current.Data = make(map[string][]byte, 1)
	}
	current.Data[DataKey] = data

	_, err = secrets.Update(ctx, current, metav1.UpdateOptions{})
	return mapError(err)
}

func (b *Backend) Get(ctx context.Context, key credstore.Key) ([]byte, error) {
	secret, err := b.clientset.CoreV1().Secrets(b.namespace).Get(ctx, SecretName(key), metav1.GetOptions{})
	if err != nil {
		return nil, mapError(err)
	}

	data, ok := secret.Data[DataKey]
	if !ok {
		return nil, credstore.ErrItemNotFound
	}
	return data, nil
}

func (b *Backend) Delete(ctx context.Context, key credstore.Key) error {
	err := b.clientset.CoreV1().Secrets(b.namespace).Delete(ctx, SecretName(key), metav1.DeleteOptions{})
	return mapError(err)
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsAlreadyExists(err):
		return credstore.ErrDuplicateItem
	case apierrors.IsNotFound(err):
		return credstore.ErrItemNotFound
	case apierrors.IsUnauthorized(err), apierrors.IsForbidden(err):
		return errors.Join(credstore.ErrUnauthorized, err)
	case apierrors.IsServiceUnavailable(err),
		apierrors.IsTimeout(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsTooManyRequests(err),
		errors.Is(err, context.DeadlineExceeded):
		return errors.Join(credstore.ErrUnavailable, err)
	}

	status := string(apierrors.ReasonForError(err))
	if status == "" {
		status = "kubernetes"
	}
	return credstore.Unknown(status, err)
}
