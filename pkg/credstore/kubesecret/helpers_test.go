package kubesecret_test

import (
	"github.com/aussiebroadwan/authsession/pkg/credstore"
	"github.com/aussiebroadwan/authsession/pkg/credstore/kubesecret"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func newForeignSecret(key credstore.Key) *corev1.Secret {
	return &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      kubesecret.SecretName(key),
			Namespace: namespace,
		},
		Data: map[string][]byte{"unrelated": []byte("x")},
	}
}
