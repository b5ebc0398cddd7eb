package openshift

import (
	"context"
	"errors"

	authv1 "k8s.io/api/authentication/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrUnauthenticated is returned when the cluster rejects a bearer token.
var ErrUnauthenticated = errors.New("token is not authenticated")

// Identity is the user a bearer token belongs to.
type Identity struct {
	Username string
	Groups   []string
}

// TokenReviewer resolves bearer tokens to identities via the TokenReview API.
type TokenReviewer struct {
	kube kubernetes.Interface
}

func NewTokenReviewer(kube kubernetes.Interface) *TokenReviewer {
	return &TokenReviewer{kube: kube}
}

// Review asks the API server who token belongs to.
func (r *TokenReviewer) Review(ctx context.Context, token string) (Identity, error) {
	review := &authv1.TokenReview{Spec: authv1.TokenReviewSpec{Token: token}}
	out, err := r.kube.AuthenticationV1().TokenReviews().Create(ctx, review, metav1.CreateOptions{})
	if err != nil {
		return Identity{}, err
	}
	if !out.Status.Authenticated || out.Status.User.Username == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{Username: out.Status.User.Username, Groups: out.Status.User.Groups}, nil
}
