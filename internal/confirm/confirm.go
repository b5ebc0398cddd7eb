// Package confirm issues and verifies confirmation tokens for destructive
// operations. Tokens are HS256 JWTs bound to the session, user and exact
// request shape, so no pending-operation table is kept server side.
package confirm

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/avvvet/rhoai-intent/internal/models"
)

const issuer = "rhoai-intent"

// MinSecretLength is the shortest accepted signing secret.
const MinSecretLength = 16

// ErrInvalid is returned for any token that fails verification.
var ErrInvalid = errors.New("confirmation token is invalid or expired")

// Operation is the request shape a token is bound to.
type Operation struct {
	SessionID      string
	UserID         string
	OperationType  models.OperationType
	TargetResource models.ResourceType
	ResourceName   string
	Parameters     models.Parameters
}

type claims struct {
	jwt.RegisteredClaims
	SessionID     string               `json:"sid"`
	OperationType models.OperationType `json:"op"`
	Target        models.ResourceType  `json:"target"`
	ResourceName  string               `json:"name,omitempty"`
	ParamsHash    string               `json:"params"`
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("confirmation secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("confirmation ttl must be positive, got %s", ttl)
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

func paramsHash(p models.Parameters) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode parameters: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// Issue signs a token for op.
func (i *Issuer) Issue(op Operation) (string, error) {
	hash, err := paramsHash(op.Parameters)
	if err != nil {
		return "", err
	}
	now := i.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   op.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		SessionID:     op.SessionID,
		OperationType: op.OperationType,
		Target:        op.TargetResource,
		ResourceName:  op.ResourceName,
		ParamsHash:    hash,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign confirmation token: %w", err)
	}
	return signed, nil
}

// Verify checks token against op. The token carries the target resource, so
// op.TargetResource is filled from it when empty.
func (i *Issuer) Verify(token string, op *Operation) error {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	hash, err := paramsHash(op.Parameters)
	if err != nil {
		return err
	}
	if op.TargetResource == "" {
		op.TargetResource = c.Target
	}
	switch {
	case c.Subject != op.UserID, c.SessionID != op.SessionID:
		return fmt.Errorf("%w: issued to another session", ErrInvalid)
	case c.OperationType != op.OperationType, c.Target != op.TargetResource, c.ResourceName != op.ResourceName:
		return fmt.Errorf("%w: operation does not match", ErrInvalid)
	case c.ParamsHash != hash:
		return fmt.Errorf("%w: parameters do not match", ErrInvalid)
	}
	return nil
}
