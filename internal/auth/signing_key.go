package auth

import (
	"errors"
	"fmt"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// MinSecretLength is the HS256 key size in bytes.
	MinSecretLength  = 32
	minDistinctBytes = 8
)

var (
	ErrSecretMissing = errors.New("signing secret is not configured")
	ErrSecretWeak    = errors.New("signing secret is too weak")
)

// SigningKey holds the process-wide HMAC secret and the one algorithm tokens may use.
// It is built once before the server starts and never mutated.
type SigningKey struct {
	secret []byte
	method *jwt.SigningMethodHMAC
}

// NewSigningKey validates secret and pins the algorithm to HS256.
func NewSigningKey(secret string) (*SigningKey, error) {
	if secret == "" {
		return nil, ErrSecretMissing
	}
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrSecretWeak, MinSecretLength, len(secret))
	}
	distinct := make(map[byte]struct{}, minDistinctBytes)
	for i := 0; i < len(secret) && len(distinct) < minDistinctBytes; i++ {
		distinct[secret[i]] = struct{}{}
	}
	if len(distinct) < minDistinctBytes {
		return nil, fmt.Errorf("%w: need at least %d distinct characters", ErrSecretWeak, minDistinctBytes)
	}

	key := make([]byte, len(secret))
	copy(key, secret)
	return &SigningKey{secret: key, method: jwt.SigningMethodHS256}, nil
}

// Method returns the pinned signing algorithm.
func (k *SigningKey) Method() *jwt.SigningMethodHMAC {
	return k.method
}

// Algorithm returns the JOSE name of the pinned algorithm.
func (k *SigningKey) Algorithm() string {
	return k.method.Alg()
}

func (k *SigningKey) keyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != k.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
	}
	return k.secret, nil
}
