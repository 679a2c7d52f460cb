package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/users-backend/internal/domain"
)

// DefaultTokenTTL applies when the codec is built with a non-positive TTL.
const DefaultTokenTTL = time.Hour

var (
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenInvalidSignature = errors.New("token signature invalid")
	ErrTokenExpired          = errors.New("token expired")
)

// Claims is the JWT payload.
type Claims struct {
	Username     string          `json:"username"`
	Roles        json.RawMessage `json:"roles"`
	RolesVersion int             `json:"rv"`
	IsAdmin      bool            `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Token is the verified content of an access token.
type Token struct {
	Subject   string
	Roles     []domain.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and verifies HS256 access tokens.
type TokenCodec struct {
	key    *SigningKey
	ttl    time.Duration
	parser *jwt.Parser
	now    func() time.Time
}

// NewTokenCodec builds a codec signing with key.
func NewTokenCodec(key *SigningKey, ttl time.Duration) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCodec{
		key: key,
		ttl: ttl,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{key.Algorithm()}),
			jwt.WithStrictDecoding(),
			jwt.WithoutClaimsValidation(),
		),
		now: time.Now,
	}
}

// TTL returns the lifetime given to new tokens.
func (tc *TokenCodec) TTL() time.Duration {
	return tc.ttl
}

// Encode signs a token for subject. Roles are normalized so equal inputs yield equal tokens.
func (tc *TokenCodec) Encode(subject string, roles []domain.Role, issuedAt time.Time) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, errors.New("encode token: empty subject")
	}
	normalized, err := NormalizeRoles(roles)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode token: %w", err)
	}
	roleClaim, err := encodeRoleClaim(normalized)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode token: %w", err)
	}

	issuedAt = issuedAt.Truncate(time.Second)
	expiresAt := issuedAt.Add(tc.ttl)
	claims := &Claims{
		Username:     subject,
		Roles:        roleClaim,
		RolesVersion: RoleClaimVersion,
		IsAdmin:      domain.HasRole(normalized, domain.RoleAdmin),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(tc.key.Method(), claims)
	tokenString, err := token.SignedString(tc.key.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Decode verifies tokenString and returns its content. The signature is checked
// over the raw header and payload before either is decoded.
func (tc *TokenCodec) Decode(tokenString string) (*Token, error) {
	now := tc.now()

	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("%w: expected three segments", ErrTokenMalformed)
	}
	signature, err := tc.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding: %v", ErrTokenMalformed, err)
	}
	signingString := parts[0] + "." + parts[1]
	if err := tc.key.Method().Verify(signingString, signature, tc.key.secret); err != nil {
		return nil, ErrTokenInvalidSignature
	}

	claims := &Claims{}
	if _, err := tc.parser.ParseWithClaims(tokenString, claims, tc.key.keyFunc); err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing registered claims", ErrTokenMalformed)
	}
	if now.Unix() > claims.ExpiresAt.Unix() {
		return nil, ErrTokenExpired
	}

	roles, err := parseRoleClaim(claims.Roles, claims.RolesVersion, claims.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	return &Token{
		Subject:   claims.Subject,
		Roles:     roles,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// TokenErrorKind names the failure class of a Decode error for logs.
func TokenErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrTokenMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}

func isTokenError(err error) bool {
	return TokenErrorKind(err) != "unknown"
}
