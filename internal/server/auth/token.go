// Package auth implements the identity and authorization core: token
// issuance and validation, the password policy, credential hashing, the
// request-time authorization gate and the privilege guard for identity
// mutations.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when Issue is called with a non-positive ttl.
const DefaultTokenTTL = 30 * time.Minute

var ErrTokenConfig = errors.New("invalid token configuration")

// Claims is the JWT payload: registered claims plus the granted scopes.
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Token is an issued or validated access token.
type Token struct {
	Raw           string
	Subject       string
	GrantedScopes []string
	IssuedAt      time.Time
	ExpiresAt     time.Time
}

// GrantedSet returns the granted scopes as a set.
func (t Token) GrantedSet() scope.Set {
	return scope.FromStrings(t.GrantedScopes)
}

// TokenConfig is the explicit configuration of a TokenService.
type TokenConfig struct {
	Secret    string
	Algorithm string
	// RequireExplicitScopes grants only "me" when a request names no scopes.
	RequireExplicitScopes bool
}

// TokenService signs and verifies access tokens with an HMAC key.
// It holds no mutable state and is safe for concurrent use.
type TokenService struct {
	secret                []byte
	method                jwt.SigningMethod
	requireExplicitScopes bool
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrTokenConfig)
	}

	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrTokenConfig, cfg.Algorithm)
	}

	return &TokenService{
		secret:                []byte(cfg.Secret),
		method:                method,
		requireExplicitScopes: cfg.RequireExplicitScopes,
	}, nil
}

// Issue signs a token for username once the caller has verified the
// credential. With no requested scopes every held scope is granted, unless
// the service requires explicit scopes, in which case only "me" is.
func (s *TokenService) Issue(username string, credentialOK bool, identityScopes scope.Set, requested []string, now time.Time, ttl time.Duration) (Token, error) {
	if !credentialOK {
		return Token{}, common.ErrInvalidCredentials
	}

	granted, err := s.grant(identityScopes, requested)
	if err != nil {
		return Token{}, err
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	claims := Claims{
		Scopes: granted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	raw, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	return Token{
		Raw:           raw,
		Subject:       username,
		GrantedScopes: granted,
		IssuedAt:      claims.IssuedAt.Time,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

func (s *TokenService) grant(held scope.Set, requested []string) ([]string, error) {
	if len(requested) == 0 {
		if !s.requireExplicitScopes {
			return held.Strings(), nil
		}
		if !held.Has(scope.Me) {
			return nil, fmt.Errorf("%w: %s", common.ErrScopeNotGranted, scope.Me)
		}
		return []string{string(scope.Me)}, nil
	}

	granted := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, name := range requested {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		sc := scope.Scope(name)
		if !sc.Known() || !held.Has(sc) {
			return nil, fmt.Errorf("%w: %s", common.ErrScopeNotGranted, name)
		}
		granted = append(granted, name)
	}
	return granted, nil
}

// Validate verifies signature, algorithm and expiry against now. A token is
// expired once now reaches its expiry instant. The store is not consulted.
func (s *TokenService) Validate(raw string, now time.Time) (Token, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Token{}, common.ErrTokenExpired
		}
		return Token{}, fmt.Errorf("%w: %w", common.ErrTokenMalformed, err)
	}

	if claims.Subject == "" {
		return Token{}, fmt.Errorf("%w: missing subject", common.ErrTokenMalformed)
	}

	t := Token{
		Raw:           raw,
		Subject:       claims.Subject,
		GrantedScopes: claims.Scopes,
		ExpiresAt:     claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		t.IssuedAt = claims.IssuedAt.Time
	}
	return t, nil
}
