package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
)

// Admission is the outcome of a gate decision.
type Admission int

const (
	Rejected Admission = iota
	AdmittedFirstLoginOnly
	AdmittedFull
)

func (a Admission) String() string {
	switch a {
	case AdmittedFull:
		return "admitted_full"
	case AdmittedFirstLoginOnly:
		return "admitted_first_login_only"
	default:
		return "rejected"
	}
}

// Requirement describes what an operation needs from its caller.
type Requirement struct {
	Scopes            []scope.Scope
	AllowOnFirstLogin bool
}

// Principal is an admitted caller.
type Principal struct {
	Identity  *models.Identity
	Token     Token
	Admission Admission
}

// EffectiveScopes are the scopes the caller may exercise on this request:
// those both held now and granted by the token.
func (p *Principal) EffectiveScopes() scope.Set {
	return p.Identity.Scopes.Intersect(p.Token.GrantedSet())
}

// Decide applies the gate rules in order: the identity must exist and be
// active, first-login identities only reach operations that allow them, and
// every required scope must have been granted by the token.
func Decide(token Token, identity *models.Identity, req Requirement) (Admission, error) {
	if identity == nil || !identity.Active {
		return Rejected, common.ErrUnauthenticated
	}

	if identity.FirstLogin && !req.AllowOnFirstLogin {
		return Rejected, common.ErrFirstLoginRequired
	}

	if missing := token.GrantedSet().Missing(scope.NewSet(req.Scopes...)); len(missing) > 0 {
		return Rejected, fmt.Errorf("%w: %s", common.ErrScopeNotGranted, missing[0])
	}

	if identity.FirstLogin {
		return AdmittedFirstLoginOnly, nil
	}
	return AdmittedFull, nil
}

// IdentityLookup is the read path the gate needs from the identity store.
type IdentityLookup interface {
	GetByUsername(ctx context.Context, username string) (*models.Identity, error)
}

// Gate validates a bearer token and re-reads the identity on every request,
// so deactivation and scope changes take effect immediately.
type Gate struct {
	tokens     *TokenService
	identities IdentityLookup
	now        func() time.Time
}

func NewGate(tokens *TokenService, identities IdentityLookup, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{tokens: tokens, identities: identities, now: now}
}

func (g *Gate) Authorize(ctx context.Context, raw string, req Requirement) (*Principal, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: missing bearer token", common.ErrUnauthenticated)
	}

	token, err := g.tokens.Validate(raw, g.now())
	if err != nil {
		return nil, err
	}

	identity, err := g.identities.GetByUsername(ctx, token.Subject)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	admission, err := Decide(token, identity, req)
	if err != nil {
		return nil, err
	}

	return &Principal{Identity: identity, Token: token, Admission: admission}, nil
}
