// Package services contains server-side business logic. IdentityService
// orchestrates credential exchange, identity management and password changes
// on top of the auth core and the identity store.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/logging"
	"github.com/dmitrijs2005/khazana/internal/server/auth"
	"github.com/dmitrijs2005/khazana/internal/server/config"
	"github.com/dmitrijs2005/khazana/internal/server/lockout"
	"github.com/dmitrijs2005/khazana/internal/server/metrics"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/repositories/identities"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/google/uuid"
)

const (
	maxUsernameLength = 100
	maxEmailLength    = 100
)

// ExchangeRequest is a credential exchange. Scopes may be empty.
type ExchangeRequest struct {
	Username string
	Password string
	Scopes   []string
}

// ExchangeResult is what a successful credential exchange returns.
type ExchangeResult struct {
	Token                   auth.Token
	FirstLogin              bool
	PasswordPolicyViolation bool
}

type CreateRequest struct {
	Username     string
	Password     string
	EmailAddress *string
	Scopes       []string
}

type UpdateRequest struct {
	Username string
	Scopes   []string
}

type ChangePasswordRequest struct {
	OldPassword  string
	NewPassword  string
	EmailAddress string
}

// Dependencies are the collaborators of an IdentityService. Lockout, Metrics
// and Now are optional.
type Dependencies struct {
	Store    Store
	Tokens   *auth.TokenService
	Verifier *auth.CredentialVerifier
	Lockout  lockout.Store
	Metrics  *metrics.Metrics
	Logger   logging.Logger
	Now      func() time.Time
}

type IdentityService struct {
	store             Store
	tokens            *auth.TokenService
	gate              *auth.Gate
	verifier          *auth.CredentialVerifier
	lockout           lockout.Store
	metrics           *metrics.Metrics
	log               logging.Logger
	now               func() time.Time
	tokenTTL          time.Duration
	bootstrapPassword string
}

func NewIdentityService(deps Dependencies, cfg *config.Config) *IdentityService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	lock := deps.Lockout
	if lock == nil {
		lock = lockout.NoopStore{}
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(nil)
	}

	return &IdentityService{
		store:             deps.Store,
		tokens:            deps.Tokens,
		gate:              auth.NewGate(deps.Tokens, deps.Store.Identities(), now),
		verifier:          deps.Verifier,
		lockout:           lock,
		metrics:           m,
		log:               deps.Logger.With("module", "identity"),
		now:               now,
		tokenTTL:          cfg.AccessTokenTTL,
		bootstrapPassword: cfg.BootstrapAdminPassword,
	}
}

// IssueToken verifies the credentials and issues a token. Unknown usernames
// and wrong passwords are indistinguishable to the caller.
func (s *IdentityService) IssueToken(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	result, err := s.issueToken(ctx, req)
	if err != nil {
		s.metrics.ExchangesRejectedTotal.WithLabelValues(Reason(err)).Inc()
		s.log.Info(ctx, "credential exchange rejected", "username", req.Username, "reason", Reason(err))
		return nil, err
	}

	s.metrics.TokensIssuedTotal.Inc()
	s.log.Info(ctx, "token issued", "username", req.Username, "scopes", strings.Join(result.Token.GrantedScopes, ","))
	return result, nil
}

func (s *IdentityService) issueToken(ctx context.Context, req ExchangeRequest) (*ExchangeResult, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.ErrInvalidCredentials
	}

	now := s.now()

	state, err := s.lockout.Get(ctx, req.Username)
	if err != nil {
		s.log.Warn(ctx, "lockout store unavailable", "error", err)
	} else if state.Locked(now) {
		return nil, common.ErrAccountLocked
	}

	identity, err := s.store.Identities().GetByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	var ok bool
	if identity == nil || !identity.Active {
		ok = s.verifier.VerifyUnknown(req.Password)
	} else {
		ok = s.verifier.Verify(identity.CredentialHash, req.Password)
	}

	if !ok {
		s.recordFailure(ctx, req.Username, now)
		return nil, common.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(identity.Username, true, identity.Scopes, req.Scopes, now, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	if err := s.lockout.Clear(ctx, req.Username); err != nil {
		s.log.Warn(ctx, "failed to clear lockout counter", "error", err)
	}

	return &ExchangeResult{
		Token:                   token,
		FirstLogin:              identity.FirstLogin,
		PasswordPolicyViolation: auth.PasswordPolicyViolation(identity.Username, req.Password, s.bootstrapPassword),
	}, nil
}

func (s *IdentityService) recordFailure(ctx context.Context, username string, now time.Time) {
	state, err := s.lockout.RecordFailure(ctx, username, now)
	if err != nil {
		s.log.Warn(ctx, "lockout store unavailable", "error", err)
		return
	}
	if state.Locked(now) {
		s.log.Warn(ctx, "username locked after repeated failures", "username", username, "failures", state.FailedCount)
	}
}

// Authorize runs the authorization gate for one request.
func (s *IdentityService) Authorize(ctx context.Context, rawToken string, req auth.Requirement) (*auth.Principal, error) {
	principal, err := s.gate.Authorize(ctx, rawToken, req)
	if err != nil {
		s.metrics.GateDecisionsTotal.WithLabelValues(auth.Rejected.String(), Reason(err)).Inc()
		s.log.Debug(ctx, "request rejected", "reason", Reason(err))
		return nil, err
	}

	s.metrics.GateDecisionsTotal.WithLabelValues(principal.Admission.String(), "ok").Inc()
	return principal, nil
}

// Me returns the caller's own view.
func (s *IdentityService) Me(principal *auth.Principal) models.IdentityView {
	return principal.Identity.View()
}

// List returns active identities other than the admin and the caller. A
// caller without the admin scope only sees identities it created.
func (s *IdentityService) List(ctx context.Context, actor *auth.Principal) ([]models.IdentityView, error) {
	filter := models.IdentityFilter{
		ExcludeUsernames: []string{common.AdminUsername, actor.Identity.Username},
	}
	if !actor.EffectiveScopes().Has(scope.Admin) {
		filter.CreatedBy = &actor.Identity.ID
	}

	list, err := s.store.Identities().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	views := make([]models.IdentityView, 0, len(list))
	for _, identity := range list {
		views = append(views, identity.View())
	}
	return views, nil
}

// Create adds an identity on behalf of actor. The new identity starts in
// first-login state and records actor as its creator.
func (s *IdentityService) Create(ctx context.Context, actor *auth.Principal, req CreateRequest) (models.IdentityView, error) {
	view, err := s.create(ctx, actor, req)
	s.recordMutation(ctx, "create", req.Username, actor, err)
	return view, err
}

func (s *IdentityService) create(ctx context.Context, actor *auth.Principal, req CreateRequest) (models.IdentityView, error) {
	username := strings.TrimSpace(req.Username)
	if err := validateUsername(username); err != nil {
		return models.IdentityView{}, err
	}
	if req.EmailAddress != nil {
		if err := validateEmail(*req.EmailAddress); err != nil {
			return models.IdentityView{}, err
		}
	}

	requested, err := parseScopes(req.Scopes)
	if err != nil {
		return models.IdentityView{}, err
	}

	if err := auth.CheckCreate(actor.EffectiveScopes(), requested); err != nil {
		return models.IdentityView{}, err
	}

	if err := auth.ValidatePassword(req.Password); err != nil {
		return models.IdentityView{}, err
	}

	hash, err := s.verifier.Hash(req.Password)
	if err != nil {
		return models.IdentityView{}, err
	}

	creator := actor.Identity.ID
	identity := &models.Identity{
		ID:             uuid.NewString(),
		Username:       username,
		EmailAddress:   req.EmailAddress,
		CredentialHash: hash,
		Scopes:         requested,
		FirstLogin:     true,
		CreatedBy:      &creator,
		Active:         true,
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo identities.Repository) error {
		exists, err := repo.ExistsByUsernameOrEmail(ctx, identity.Username, identity.EmailAddress)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: username or email address already in use", common.ErrAlreadyExists)
		}
		_, err = repo.Create(ctx, identity)
		return err
	})
	if err != nil {
		return models.IdentityView{}, err
	}

	return identity.View(), nil
}

// Update replaces the scopes of an identity.
func (s *IdentityService) Update(ctx context.Context, actor *auth.Principal, req UpdateRequest) (models.IdentityView, error) {
	view, err := s.update(ctx, actor, req)
	s.recordMutation(ctx, "update", req.Username, actor, err)
	return view, err
}

func (s *IdentityService) update(ctx context.Context, actor *auth.Principal, req UpdateRequest) (models.IdentityView, error) {
	var view models.IdentityView
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo identities.Repository) error {
		target, err := activeIdentity(ctx, repo, req.Username)
		if err != nil {
			return err
		}
		// Guard on the raw names so that an empty or unknown list aimed at
		// the admin identity is still reported as protected.
		if err := auth.CheckUpdate(actor.EffectiveScopes(), target, scope.FromStrings(req.Scopes)); err != nil {
			return err
		}
		newScopes, err := parseScopes(req.Scopes)
		if err != nil {
			return err
		}
		if err := repo.SetScopes(ctx, target.ID, newScopes); err != nil {
			return err
		}
		target.Scopes = newScopes
		view = target.View()
		return nil
	})
	return view, err
}

// Delete soft-deletes an identity.
func (s *IdentityService) Delete(ctx context.Context, actor *auth.Principal, username string) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, repo identities.Repository) error {
		target, err := activeIdentity(ctx, repo, username)
		if err != nil {
			return err
		}
		if err := auth.CheckDelete(actor.EffectiveScopes(), target); err != nil {
			return err
		}
		return repo.Deactivate(ctx, target.ID)
	})
	s.recordMutation(ctx, "delete", username, actor, err)
	return err
}

// ChangePassword replaces the caller's password, records its email address
// and ends the first-login state.
func (s *IdentityService) ChangePassword(ctx context.Context, actor *auth.Principal, req ChangePasswordRequest) (models.IdentityView, error) {
	view, err := s.changePassword(ctx, actor, req)
	s.recordMutation(ctx, "change_password", actor.Identity.Username, actor, err)
	return view, err
}

func (s *IdentityService) changePassword(ctx context.Context, actor *auth.Principal, req ChangePasswordRequest) (models.IdentityView, error) {
	if err := validateEmail(req.EmailAddress); err != nil {
		return models.IdentityView{}, err
	}
	if err := auth.ValidatePasswordLength(req.NewPassword); err != nil {
		return models.IdentityView{}, err
	}
	if !s.verifier.Verify(actor.Identity.CredentialHash, req.OldPassword) {
		return models.IdentityView{}, fmt.Errorf("%w: Incorrect password.", common.ErrIncorrectPassword)
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		return models.IdentityView{}, err
	}

	hash, err := s.verifier.Hash(req.NewPassword)
	if err != nil {
		return models.IdentityView{}, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo identities.Repository) error {
		return repo.CompletePasswordChange(ctx, actor.Identity.ID, hash, req.EmailAddress)
	})
	if err != nil {
		return models.IdentityView{}, err
	}

	updated := *actor.Identity
	updated.FirstLogin = false
	updated.EmailAddress = &req.EmailAddress
	return updated.View(), nil
}

// EnsureBootstrapAdmin creates the "admin" identity with every scope when it
// does not exist yet, and gives the admin scope back to an existing admin
// identity that lost it. It is safe to call on every start.
func (s *IdentityService) EnsureBootstrapAdmin(ctx context.Context) error {
	existing, err := s.store.Identities().GetByUsername(ctx, common.AdminUsername)
	if err == nil {
		if existing.IsAdmin() {
			s.log.Debug(ctx, "bootstrap admin already present")
			return nil
		}
		restored := scope.NewSet(append(existing.Scopes.Sorted(), scope.Admin)...)
		if err := s.store.Identities().SetScopes(ctx, existing.ID, restored); err != nil {
			return fmt.Errorf("restore admin scope: %w", err)
		}
		s.log.Warn(ctx, "admin scope restored on bootstrap admin", "username", common.AdminUsername)
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	hash, err := s.verifier.Hash(s.bootstrapPassword)
	if err != nil {
		return err
	}

	_, err = s.store.Identities().Create(ctx, &models.Identity{
		ID:             uuid.NewString(),
		Username:       common.AdminUsername,
		CredentialHash: hash,
		Scopes:         scope.NewSet(scope.All()...),
		FirstLogin:     true,
		Active:         true,
	})
	if errors.Is(err, common.ErrAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}

	s.log.Info(ctx, "bootstrap admin created", "username", common.AdminUsername)
	return nil
}

func (s *IdentityService) recordMutation(ctx context.Context, op, target string, actor *auth.Principal, err error) {
	outcome := "ok"
	if err != nil {
		outcome = Reason(err)
	}
	s.metrics.IdentityMutationsTotal.WithLabelValues(op, outcome).Inc()

	if err != nil && outcome == "internal" {
		s.log.Error(ctx, "identity mutation failed", "operation", op, "target", target, "actor", actor.Identity.Username, "error", err)
		return
	}
	s.log.Info(ctx, "identity mutation", "operation", op, "target", target, "actor", actor.Identity.Username, "outcome", outcome)
}

func activeIdentity(ctx context.Context, repo identities.Repository, username string) (*models.Identity, error) {
	identity, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !identity.Active {
		return nil, common.ErrorNotFound
	}
	return identity, nil
}

func parseScopes(names []string) (scope.Set, error) {
	set, err := scope.Parse(names)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: at least one scope is required", common.ErrValidation)
	}
	return set, nil
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("%w: username must be at most %d characters", common.ErrValidation, maxUsernameLength)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email address is required", common.ErrValidation)
	}
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email address must be at most %d characters", common.ErrValidation, maxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", common.ErrValidation)
	}
	return nil
}
