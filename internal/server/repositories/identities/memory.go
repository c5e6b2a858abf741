package identities

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
)

// MemoryRepository keeps identities in process memory. It is used when no
// database DSN is configured and in tests. Stored records are copied on the
// way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu         sync.RWMutex
	byUsername map[string]*models.Identity
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byUsername: make(map[string]*models.Identity),
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, identity *models.Identity) (*models.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[identity.Username]; ok {
		return nil, fmt.Errorf("%w: username", common.ErrAlreadyExists)
	}
	if identity.EmailAddress != nil && r.emailTakenLocked(*identity.EmailAddress, "") {
		return nil, fmt.Errorf("%w: email address", common.ErrAlreadyExists)
	}

	identity.CreatedAt = r.now().UTC()
	r.byUsername[identity.Username] = clone(identity)

	return identity, nil
}

func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byUsername[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return clone(identity), nil
}

func (r *MemoryRepository) ExistsByUsernameOrEmail(_ context.Context, username string, email *string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.byUsername[username]; ok {
		return true, nil
	}
	return email != nil && r.emailTakenLocked(*email, ""), nil
}

func (r *MemoryRepository) List(_ context.Context, filter models.IdentityFilter) ([]*models.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Identity
	for _, identity := range r.byUsername {
		if !identity.Active || slices.Contains(filter.ExcludeUsernames, identity.Username) {
			continue
		}
		if filter.CreatedBy != nil && (identity.CreatedBy == nil || *identity.CreatedBy != *filter.CreatedBy) {
			continue
		}
		out = append(out, clone(identity))
	}

	slices.SortFunc(out, func(a, b *models.Identity) int {
		return strings.Compare(a.Username, b.Username)
	})

	return out, nil
}

func (r *MemoryRepository) SetScopes(_ context.Context, id string, scopes scope.Set) error {
	return r.update(id, func(identity *models.Identity) error {
		identity.Scopes = copySet(scopes)
		return nil
	})
}

func (r *MemoryRepository) CompletePasswordChange(_ context.Context, id, credentialHash, email string) error {
	return r.update(id, func(identity *models.Identity) error {
		if r.emailTakenLocked(email, id) {
			return fmt.Errorf("%w: email address", common.ErrAlreadyExists)
		}
		identity.CredentialHash = credentialHash
		identity.EmailAddress = &email
		identity.FirstLogin = false
		return nil
	})
}

func (r *MemoryRepository) Deactivate(_ context.Context, id string) error {
	return r.update(id, func(identity *models.Identity) error {
		identity.Active = false
		return nil
	})
}

// update applies fn to the active identity with the given id under the
// write lock.
func (r *MemoryRepository) update(id string, fn func(*models.Identity) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, identity := range r.byUsername {
		if identity.ID == id && identity.Active {
			return fn(identity)
		}
	}
	return common.ErrorNotFound
}

func (r *MemoryRepository) emailTakenLocked(email, exceptID string) bool {
	for _, identity := range r.byUsername {
		if identity.ID != exceptID && identity.EmailAddress != nil && *identity.EmailAddress == email {
			return true
		}
	}
	return false
}

func clone(identity *models.Identity) *models.Identity {
	c := *identity
	c.Scopes = copySet(identity.Scopes)
	if identity.EmailAddress != nil {
		e := *identity.EmailAddress
		c.EmailAddress = &e
	}
	if identity.CreatedBy != nil {
		cb := *identity.CreatedBy
		c.CreatedBy = &cb
	}
	return &c
}

func copySet(s scope.Set) scope.Set {
	out := make(scope.Set, len(s))
	for sc := range s {
		out[sc] = struct{}{}
	}
	return out
}
