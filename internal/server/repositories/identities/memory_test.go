package identities

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/models"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, r *MemoryRepository, username string, createdBy *string, scopes ...scope.Scope) *models.Identity {
	t.Helper()
	identity, err := r.Create(context.Background(), &models.Identity{
		ID:         "id-" + username,
		Username:   username,
		Scopes:     scope.NewSet(scopes...),
		FirstLogin: true,
		CreatedBy:  createdBy,
		Active:     true,
	})
	require.NoError(t, err)
	return identity
}

func TestMemory_CreateAndGet(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	created := seed(t, r, "alice", nil, scope.Me)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "id-alice", got.ID)

	got.Scopes[scope.Admin] = struct{}{}
	again, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Scopes.Has(scope.Admin), "returned identities must not alias stored state")

	_, err = r.GetByUsername(ctx, "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMemory_Duplicates(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	email := "a@example.com"

	_, err := r.Create(ctx, &models.Identity{ID: "1", Username: "alice", EmailAddress: &email, Active: true})
	require.NoError(t, err)

	_, err = r.Create(ctx, &models.Identity{ID: "2", Username: "alice", Active: true})
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = r.Create(ctx, &models.Identity{ID: "3", Username: "bob", EmailAddress: &email, Active: true})
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	exists, err := r.ExistsByUsernameOrEmail(ctx, "carol", &email)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = r.ExistsByUsernameOrEmail(ctx, "carol", nil)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemory_List(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	carol := "id-carol"

	seed(t, r, "admin", nil, scope.Admin, scope.Me)
	seed(t, r, "carol", nil, scope.Me)
	seed(t, r, "bob", &carol, scope.Me)
	seed(t, r, "alice", &carol, scope.Me)
	seed(t, r, "dave", nil, scope.Me)
	gone := seed(t, r, "eve", &carol, scope.Me)
	require.NoError(t, r.Deactivate(ctx, gone.ID))

	all, err := r.List(ctx, models.IdentityFilter{ExcludeUsernames: []string{"admin", "carol"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "dave"}, usernames(all))

	mine, err := r.List(ctx, models.IdentityFilter{ExcludeUsernames: []string{"admin", "carol"}, CreatedBy: &carol})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, usernames(mine))
}

func TestMemory_Mutations(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	alice := seed(t, r, "alice", nil, scope.Me)
	bob := seed(t, r, "bob", nil, scope.Me)

	require.NoError(t, r.SetScopes(ctx, alice.ID, scope.NewSet(scope.Me, scope.TransactionRead)))
	require.NoError(t, r.CompletePasswordChange(ctx, alice.ID, "new-hash", "alice@example.com"))

	got, err := r.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "me,transaction_read", got.Scopes.String())
	assert.Equal(t, "new-hash", got.CredentialHash)
	assert.Equal(t, "alice@example.com", *got.EmailAddress)
	assert.False(t, got.FirstLogin)

	require.NoError(t, r.CompletePasswordChange(ctx, alice.ID, "newer-hash", "alice@example.com"), "keeping one's own address is fine")
	require.ErrorIs(t, r.CompletePasswordChange(ctx, bob.ID, "h", "alice@example.com"), common.ErrAlreadyExists)

	require.NoError(t, r.Deactivate(ctx, bob.ID))
	require.ErrorIs(t, r.Deactivate(ctx, bob.ID), common.ErrorNotFound)
	require.ErrorIs(t, r.SetScopes(ctx, bob.ID, scope.NewSet(scope.Me)), common.ErrorNotFound)

	stillThere, err := r.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, stillThere.Active, "soft deletion keeps the record")
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	alice := seed(t, r, "alice", nil, scope.Me)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = r.SetScopes(ctx, alice.ID, scope.NewSet(scope.Me, scope.TransactionRead))
		}()
		go func() {
			defer wg.Done()
			_, _ = r.GetByUsername(ctx, "alice")
			_, _ = r.List(ctx, models.IdentityFilter{})
		}()
	}
	wg.Wait()
}

func usernames(list []*models.Identity) []string {
	out := make([]string, len(list))
	for i, identity := range list {
		out[i] = identity.Username
	}
	return out
}
