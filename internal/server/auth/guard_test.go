package auth

import (
	"testing"

	"github.com/dmitrijs2005/khazana/internal/common"
	"github.com/dmitrijs2005/khazana/internal/server/scope"
	"github.com/stretchr/testify/require"
)

func TestCheckCreate(t *testing.T) {
	admin := scope.NewSet(scope.Admin, scope.Me)
	reader := scope.NewSet(scope.Me, scope.TransactionRead)

	require.NoError(t, CheckCreate(admin, scope.NewSet(scope.TransactionWrite, scope.Admin)))
	require.NoError(t, CheckCreate(reader, scope.NewSet(scope.TransactionRead)))
	require.NoError(t, CheckCreate(reader, reader))
	require.ErrorIs(t, CheckCreate(reader, scope.NewSet(scope.TransactionWrite)), common.ErrPrivilegeEscalation)
	require.ErrorIs(t, CheckCreate(reader, scope.NewSet(scope.Me, scope.Admin)), common.ErrPrivilegeEscalation)
}

func TestCheckUpdate(t *testing.T) {
	admin := scope.NewSet(scope.Admin, scope.Me)
	reader := scope.NewSet(scope.Me, scope.TransactionRead)
	bootstrap := identity(common.AdminUsername, false, scope.Admin, scope.Me)
	bob := identity("bob", false, scope.Me)

	require.NoError(t, CheckUpdate(admin, bob, scope.NewSet(scope.Me, scope.TransactionWrite)))
	require.NoError(t, CheckUpdate(admin, bootstrap, scope.NewSet(scope.Admin)))

	require.ErrorIs(t, CheckUpdate(admin, bootstrap, scope.NewSet(scope.Me)), common.ErrAdminProtected)
	require.ErrorIs(t, CheckUpdate(reader, bootstrap, scope.NewSet(scope.Me)), common.ErrAdminProtected)
	require.ErrorIs(t, CheckUpdate(reader, bob, scope.NewSet(scope.Me)), common.ErrAdminRequired)
	require.ErrorIs(t, CheckUpdate(reader, bootstrap, scope.NewSet(scope.Admin)), common.ErrAdminRequired)
}

func TestCheckDelete(t *testing.T) {
	admin := scope.NewSet(scope.Admin, scope.Me)
	reader := scope.NewSet(scope.Me)
	bootstrap := identity(common.AdminUsername, false, scope.Admin)
	bob := identity("bob", false, scope.Me)

	require.NoError(t, CheckDelete(admin, bob))
	require.ErrorIs(t, CheckDelete(admin, bootstrap), common.ErrAdminProtected)
	require.ErrorIs(t, CheckDelete(reader, bootstrap), common.ErrAdminProtected)
	require.ErrorIs(t, CheckDelete(reader, bob), common.ErrAdminRequired)
}
