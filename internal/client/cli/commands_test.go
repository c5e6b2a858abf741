package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/khazana/internal/client/client"
	"github.com/dmitrijs2005/khazana/internal/client/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	token     *client.Token
	issueErr  error
	me        *client.Identity
	meErr     error
	changeErr error

	gotUser   string
	gotPass   string
	gotScopes []string
	gotToken  string
	gotChange client.PasswordChange
	closed    bool
}

func (f *fakeClient) IssueToken(_ context.Context, username, password string, scopes []string) (*client.Token, error) {
	f.gotUser, f.gotPass, f.gotScopes = username, password, scopes
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.token, nil
}

func (f *fakeClient) Me(_ context.Context, token string) (*client.Identity, error) {
	f.gotToken = token
	return f.me, f.meErr
}

func (f *fakeClient) ChangePassword(_ context.Context, token string, req client.PasswordChange) (*client.Identity, error) {
	f.gotToken = token
	f.gotChange = req
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &client.Identity{Username: f.gotUser, FirstLogin: false}, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func stubPasswords(t *testing.T, pw ...string) {
	t.Helper()
	orig := getPassword
	i := 0
	getPassword = func(string, io.Writer) (string, error) {
		if i >= len(pw) {
			return "", fmt.Errorf("unexpected password prompt %d", i)
		}
		p := pw[i]
		i++
		return p, nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func newTestApp(fc *fakeClient, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return &App{
		config: cfg,
		client: fc,
		reader: bufio.NewReader(strings.NewReader(input)),
		out:    &out,
	}, &out
}

func TestLogin_Success(t *testing.T) {
	stubPasswords(t, "admin")
	fc := &fakeClient{token: &client.Token{
		AccessToken:             "tok",
		Scopes:                  []string{"me", "admin"},
		FirstLogin:              true,
		PasswordPolicyViolation: true,
	}}
	app, out := newTestApp(fc, "admin\nme admin\n")

	require.NoError(t, app.Login(context.Background()))

	assert.Equal(t, "admin", fc.gotUser)
	assert.Equal(t, "admin", fc.gotPass)
	assert.Equal(t, []string{"me", "admin"}, fc.gotScopes)
	assert.True(t, app.isLoggedIn())
	assert.Equal(t, " (admin)", app.getStatus())
	assert.Contains(t, out.String(), "Scopes: me, admin")
	assert.Contains(t, out.String(), "first login")
	assert.Contains(t, out.String(), "password policy")
}

func TestLogin_DefaultScopes(t *testing.T) {
	stubPasswords(t, "pw")
	fc := &fakeClient{token: &client.Token{AccessToken: "tok", Scopes: []string{"me"}}}
	app, _ := newTestApp(fc, "alice\n\n")

	require.NoError(t, app.Login(context.Background()))
	assert.Empty(t, fc.gotScopes)
}

func TestLogin_Rejected(t *testing.T) {
	stubPasswords(t, "wrong")
	fc := &fakeClient{issueErr: &client.APIError{Err: client.ErrUnauthorized, Detail: "Incorrect username or password."}}
	app, out := newTestApp(fc, "alice\n\n")

	err := app.Login(context.Background())
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.False(t, app.isLoggedIn())
	assert.Contains(t, out.String(), "Incorrect username or password.")
}

func TestWhoAmI(t *testing.T) {
	email := "alice@example.com"
	fc := &fakeClient{me: &client.Identity{Username: "alice", EmailAddress: &email, Scopes: []string{"me"}}}
	app, out := newTestApp(fc, "")

	require.ErrorIs(t, app.WhoAmI(context.Background()), errNotLoggedIn)

	app.token = &client.Token{AccessToken: "tok"}
	require.NoError(t, app.WhoAmI(context.Background()))
	assert.Equal(t, "tok", fc.gotToken)
	assert.Contains(t, out.String(), "alice@example.com")
}

func TestWhoAmI_ExpiredToken(t *testing.T) {
	fc := &fakeClient{meErr: &client.APIError{Err: client.ErrUnauthorized, Detail: "Could not validate credentials."}}
	app, out := newTestApp(fc, "")
	app.token = &client.Token{AccessToken: "tok"}

	require.ErrorIs(t, app.WhoAmI(context.Background()), client.ErrUnauthorized)
	assert.Contains(t, out.String(), "Try 'login' again")
}

func TestChangePassword(t *testing.T) {
	stubPasswords(t, "admin", "Admin@123", "Admin@123")
	fc := &fakeClient{}
	app, out := newTestApp(fc, "admin@example.com\n")
	app.token = &client.Token{AccessToken: "tok", FirstLogin: true}

	require.NoError(t, app.ChangePassword(context.Background()))

	assert.Equal(t, client.PasswordChange{
		OldPassword:  "admin",
		NewPassword:  "Admin@123",
		EmailAddress: "admin@example.com",
	}, fc.gotChange)
	assert.False(t, app.token.FirstLogin)
	assert.Contains(t, out.String(), "Password changed.")
}

func TestChangePassword_Mismatch(t *testing.T) {
	stubPasswords(t, "admin", "Admin@123", "Admin@124")
	fc := &fakeClient{}
	app, _ := newTestApp(fc, "admin@example.com\n")
	app.token = &client.Token{AccessToken: "tok"}

	require.Error(t, app.ChangePassword(context.Background()))
	assert.Empty(t, fc.gotToken, "nothing is sent on mismatch")
}

func TestChangePassword_NotLoggedIn(t *testing.T) {
	app, _ := newTestApp(&fakeClient{}, "")
	require.ErrorIs(t, app.ChangePassword(context.Background()), errNotLoggedIn)
}

func TestLogout(t *testing.T) {
	app, _ := newTestApp(&fakeClient{}, "")
	app.token = &client.Token{AccessToken: "tok"}
	app.userName = "alice"

	require.NoError(t, app.Logout(context.Background()))
	assert.False(t, app.isLoggedIn())
	assert.Equal(t, "", app.getStatus())
}

func TestRun_ClosesClient(t *testing.T) {
	fc := &fakeClient{}
	app, out := newTestApp(fc, "exit\n")

	app.Run(context.Background())
	assert.True(t, fc.closed)
	assert.Contains(t, out.String(), "Bye!")
}
