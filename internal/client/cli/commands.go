package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/khazana/internal/client/client"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var errNotLoggedIn = errors.New("not logged in, use 'login' first")

// Login prompts for credentials and exchanges them for a token. Scopes are
// optional; an empty answer asks the server for its default grant.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}

	scopes, err := getSimpleText(a.reader, "Scopes (space separated, empty for default)", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	tok, err := a.client.IssueToken(ctx, userName, password, strings.Fields(scopes))
	if err != nil {
		fmt.Fprintf(a.out, "Login unsuccessful: %s\n", err.Error())
		return err
	}

	a.userName = userName
	a.token = tok

	fmt.Fprintf(a.out, "Logged in. Scopes: %s\n", strings.Join(tok.Scopes, ", "))
	fmt.Fprintf(a.out, "Token: %s\n", tok.AccessToken)
	if tok.FirstLogin {
		fmt.Fprintln(a.out, "This is your first login: change your password with 'passwd'.")
	}
	if tok.PasswordPolicyViolation {
		fmt.Fprintln(a.out, "Warning: your password does not meet the password policy.")
	}
	return nil
}

// WhoAmI prints the server's view of the logged in identity.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, errNotLoggedIn.Error())
		return errNotLoggedIn
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	me, err := a.client.Me(ctx, a.token.AccessToken)
	if err != nil {
		a.reportError(err)
		return err
	}

	a.printIdentity(me)
	return nil
}

// ChangePassword asks for the current password, the new one twice and an
// email address, then submits the change.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, errNotLoggedIn.Error())
		return errNotLoggedIn
	}

	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	confirm, err := getPassword("Repeat new password", a.out)
	if err != nil {
		return err
	}
	if newPassword != confirm {
		err := errors.New("passwords do not match")
		fmt.Fprintln(a.out, err.Error())
		return err
	}

	email, err := getSimpleText(a.reader, "Email address", a.out)
	if err != nil {
		return err
	}

	ctx, cancel := a.requestContext(ctx)
	defer cancel()

	updated, err := a.client.ChangePassword(ctx, a.token.AccessToken, client.PasswordChange{
		OldPassword:  oldPassword,
		NewPassword:  newPassword,
		EmailAddress: email,
	})
	if err != nil {
		a.reportError(err)
		return err
	}

	a.token.FirstLogin = updated.FirstLogin
	fmt.Fprintln(a.out, "Password changed.")
	return nil
}

// Logout forgets the current token.
func (a *App) Logout(context.Context) error {
	a.token = nil
	a.userName = ""
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *App) printIdentity(me *client.Identity) {
	email := "-"
	if me.EmailAddress != nil {
		email = *me.EmailAddress
	}
	fmt.Fprintf(a.out, "Username:    %s\n", me.Username)
	fmt.Fprintf(a.out, "Email:       %s\n", email)
	fmt.Fprintf(a.out, "Scopes:      %s\n", strings.Join(me.Scopes, ", "))
	fmt.Fprintf(a.out, "First login: %t\n", me.FirstLogin)
}

func (a *App) reportError(err error) {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintf(a.out, "Not authenticated (%s). Try 'login' again.\n", err.Error())
	case errors.Is(err, client.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable.")
	default:
		fmt.Fprintf(a.out, "Error: %s\n", err.Error())
	}
}
