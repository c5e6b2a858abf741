// Package client talks to the Khazana identity server.
//
// The Client interface has two implementations: HTTPClient for the public
// REST API and GRPCClient for the gRPC service. Both map server rejections
// onto the sentinel errors in errors.go so callers can use errors.Is without
// caring about the transport.
package client

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/khazana/internal/client/config"
)

type Client interface {
	IssueToken(ctx context.Context, username, password string, scopes []string) (*Token, error)
	Me(ctx context.Context, token string) (*Identity, error)
	ChangePassword(ctx context.Context, token string, req PasswordChange) (*Identity, error)
	Close() error
}

// Token is the result of a credential exchange.
type Token struct {
	AccessToken             string   `json:"access_token"`
	TokenType               string   `json:"token_type"`
	Scopes                  []string `json:"scopes"`
	FirstLogin              bool     `json:"firstLogin"`
	PasswordPolicyViolation bool     `json:"passwordPolicyViolation"`
}

// Identity is the server's view of an account.
type Identity struct {
	Username     string   `json:"username"`
	EmailAddress *string  `json:"emailAddress"`
	Scopes       []string `json:"scopes"`
	FirstLogin   bool     `json:"firstLogin"`
}

type PasswordChange struct {
	OldPassword  string `json:"oldPassword"`
	NewPassword  string `json:"newPassword"`
	EmailAddress string `json:"emailAddress"`
}

// New returns the client for the transport selected in cfg.
func New(cfg *config.Config) (Client, error) {
	switch cfg.Transport {
	case config.TransportHTTP:
		return NewHTTPClient(cfg.ServerURL, cfg.RequestTimeout), nil
	case config.TransportGRPC:
		return NewGRPCClient(cfg.GRPCAddr)
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
