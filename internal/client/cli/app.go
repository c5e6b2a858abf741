// Package cli implements the interactive Khazana command-line client.
//
// The CLI is a small read–eval–print loop. A session starts logged out;
// "login" exchanges credentials for a token that later commands reuse.
// Passwords are read without echo via golang.org/x/term.
package cli

import (
	"bufio"
	"context"
	"io"
	"os"

	"github.com/dmitrijs2005/khazana/internal/client/client"
	"github.com/dmitrijs2005/khazana/internal/client/config"
)

type App struct {
	config   *config.Config
	client   client.Client
	reader   *bufio.Reader
	out      io.Writer
	userName string
	token    *client.Token
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.New(c)
	if err != nil {
		return nil, err
	}

	return &App{
		config: c,
		client: apiClient,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.client.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.token != nil
}

// requestContext bounds a single server call by the configured timeout.
func (a *App) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}
