package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL dispatches to. App satisfies it;
// tests provide a stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands line by line from reader until EOF or "exit".
// Errors from command handlers are reported by the handlers themselves.
//
//	login          exchange credentials for a token
//	whoami         show the logged in identity
//	passwd         change the password
//	logout         forget the token
//	exit | quit    leave the program
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		fmt.Fprintf(w, "khazana%s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch cmd := parts[0]; cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: whoami, passwd, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: login, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "whoami", "me":
			_ = a.WhoAmI(ctx)

		case "passwd", "change-password":
			_ = a.ChangePassword(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return

		default:
			fmt.Fprintln(w, "Unknown command:", cmd)
		}
	}
}

func (a *App) getStatus() string {
	if a.userName == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", a.userName)
}

// Root prints a banner and runs the REPL on the App's input and output.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintf(a.out, "Khazana CLI, %s transport (type 'help' for commands)\n", a.config.Transport)
	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}
