package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the REPL drives. App satisfies it; tests
// use a recording stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Verify(ctx context.Context, token string) error
	Login(ctx context.Context) error
	Cancel(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Status(ctx context.Context) error
	Profile(ctx context.Context, edit bool) error
	Sessions(ctx context.Context) error
	Revoke(ctx context.Context, id string) error
	TwoFactorSetup(ctx context.Context) error
	TwoFactorConfirm(ctx context.Context, code string) error
	TwoFactorDisable(ctx context.Context) error
	ResetRequest(ctx context.Context) error
	Reset(ctx context.Context, token string) error
}

var errUsage = errors.New("usage")

// runREPL reads commands from in until EOF, "exit" or "quit". Command
// errors are printed and the loop continues. The prompt shows statusFn().
//
//	Not signed in:  register, verify <token>, login, cancel, reset-request,
//	                reset <token>, status, exit
//	Signed in:      whoami, status, profile [edit], sessions, revoke <id>,
//	                2fa-setup, 2fa-confirm <code>, 2fa-disable, logout, exit
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, out io.Writer) {
	for {
		fmt.Fprintf(out, "finmate %s> ", statusFn())
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: whoami, status, profile [edit], sessions, revoke <id>, 2fa-setup, 2fa-confirm <code>, 2fa-disable, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, verify <token>, login, cancel, reset-request, reset <token>, status, exit")
			}

		case "register":
			cmdErr = a.Register(ctx)
		case "verify":
			cmdErr = withArg(args, "verify <token>", func(v string) error { return a.Verify(ctx, v) })
		case "login":
			cmdErr = a.Login(ctx)
		case "cancel":
			cmdErr = a.Cancel(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "status":
			cmdErr = a.Status(ctx)
		case "profile":
			cmdErr = a.Profile(ctx, len(args) > 0 && args[0] == "edit")
		case "sessions":
			cmdErr = a.Sessions(ctx)
		case "revoke":
			cmdErr = withArg(args, "revoke <id>", func(v string) error { return a.Revoke(ctx, v) })
		case "2fa-setup":
			cmdErr = a.TwoFactorSetup(ctx)
		case "2fa-confirm":
			cmdErr = withArg(args, "2fa-confirm <code>", func(v string) error { return a.TwoFactorConfirm(ctx, v) })
		case "2fa-disable":
			cmdErr = a.TwoFactorDisable(ctx)
		case "reset-request":
			cmdErr = a.ResetRequest(ctx)
		case "reset":
			cmdErr = withArg(args, "reset <token>", func(v string) error { return a.Reset(ctx, v) })

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(out, "Error:", cmdErr)
		}
	}
}

func withArg(args []string, usage string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s", errUsage, usage)
	}
	return fn(args[0])
}
