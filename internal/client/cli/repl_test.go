package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	failOn   string

	calls []string
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error      { return f.record("register") }
func (f *fakeExec) Verify(_ context.Context, tok string) error {
	return f.record("verify " + tok)
}
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Cancel(context.Context) error { return f.record("cancel") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) WhoAmI(context.Context) error { return f.record("whoami") }
func (f *fakeExec) Status(context.Context) error { return f.record("status") }
func (f *fakeExec) Profile(_ context.Context, edit bool) error {
	if edit {
		return f.record("profile edit")
	}
	return f.record("profile")
}
func (f *fakeExec) Sessions(context.Context) error { return f.record("sessions") }
func (f *fakeExec) Revoke(_ context.Context, id string) error {
	return f.record("revoke " + id)
}
func (f *fakeExec) TwoFactorSetup(context.Context) error { return f.record("2fa-setup") }
func (f *fakeExec) TwoFactorConfirm(_ context.Context, code string) error {
	return f.record("2fa-confirm " + code)
}
func (f *fakeExec) TwoFactorDisable(context.Context) error { return f.record("2fa-disable") }
func (f *fakeExec) ResetRequest(context.Context) error     { return f.record("reset-request") }
func (f *fakeExec) Reset(_ context.Context, tok string) error {
	return f.record("reset " + tok)
}

func TestRunREPL_Dispatch(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"register",
		"verify abc",
		"login",
		"help",
		"whoami",
		"profile",
		"profile edit",
		"sessions",
		"revoke s-1",
		"2fa-setup",
		"2fa-confirm 123456",
		"2fa-disable",
		"status",
		"logout",
		"reset-request",
		"reset tok",
		"cancel",
		"",
		"exit",
		"whoami",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "(anonymous)" }, rdr(input), &out)

	assert.Equal(t, []string{
		"register", "verify abc", "login", "whoami", "profile", "profile edit",
		"sessions", "revoke s-1", "2fa-setup", "2fa-confirm 123456", "2fa-disable",
		"status", "logout", "reset-request", "reset tok", "cancel",
	}, exec.calls)
	assert.Contains(t, out.String(), "finmate (anonymous)> ")
	assert.Contains(t, out.String(), "Available commands: register")
	assert.Contains(t, out.String(), "Available commands: whoami")
	assert.Contains(t, out.String(), "Bye!")
}

func TestRunREPL_UsageErrorsAndUnknown(t *testing.T) {
	exec := &fakeExec{loggedIn: true}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "" }, rdr("revoke\nverify a b\nfoobar\nquit\n"), &out)

	assert.Empty(t, exec.calls)
	assert.Contains(t, out.String(), "usage: revoke <id>")
	assert.Contains(t, out.String(), "usage: verify <token>")
	assert.Contains(t, out.String(), "Unknown command: foobar")
}

func TestRunREPL_PrintsCommandErrorsAndContinues(t *testing.T) {
	exec := &fakeExec{failOn: "whoami"}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "" }, rdr("whoami\nstatus"), &out)

	assert.Equal(t, []string{"whoami", "status"}, exec.calls)
	assert.Contains(t, out.String(), "Error: whoami failed")
}
