package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/anayy09/FinMate/internal/client/client"
	"github.com/anayy09/FinMate/internal/client/models"
	"github.com/anayy09/FinMate/internal/client/services"
	"github.com/anayy09/FinMate/internal/client/tokens"
	"github.com/anayy09/FinMate/internal/common"
)

var errPasswordMismatch = errors.New("passwords do not match")

func (a *App) prompt(label string) (string, error) {
	return GetSimpleText(a.reader, label, a.out)
}

// secret reads without echo on a terminal and as a plain line otherwise.
func (a *App) secret(label string) ([]byte, error) {
	if a.interactive {
		return GetPassword(label, a.out)
	}
	s, err := a.prompt(label)
	return []byte(s), err
}

func (a *App) newPassword() ([]byte, error) {
	pw, err := a.secret("New password")
	if err != nil {
		return nil, err
	}
	again, err := a.secret("Repeat password")
	defer common.Wipe(again)
	if err != nil {
		common.Wipe(pw)
		return nil, err
	}
	if string(pw) != string(again) {
		common.Wipe(pw)
		return nil, errPasswordMismatch
	}
	return pw, nil
}

func (a *App) Register(ctx context.Context) error {
	name, err := a.prompt("Name")
	if err != nil {
		return err
	}
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.Wipe(pw)

	msg, err := a.account.SignUp(ctx, name, email, pw)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, msg)
	return nil
}

func (a *App) Verify(ctx context.Context, token string) error {
	if err := a.account.VerifyEmail(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Email verified. You can log in now.")
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	pw, err := a.secret("Password")
	if err != nil {
		return err
	}
	defer common.Wipe(pw)

	out, err := a.session.SignIn(ctx, email, pw)
	if err != nil {
		return err
	}
	if !out.TwoFactorRequired {
		fmt.Fprintln(a.out, "Signed in as", out.Identity.Email)
		return nil
	}

	a.setTicket(out.Ticket)
	return a.completeTwoFactor(ctx, out.Ticket)
}

// completeTwoFactor prompts for codes until one is accepted, the user types
// "cancel" or something other than a wrong code goes wrong.
func (a *App) completeTwoFactor(ctx context.Context, ticket string) error {
	for {
		code, err := a.prompt("One-time code (or 'cancel')")
		if err != nil {
			return err
		}
		if code == "" || code == "cancel" {
			return a.Cancel(ctx)
		}

		identity, err := a.session.CompleteTwoFactor(ctx, ticket, code)
		switch {
		case err == nil:
			a.setTicket("")
			fmt.Fprintln(a.out, "Signed in as", identity.Email)
			return nil
		case errors.Is(err, client.ErrTwoFactorCodeInvalid):
			fmt.Fprintln(a.out, "Invalid code, try again.")
		default:
			if errors.Is(err, services.ErrNoPendingTwoFactor) {
				a.setTicket("")
			}
			return err
		}
	}
}

func (a *App) setTicket(t string) {
	a.mu.Lock()
	a.ticket = t
	a.mu.Unlock()
}

func (a *App) Cancel(context.Context) error {
	ticket, ok := a.session.PendingTwoFactor()
	if !ok {
		a.setTicket("")
		return services.ErrNoPendingTwoFactor
	}
	a.session.CancelTwoFactor(ticket)
	a.setTicket("")
	fmt.Fprintln(a.out, "Sign-in cancelled.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.RequireAuthenticated(); err != nil {
		return err
	}
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) WhoAmI(context.Context) error {
	identity := a.session.Identity()
	if identity == nil {
		return services.ErrNotAuthenticated
	}
	fmt.Fprintf(a.out, "%s <%s>\n", identity.Name, identity.Email)
	return nil
}

// Status prints the session state and, when signed in, how long the current
// access token has left. The expiry is read without verification.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintln(a.out, "State:", a.session.State())
	if _, pending := a.session.PendingTwoFactor(); pending {
		fmt.Fprintln(a.out, "Two-factor sign-in pending")
	}
	if !a.isLoggedIn() {
		return nil
	}

	creds, err := a.store.Get(ctx)
	if err != nil {
		return err
	}
	left, err := tokens.Remaining(creds.Tokens.AccessToken, time.Now())
	if err != nil {
		fmt.Fprintln(a.out, "Access token expiry: unknown")
		return nil
	}
	fmt.Fprintln(a.out, "Access token expires in", left.Round(time.Second))
	return nil
}

func (a *App) Profile(ctx context.Context, edit bool) error {
	identity, err := a.session.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	if edit {
		patch, err := a.promptPatch(identity)
		if err != nil {
			return err
		}
		if identity, err = a.account.UpdateProfile(ctx, patch); err != nil {
			return err
		}
	}
	a.printProfile(identity)
	return nil
}

// promptPatch asks for each editable field; an empty answer keeps it.
func (a *App) promptPatch(cur *models.Identity) (models.ProfilePatch, error) {
	var patch models.ProfilePatch
	fields := []struct {
		label string
		value string
		dst   **string
	}{
		{"Name", cur.Name, &patch.Name},
		{"Phone", cur.Phone, &patch.Phone},
		{"Bio", cur.Bio, &patch.Bio},
		{"Location", cur.Location, &patch.Location},
		{"Occupation", cur.Occupation, &patch.Occupation},
		{"Preferred currency", cur.PreferredCurrency, &patch.PreferredCurrency},
	}
	for _, f := range fields {
		v, err := a.prompt(fmt.Sprintf("%s [%s]", f.label, f.value))
		if err != nil {
			return patch, err
		}
		if v != "" && v != f.value {
			*f.dst = &v
		}
	}
	return patch, nil
}

func (a *App) printProfile(i *models.Identity) {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name:\t%s\n", i.Name)
	fmt.Fprintf(w, "Email:\t%s\n", i.Email)
	fmt.Fprintf(w, "Verified:\t%t\n", i.EmailVerified)
	fmt.Fprintf(w, "Two-factor:\t%t\n", i.TwoFactorEnabled)
	fmt.Fprintf(w, "Premium:\t%t\n", i.IsPremium)
	for _, f := range []struct{ k, v string }{
		{"Phone", i.Phone},
		{"Bio", i.Bio},
		{"Location", i.Location},
		{"Occupation", i.Occupation},
		{"Currency", i.PreferredCurrency},
	} {
		if f.v != "" {
			fmt.Fprintf(w, "%s:\t%s\n", f.k, f.v)
		}
	}
	w.Flush()
}

func (a *App) Sessions(ctx context.Context) error {
	list, err := a.devices.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tID\tDEVICE\tIP\tSIGNED IN")
	for _, d := range list {
		mark := ""
		if d.Current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", mark, d.ID, d.DeviceInfo, d.IPAddress, d.CreatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}

func (a *App) Revoke(ctx context.Context, id string) error {
	if err := a.devices.Revoke(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Session revoked.")
	return nil
}

func (a *App) TwoFactorSetup(ctx context.Context) error {
	setup, err := a.twoFactor.BeginEnrollment(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Add this account to your authenticator app:")
	fmt.Fprintln(a.out, "  Secret:", setup.Secret)
	fmt.Fprintln(a.out, "  URI:   ", setup.QRCode)
	fmt.Fprintln(a.out, "Then run: 2fa-confirm <code>")
	return nil
}

func (a *App) TwoFactorConfirm(ctx context.Context, code string) error {
	if err := a.twoFactor.ConfirmEnrollment(ctx, strings.TrimSpace(code)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Two-factor authentication enabled.")
	return nil
}

func (a *App) TwoFactorDisable(ctx context.Context) error {
	pw, err := a.secret("Password")
	if err != nil {
		return err
	}
	defer common.Wipe(pw)

	if err := a.twoFactor.Disable(ctx, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Two-factor authentication disabled.")
	return nil
}

func (a *App) ResetRequest(ctx context.Context) error {
	email, err := a.prompt("Email")
	if err != nil {
		return err
	}
	if err := a.account.RequestPasswordReset(ctx, email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "If the address is registered, a reset link is on its way.")
	return nil
}

func (a *App) Reset(ctx context.Context, token string) error {
	pw, err := a.newPassword()
	if err != nil {
		return err
	}
	defer common.Wipe(pw)

	if err := a.account.ResetPassword(ctx, token, pw); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed. All sessions were signed out.")
	return nil
}
