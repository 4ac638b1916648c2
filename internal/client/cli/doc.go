// Package cli provides the interactive FinMate client shell.
//
// It wires configuration, the credential store, the identity client, the
// authenticated request gateway and the session services, then runs a REPL
// until the user exits. The prompt follows the session state through a
// subscription, and a session ended by the gateway is announced inline.
//
// Commands:
//   - register, verify <token>, reset-request, reset <token>
//   - login (asks for a one-time code when the account has one), cancel
//   - logout, whoami, status
//   - profile [edit]
//   - sessions, revoke <id>
//   - 2fa-setup, 2fa-confirm <code>, 2fa-disable
//   - help, exit
package cli
