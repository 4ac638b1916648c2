// Package mail delivers the development backend's account emails. There is
// no SMTP: links are logged, or kept in memory for tests.
package mail

import (
	"context"
	"sync"

	"github.com/anayy09/FinMate/internal/logging"
)

// Kind names the email being sent.
type Kind string

const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Message is one outgoing email. Token is the single-use recovery token
// the link carries.
type Message struct {
	Kind  Kind
	To    string
	Token string
}

// LogMailer writes every message to the log so a developer can copy the
// token into the client.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{logger: l.With("module", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info(ctx, "email sent", "kind", string(msg.Kind), "to", msg.To, "token", msg.Token)
	return nil
}

// Outbox keeps messages in memory.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
	return nil
}

// Last returns the most recent message of kind sent to addr.
func (o *Outbox) Last(kind Kind, addr string) (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.messages) - 1; i >= 0; i-- {
		if m := o.messages[i]; m.Kind == kind && m.To == addr {
			return m, true
		}
	}
	return Message{}, false
}
