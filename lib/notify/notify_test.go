package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

type sendCall struct {
	addr   string
	authed bool
	mail   *email.Email
}

func stubSend(n *SmtpNotifier, results ...error) *[]sendCall {
	calls := &[]sendCall{}
	n.send = func(e *email.Email, addr string, auth smtp.Auth) error {
		*calls = append(*calls, sendCall{addr: addr, authed: auth != nil, mail: e})
		if len(results) == 0 {
			return nil
		}
		err := results[0]
		results = results[1:]
		return err
	}
	return calls
}

func TestSmtpNotifier(t *testing.T) {
	n, err := NewSmtpNotifier(SmtpConfig{
		Username: "user",
		Password: "pass",
		To:       []string{"someone@example.com"},
	})
	require.NoError(t, err)
	calls := stubSend(n)

	err = n.Notify(context.Background(), Message{Subject: "✅ Successful Login"})
	require.NoError(t, err)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "smtp-relay.brevo.com:587", call.addr)
	require.True(t, call.authed)
	require.Equal(t, DefaultFrom, call.mail.From)
	require.Equal(t, []string{"someone@example.com"}, call.mail.To)
	require.Equal(t, "✅ Successful Login", call.mail.Subject)
	// the subject doubles as the body
	require.Equal(t, "✅ Successful Login", string(call.mail.Text))
}

func TestSmtpNotifierRetriesWithoutAuth(t *testing.T) {
	n, err := NewSmtpNotifier(SmtpConfig{
		Server:   "localhost",
		Port:     2525,
		Username: "user",
		To:       []string{"someone@example.com"},
	})
	require.NoError(t, err)
	calls := stubSend(n, errors.New("smtp: server doesn't support AUTH"), nil)

	err = n.Notify(context.Background(), Message{Subject: "s", Text: "body"})
	require.NoError(t, err)
	require.Len(t, *calls, 2)
	require.True(t, (*calls)[0].authed)
	require.False(t, (*calls)[1].authed)
	require.Equal(t, "localhost:2525", (*calls)[1].addr)
	require.Equal(t, "body", string((*calls)[1].mail.Text))
}

func TestSmtpNotifierFailure(t *testing.T) {
	n, err := NewSmtpNotifier(SmtpConfig{To: []string{"someone@example.com"}})
	require.NoError(t, err)
	calls := stubSend(n, errors.New("dial tcp: connection refused"))

	err = n.Notify(context.Background(), Message{Subject: "s"})
	require.ErrorContains(t, err, "connection refused")
	require.Len(t, *calls, 1)
	require.False(t, (*calls)[0].authed)
}

func TestSmtpConfigValidation(t *testing.T) {
	_, err := NewSmtpNotifier(SmtpConfig{})
	require.Error(t, err)

	_, err = NewSmtpNotifier(SmtpConfig{To: []string{"not an address"}})
	require.Error(t, err)

	_, err = NewSmtpNotifier(SmtpConfig{From: "<<bad", To: []string{"a@example.com"}})
	require.Error(t, err)
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, Message) error {
	return errors.New("boom")
}

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify(context.Context, Message) error {
	c.n++
	return nil
}

func TestMulti(t *testing.T) {
	counter := &countingNotifier{}
	m := Multi{failingNotifier{}, counter, LogNotifier{}}

	err := m.Notify(context.Background(), Message{Subject: "s"})
	require.ErrorContains(t, err, "boom")
	require.Equal(t, 1, counter.n)
}
