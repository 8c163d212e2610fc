package session

import (
	"context"

	"promowatch/internal/modules/message/domain"
)

// Account identifies the authorized identity behind a client.
type Account struct {
	ID        int64
	Username  string
	FirstName string
}

// ChannelHandle is a resolved source channel.
type ChannelHandle struct {
	ID       int64
	Username string
	Title    string
}

// Client is a provider connection handle. Implementations are not safe
// for concurrent callers; one in-flight request at a time per identity.
//
// Operations report flood control as *errors.FloodWaitError, a revoked or
// unregistered session as errors.ErrSessionInvalid, and a pending second
// factor as errors.ErrTwoFactorRequired.
type Client interface {
	Connect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)
	SendCodeRequest(ctx context.Context, identity string) error
	SignIn(ctx context.Context, identity, code string) error
	SignInWithPassword(ctx context.Context, password string) error
	Me(ctx context.Context) (*Account, error)
	ExportSession() (string, error)

	ResolveChannel(ctx context.Context, name string) (*ChannelHandle, error)
	RecentMessages(ctx context.Context, handle *ChannelHandle, limit int) ([]*domain.Message, error)
	DownloadMedia(ctx context.Context, msg *domain.Message) ([]byte, error)

	Disconnect() error
}

// Dialer opens a client from a stored session string. An empty session
// string dials a fresh, unauthorized connection.
type Dialer interface {
	Dial(ctx context.Context, sessionString string) (Client, error)
}

// CredentialPrompter supplies the one-time code and the two-factor
// password during interactive authorization.
type CredentialPrompter interface {
	Code(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
}
