package telegram

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/oops"

	"promowatch/internal/modules/message/domain"
	"promowatch/internal/modules/session"
	sharederrors "promowatch/internal/shared/errors"
)

// Buffered posts kept per channel between polling cycles.
const postBufferCap = 100

// Dialer opens Bot API clients. The session string is the bot token, so
// a restored session reconnects with the same credentials it exported.
type Dialer struct {
	token string
}

func NewDialer(token string) *Dialer {
	return &Dialer{token: token}
}

func (d *Dialer) Dial(ctx context.Context, sessionString string) (session.Client, error) {
	token := sessionString
	if token == "" {
		token = d.token
	}
	return &Client{
		token: token,
		posts: make(map[int64][]*domain.Message),
	}, nil
}

// Client adapts the Bot API to the session client contract. The Bot API
// exposes no channel history, so posts arrive through the long-poll
// update stream and are buffered until the next RecentMessages call,
// per chat.
type Client struct {
	token  string
	bot    *bot.Bot
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	posts map[int64][]*domain.Message
}

func (c *Client) Connect(ctx context.Context) error {
	b, err := bot.New(c.token, bot.WithDefaultHandler(c.handleUpdate))
	if err != nil {
		return mapError(oops.With("context", "failed to create telegram bot").Wrap(err))
	}
	c.bot = b

	// The long poll outlives the connect call; Disconnect stops it.
	pollCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		b.Start(pollCtx)
	}()

	return nil
}

func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	if c.bot == nil {
		return false, sharederrors.ErrClientUnavailable
	}
	if _, err := c.bot.GetMe(ctx); err != nil {
		if errors.Is(err, bot.ErrorUnauthorized) {
			return false, nil
		}
		return false, mapError(err)
	}
	return true, nil
}

// Bot tokens are issued pre-authorized; the interactive login steps do
// not apply to this transport.

func (c *Client) SendCodeRequest(ctx context.Context, identity string) error {
	return oops.Errorf("bot token authorization does not use a login code")
}

func (c *Client) SignIn(ctx context.Context, identity, code string) error {
	return oops.Errorf("bot token authorization does not use a login code")
}

func (c *Client) SignInWithPassword(ctx context.Context, password string) error {
	return oops.Errorf("bot token authorization does not use a password")
}

func (c *Client) Me(ctx context.Context) (*session.Account, error) {
	if c.bot == nil {
		return nil, sharederrors.ErrClientUnavailable
	}
	user, err := c.bot.GetMe(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return &session.Account{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
	}, nil
}

func (c *Client) ExportSession() (string, error) {
	return c.token, nil
}

func (c *Client) ResolveChannel(ctx context.Context, name string) (*session.ChannelHandle, error) {
	if c.bot == nil {
		return nil, sharederrors.ErrClientUnavailable
	}

	chat, err := c.bot.GetChat(ctx, &bot.GetChatParams{
		ChatID: name,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if chat.Type != "channel" {
		return nil, sharederrors.ErrNotAChannel
	}

	return &session.ChannelHandle{
		ID:       chat.ID,
		Username: strings.TrimPrefix(name, "@"),
		Title:    chat.Title,
	}, nil
}

func (c *Client) RecentMessages(ctx context.Context, handle *session.ChannelHandle, limit int) ([]*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buffered := c.posts[handle.ID]
	if len(buffered) > limit {
		buffered = buffered[len(buffered)-limit:]
	}
	delete(c.posts, handle.ID)
	return buffered, nil
}

func (c *Client) DownloadMedia(ctx context.Context, msg *domain.Message) ([]byte, error) {
	if c.bot == nil {
		return nil, sharederrors.ErrClientUnavailable
	}
	if msg.FileRef == "" {
		return nil, oops.With("message_id", msg.ID).Errorf("message has no file reference")
	}

	file, err := c.bot.GetFile(ctx, &bot.GetFileParams{FileID: msg.FileRef})
	if err != nil {
		return nil, mapError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.bot.FileDownloadLink(file), nil)
	if err != nil {
		return nil, oops.With("file_id", msg.FileRef).Wrap(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, oops.With("file_id", msg.FileRef, "context", "failed to download file").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.With("file_id", msg.FileRef, "status", resp.StatusCode).Errorf("file download refused")
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) Disconnect() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel = nil
	}
	return nil
}

func (c *Client) handleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.ChannelPost
	if msg == nil && update.Message != nil && update.Message.Chat.Type == "channel" {
		msg = update.Message
	}
	if msg == nil {
		return
	}

	converted := convertMessage(msg)

	c.mu.Lock()
	defer c.mu.Unlock()
	buffered := append(c.posts[msg.Chat.ID], converted)
	if len(buffered) > postBufferCap {
		buffered = buffered[len(buffered)-postBufferCap:]
	}
	c.posts[msg.Chat.ID] = buffered

	slog.Debug("Buffered channel post", "chat_id", msg.Chat.ID, "message_id", msg.ID)
}

func convertMessage(msg *models.Message) *domain.Message {
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	kind := domain.MediaNone
	fileRef := ""
	switch {
	case len(msg.Photo) > 0:
		kind = domain.MediaPhoto
		fileRef = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		kind = domain.MediaVideo
		fileRef = msg.Video.FileID
	case msg.Document != nil:
		kind = domain.MediaDocument
		fileRef = msg.Document.FileID
	}

	return &domain.Message{
		ID:      int64(msg.ID),
		Text:    text,
		Date:    time.Unix(int64(msg.Date), 0),
		Media:   kind,
		FileRef: fileRef,
	}
}

// mapError translates Bot API failures into the shared error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return &sharederrors.FloodWaitError{Wait: time.Duration(tooMany.RetryAfter) * time.Second}
	}

	switch {
	case errors.Is(err, bot.ErrorUnauthorized):
		return sharederrors.ErrSessionInvalid
	case errors.Is(err, bot.ErrorForbidden):
		return sharederrors.ErrPermissionDenied
	case errors.Is(err, bot.ErrorNotFound), errors.Is(err, bot.ErrorBadRequest):
		return sharederrors.ErrChannelNotFound
	}
	return err
}
