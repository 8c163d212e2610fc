package telegram

import (
	"bytes"
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/samber/oops"

	"promowatch/internal/modules/message/domain"
)

// Sink posts digests to the output channel through its own bot, separate
// from the monitoring client.
type Sink struct {
	bot *bot.Bot
}

func NewSink(token string) (*Sink, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, oops.With("context", "failed to create sender bot").Wrap(err)
	}
	return &Sink{bot: b}, nil
}

func (s *Sink) SendText(ctx context.Context, channel, text string) error {
	_, err := s.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: channel,
		Text:   text,
	})
	return mapError(err)
}

func (s *Sink) SendMedia(ctx context.Context, channel string, kind domain.MediaKind, data []byte, caption string) error {
	upload := &models.InputFileUpload{
		Filename: uploadFilename(kind),
		Data:     bytes.NewReader(data),
	}

	var err error
	switch kind {
	case domain.MediaPhoto:
		_, err = s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  channel,
			Photo:   upload,
			Caption: caption,
		})
	case domain.MediaVideo:
		_, err = s.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID:  channel,
			Video:   upload,
			Caption: caption,
		})
	case domain.MediaDocument:
		_, err = s.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID:   channel,
			Document: upload,
			Caption:  caption,
		})
	default:
		return s.SendText(ctx, channel, caption)
	}
	return mapError(err)
}

func uploadFilename(kind domain.MediaKind) string {
	switch kind {
	case domain.MediaPhoto:
		return "photo.jpg"
	case domain.MediaVideo:
		return "video.mp4"
	}
	return "attachment.bin"
}
