package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"promowatch/internal/modules/message/domain"
)

// Sink is the forwarding capability for the destination channel.
type Sink interface {
	SendText(ctx context.Context, channel, text string) error
	SendMedia(ctx context.Context, channel string, kind domain.MediaKind, data []byte, caption string) error
}

const sendPause = time.Second

// Sender forwards parsed messages to the destination channel with pacing.
// Per-item failures are logged and skipped; the run always completes.
type Sender struct {
	sink   Sink
	output string
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewSender(sink Sink, output string) *Sender {
	return &Sender{
		sink:   sink,
		output: output,
		sleep:  sleepCtx,
	}
}

// Send relays each parsed message in order. Media attachments are
// downloaded through the source and sent with the caption; a failed
// download degrades to a text message.
func (s *Sender) Send(ctx context.Context, source ChannelSource, items []*domain.ParsedMessage) int {
	if len(items) == 0 {
		slog.Info("No new messages to forward")
		return 0
	}

	start := time.Now()
	sent := 0
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := s.sleep(ctx, sendPause); err != nil {
				break
			}
		}

		if err := s.sendOne(ctx, source, item); err != nil {
			slog.Error("Failed to forward message", "message_id", item.ID, "source", item.Source, "error", err)
			continue
		}
		sent++
	}

	slog.Info("Forwarding finished", "sent", sent, "total", len(items), "duration", time.Since(start))
	return sent
}

func (s *Sender) sendOne(ctx context.Context, source ChannelSource, item *domain.ParsedMessage) error {
	caption := s.caption(item)

	if item.Media != domain.MediaNone && item.FileRef != "" {
		data, err := source.DownloadMedia(ctx, &domain.Message{
			ID:      item.ID,
			Media:   item.Media,
			FileRef: item.FileRef,
		})
		if err != nil {
			slog.Warn("Media download failed, sending text only", "message_id", item.ID, "error", err)
			return s.sink.SendText(ctx, s.output, caption)
		}
		return s.sink.SendMedia(ctx, s.output, item.Media, data, caption)
	}

	return s.sink.SendText(ctx, s.output, caption)
}

func (s *Sender) caption(item *domain.ParsedMessage) string {
	header := item.Short
	if item.IsHot {
		header = "🔥 " + header
	}
	return fmt.Sprintf("%s\n\nИсточник: %s", header, item.Link)
}
