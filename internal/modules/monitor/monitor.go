package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/samber/lo"

	"promowatch/internal/modules/classify"
	"promowatch/internal/modules/message/domain"
	"promowatch/internal/modules/message/repository"
	"promowatch/internal/modules/session"
	"promowatch/internal/shared/config"
	sharederrors "promowatch/internal/shared/errors"
)

// ChannelSource is the reading capability the pipeline needs from an
// authorized client. session.Client satisfies it.
type ChannelSource interface {
	ResolveChannel(ctx context.Context, name string) (*session.ChannelHandle, error)
	RecentMessages(ctx context.Context, handle *session.ChannelHandle, limit int) ([]*domain.Message, error)
	DownloadMedia(ctx context.Context, msg *domain.Message) ([]byte, error)
}

// Inter-message pacing, separate from the configurable inter-channel delay.
const (
	messageDelayMin = 500 * time.Millisecond
	messageDelayMax = time.Second
)

// Monitor polls the configured channels through an authorized client,
// deduplicates and classifies new messages, and returns the matches with
// the most recently discovered items first.
type Monitor struct {
	cfg   *config.Config
	dedup *DedupStore
	repo  repository.Repository
	rng   *rand.Rand
	sleep func(ctx context.Context, d time.Duration) error
}

func NewMonitor(cfg *config.Config, dedup *DedupStore, repo repository.Repository) *Monitor {
	return &Monitor{
		cfg:   cfg,
		dedup: dedup,
		repo:  repo,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}
}

// Run performs one polling cycle over all configured channels, in list
// order. Errors in one channel or one message are logged and skipped; the
// dedup set is persisted exactly once, after all channels are processed.
func (m *Monitor) Run(ctx context.Context, source ChannelSource) ([]*domain.ParsedMessage, error) {
	start := time.Now()
	var results []*domain.ParsedMessage
	newCount := 0

	for _, channel := range m.cfg.TargetChannels {
		if ctx.Err() != nil {
			break
		}

		// Jittered pause before contacting each channel to pace bulk polling.
		if err := m.jitter(ctx, time.Duration(m.cfg.MinDelay*float64(time.Second)), time.Duration(m.cfg.MaxDelay*float64(time.Second))); err != nil {
			break
		}

		found, newIDs, err := m.pollChannel(ctx, source, channel, &results)
		if err != nil {
			slog.Error("Error polling channel", "channel", channel, "error", err)
			continue
		}
		newCount += newIDs
		slog.Info("Channel check finished", "channel", channel, "found", found)
	}

	if newCount > 0 {
		if err := m.dedup.Flush(); err != nil {
			slog.Error("Failed to persist processed IDs", "error", err)
		} else {
			slog.Info("Processed IDs persisted", "total", m.dedup.Len())
		}
	}

	slog.Info("Polling cycle finished", "duration", time.Since(start), "new_messages", newCount)

	// Most recently discovered items surface first.
	return lo.Reverse(results), ctx.Err()
}

func (m *Monitor) pollChannel(ctx context.Context, source ChannelSource, channel string, results *[]*domain.ParsedMessage) (int, int, error) {
	handle, err := m.resolve(ctx, source, channel)
	if err != nil {
		if errors.Is(err, sharederrors.ErrNotAChannel) || errors.Is(err, sharederrors.ErrPermissionDenied) {
			slog.Warn("Skipping channel", "channel", channel, "reason", err)
			return 0, 0, nil
		}
		return 0, 0, err
	}

	messages, err := m.recent(ctx, source, handle)
	if err != nil {
		return 0, 0, err
	}

	found := 0
	newIDs := 0
	for checked, msg := range messages {
		if ctx.Err() != nil {
			break
		}
		if err := m.jitter(ctx, messageDelayMin, messageDelayMax); err != nil {
			break
		}
		if (checked+1)%5 == 0 {
			slog.Info("Checking messages", "channel", channel, "checked", checked+1, "limit", m.cfg.MessageLimit)
		}

		if m.dedup.Contains(msg.ID) {
			continue
		}
		// New IDs enter the dedup set whether or not they match, so the
		// next run does not re-examine them.
		m.dedup.Add(msg.ID)
		newIDs++

		if !m.matchesKeywords(msg.Text) {
			continue
		}

		parsed, err := m.parse(msg, channel)
		if err != nil {
			slog.Error("Error processing message", "channel", channel, "message_id", msg.ID, "error", err)
			continue
		}

		*results = append(*results, parsed)
		found++
		slog.Info("Found new message", "channel", channel, "message_id", msg.ID)

		if m.repo != nil {
			if err := m.repo.Save(parsed); err != nil {
				slog.Error("Failed to save parsed message", "message_id", msg.ID, "error", err)
			}
		}
	}
	return found, newIDs, nil
}

// matchesKeywords reports whether the text contains at least one of the
// configured keywords. An empty keyword list matches everything.
func (m *Monitor) matchesKeywords(text string) bool {
	if len(m.cfg.Keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(text)
	return lo.SomeBy(m.cfg.Keywords, func(kw string) bool {
		return strings.Contains(lowered, strings.ToLower(kw))
	})
}

// resolve and recent retry flood signals in place: sleep the advertised
// duration and repeat the same call.
func (m *Monitor) resolve(ctx context.Context, source ChannelSource, channel string) (*session.ChannelHandle, error) {
	for {
		handle, err := source.ResolveChannel(ctx, channel)
		if fw, ok := sharederrors.AsFloodWait(err); ok {
			slog.Warn("Flood wait while resolving channel", "channel", channel, "wait", fw.Wait)
			if serr := m.sleep(ctx, fw.Wait); serr != nil {
				return nil, serr
			}
			continue
		}
		return handle, err
	}
}

func (m *Monitor) recent(ctx context.Context, source ChannelSource, handle *session.ChannelHandle) ([]*domain.Message, error) {
	for {
		messages, err := source.RecentMessages(ctx, handle, m.cfg.MessageLimit)
		if fw, ok := sharederrors.AsFloodWait(err); ok {
			slog.Warn("Flood wait while fetching messages", "channel", handle.Username, "wait", fw.Wait)
			if serr := m.sleep(ctx, fw.Wait); serr != nil {
				return nil, serr
			}
			continue
		}
		return messages, err
	}
}

func (m *Monitor) parse(msg *domain.Message, channel string) (*domain.ParsedMessage, error) {
	text := msg.Text
	city := classify.ExtractCity(text)
	tags := classify.FindTags(text)

	return &domain.ParsedMessage{
		ID:        msg.ID,
		Text:      text,
		City:      city,
		Tags:      tags,
		IsHot:     classify.IsHot(tags),
		Short:     classify.ShortTitle(text, tags, city),
		Link:      fmt.Sprintf("https://t.me/%s/%d", strings.TrimPrefix(channel, "@"), msg.ID),
		Source:    channel,
		Media:     msg.Media,
		FileRef:   msg.FileRef,
		CreatedAt: time.Now(),
	}, nil
}

func (m *Monitor) jitter(ctx context.Context, min, max time.Duration) error {
	if max <= min {
		return m.sleep(ctx, min)
	}
	return m.sleep(ctx, min+time.Duration(m.rng.Int63n(int64(max-min))))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
