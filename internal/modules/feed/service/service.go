package service

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/samber/oops"

	"promowatch/internal/modules/message/domain"
	"promowatch/internal/modules/message/repository"
)

const feedItemLimit = 50

// Service renders recently parsed promotions as an RSS feed.
type Service struct {
	repo repository.Repository
}

func New(repo repository.Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// GenerateFeed builds the combined feed over the most recent parsed
// messages from all monitored channels.
func (s *Service) GenerateFeed(baseURL string) (*feeds.Feed, error) {
	messages, err := s.repo.AllRecent(feedItemLimit)
	if err != nil {
		return nil, oops.With("context", "failed to load recent messages").Wrap(err)
	}

	feed := &feeds.Feed{
		Title:       "PromoWatch - Promotions Feed",
		Link:        &feeds.Link{Href: fmt.Sprintf("%s/feed", baseURL)},
		Description: "Recently discovered promotions from monitored Telegram channels",
		Created:     time.Now(),
	}
	if len(messages) > 0 {
		feed.Updated = messages[0].CreatedAt
	}

	var items []*feeds.Item
	for _, msg := range messages {
		items = append(items, s.messageToFeedItem(msg))
	}

	feed.Items = items
	return feed, nil
}

func (s *Service) messageToFeedItem(msg *domain.ParsedMessage) *feeds.Item {
	title := msg.Short
	if msg.IsHot {
		title = "🔥 " + title
	}

	description := msg.Text
	if description == "" {
		description = "No text content"
	}

	content := fmt.Sprintf("<p>%s</p>", html.EscapeString(description))
	if len(msg.Tags) > 0 {
		content += "<p><strong>Tags:</strong> " + html.EscapeString(strings.Join(msg.Tags, ", ")) + "</p>"
	}
	if msg.Media != domain.MediaNone {
		content += fmt.Sprintf("<p><strong>Media:</strong> %s</p>", msg.Media)
	}

	return &feeds.Item{
		Title:       title,
		Link:        &feeds.Link{Href: msg.Link},
		Description: description,
		Content:     content,
		Author:      &feeds.Author{Name: msg.Source},
		Created:     msg.CreatedAt,
		Id:          fmt.Sprintf("%s-%d", msg.Source, msg.ID),
	}
}
