package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"promowatch/internal/modules/message/domain"
)

type fakeRepo struct {
	messages []*domain.ParsedMessage
	err      error
}

func (r *fakeRepo) Save(*domain.ParsedMessage) error { return nil }

func (r *fakeRepo) Recent(source string, limit int) ([]*domain.ParsedMessage, error) {
	return r.messages, r.err
}

func (r *fakeRepo) AllRecent(limit int) ([]*domain.ParsedMessage, error) {
	if r.err != nil {
		return nil, r.err
	}
	if len(r.messages) > limit {
		return r.messages[:limit], nil
	}
	return r.messages, nil
}

func TestGenerateFeed(t *testing.T) {
	now := time.Now()
	repo := &fakeRepo{
		messages: []*domain.ParsedMessage{
			{
				ID:        3,
				Text:      "Скидка на сеты <b>только сегодня</b>",
				Short:     "💰🍜 Скидка на сеты • от 900₽",
				IsHot:     true,
				Tags:      []string{"discount", "asia"},
				Link:      "https://t.me/promos/3",
				Source:    "@promos",
				Media:     domain.MediaPhoto,
				CreatedAt: now,
			},
			{
				ID:        1,
				Text:      "Новое меню завтраков",
				Short:     "🍳 Новое меню завтраков",
				Tags:      []string{"breakfast"},
				Link:      "https://t.me/promos/1",
				Source:    "@promos",
				CreatedAt: now.Add(-time.Hour),
			},
		},
	}

	feed, err := New(repo).GenerateFeed("http://localhost:8080")
	if err != nil {
		t.Fatalf("GenerateFeed() failed: %v", err)
	}

	if feed.Link.Href != "http://localhost:8080/feed" {
		t.Errorf("feed link = %q", feed.Link.Href)
	}
	if !feed.Updated.Equal(now) {
		t.Errorf("feed updated = %v, want the newest item's timestamp", feed.Updated)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("feed has %d items, want 2", len(feed.Items))
	}

	hot := feed.Items[0]
	if !strings.HasPrefix(hot.Title, "🔥 ") {
		t.Errorf("hot item title %q lacks the marker", hot.Title)
	}
	if hot.Link.Href != "https://t.me/promos/3" {
		t.Errorf("item link = %q", hot.Link.Href)
	}
	if hot.Id != "@promos-3" {
		t.Errorf("item id = %q, want @promos-3", hot.Id)
	}
	if strings.Contains(hot.Content, "<b>") {
		t.Errorf("item content is not escaped: %q", hot.Content)
	}
	if !strings.Contains(hot.Content, "discount, asia") {
		t.Errorf("item content %q lacks the tag list", hot.Content)
	}

	cold := feed.Items[1]
	if strings.HasPrefix(cold.Title, "🔥") {
		t.Errorf("cold item title %q carries the hot marker", cold.Title)
	}
	if cold.Author.Name != "@promos" {
		t.Errorf("item author = %q, want @promos", cold.Author.Name)
	}
}

func TestGenerateFeedEmptyRepository(t *testing.T) {
	feed, err := New(&fakeRepo{}).GenerateFeed("http://localhost:8080")
	if err != nil {
		t.Fatalf("GenerateFeed() failed: %v", err)
	}
	if len(feed.Items) != 0 {
		t.Errorf("empty repository produced %d items", len(feed.Items))
	}
}

func TestGenerateFeedStorageError(t *testing.T) {
	repo := &fakeRepo{err: errors.New("disk gone")}
	if _, err := New(repo).GenerateFeed("http://localhost:8080"); err == nil {
		t.Fatal("GenerateFeed() did not surface the storage error")
	}
}
