package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/oops"

	"promowatch/internal/modules/message/domain"
)

// FileStorage implements Repository using per-channel JSON files
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based parsed-message repository
func NewFileStorage(basePath string) (Repository, error) {
	messagePath := filepath.Join(basePath, "parsed")
	if err := os.MkdirAll(messagePath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create parsed directory").Wrap(err)
	}

	return &FileStorage{basePath: messagePath}, nil
}

func (s *FileStorage) Save(message *domain.ParsedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgDir := filepath.Join(s.basePath, sourceDir(message.Source))
	if err := os.MkdirAll(msgDir, 0755); err != nil {
		return oops.With("message_dir", msgDir, "context", "failed to create message directory").Wrap(err)
	}

	path := filepath.Join(msgDir, fmt.Sprintf("%d.json", message.ID))
	data, err := json.MarshalIndent(message, "", "  ")
	if err != nil {
		return oops.With("source", message.Source, "message_id", message.ID, "context", "failed to marshal message").Wrap(err)
	}

	return os.WriteFile(path, data, 0644)
}

func (s *FileStorage) Recent(source string, limit int) ([]*domain.ParsedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.readDir(filepath.Join(s.basePath, sourceDir(source)), limit)
}

func (s *FileStorage) AllRecent(limit int) ([]*domain.ParsedMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.ParsedMessage{}, nil
		}
		return nil, oops.With("base_path", s.basePath, "context", "failed to read parsed directory").Wrap(err)
	}

	var messages []*domain.ParsedMessage
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		channelMessages, err := s.readDir(filepath.Join(s.basePath, entry.Name()), limit)
		if err != nil {
			continue
		}
		messages = append(messages, channelMessages...)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func (s *FileStorage) readDir(dir string, limit int) ([]*domain.ParsedMessage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.ParsedMessage{}, nil
		}
		return nil, oops.With("dir", dir, "context", "failed to read messages directory").Wrap(err)
	}

	messages := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (*domain.ParsedMessage, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return nil, false
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, false
		}

		var message domain.ParsedMessage
		if err := json.Unmarshal(data, &message); err != nil {
			return nil, false
		}
		return &message, true
	})

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.After(messages[j].CreatedAt)
	})
	if len(messages) > limit {
		messages = messages[:limit]
	}
	return messages, nil
}

func sourceDir(source string) string {
	return strings.TrimPrefix(source, "@")
}
