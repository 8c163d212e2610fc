package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/oops"
)

// DedupStore is the persisted set of already-handled message IDs. IDs are
// only ever added; membership is the sole query. The on-disk format is an
// ordered JSON array of integers.
type DedupStore struct {
	path  string
	ids   map[int64]struct{}
	dirty bool
}

// NewDedupStore loads the processed-ID set from the given path. A missing
// or unreadable file yields an empty set.
func NewDedupStore(path string) *DedupStore {
	store := &DedupStore{
		path: path,
		ids:  make(map[int64]struct{}),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to load processed IDs", "path", path, "error", err)
		}
		return store
	}

	var ids []int64
	if err := json.Unmarshal(data, &ids); err != nil {
		slog.Error("Failed to parse processed IDs", "path", path, "error", err)
		return store
	}
	for _, id := range ids {
		store.ids[id] = struct{}{}
	}
	return store
}

// Contains reports whether the message has already been handled.
func (s *DedupStore) Contains(id int64) bool {
	_, found := s.ids[id]
	return found
}

// Add records a message ID in memory. Flush persists it.
func (s *DedupStore) Add(id int64) {
	if _, found := s.ids[id]; found {
		return
	}
	s.ids[id] = struct{}{}
	s.dirty = true
}

// Len returns the number of recorded IDs.
func (s *DedupStore) Len() int {
	return len(s.ids)
}

// Flush persists the set as an ordered JSON array. A clean store writes
// nothing.
func (s *DedupStore) Flush() error {
	if !s.dirty {
		return nil
	}

	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data, err := json.MarshalIndent(ids, "", "    ")
	if err != nil {
		return oops.With("context", "failed to marshal processed IDs").Wrap(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return oops.With("path", s.path, "context", "failed to create data directory").Wrap(err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return oops.With("path", s.path, "context", "failed to save processed IDs").Wrap(err)
	}

	s.dirty = false
	return nil
}
