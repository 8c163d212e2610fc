package domain

import "time"

// Message is a raw message fetched from a source channel. The media kind
// is determined once at fetch time and carried on the record.
type Message struct {
	ID      int64     `json:"id"`
	Text    string    `json:"text"`
	Date    time.Time `json:"date"`
	Media   MediaKind `json:"media"`
	FileRef string    `json:"file_ref,omitempty"`
}

// ParsedMessage is the pipeline's output unit: a classified, deduplicated
// message ready for forwarding. Immutable once created.
type ParsedMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	City      string    `json:"city"`
	Tags      []string  `json:"tags"`
	IsHot     bool      `json:"is_hot"`
	Short     string    `json:"short"`
	Link      string    `json:"link"`
	Source    string    `json:"source"`
	Media     MediaKind `json:"media"`
	FileRef   string    `json:"file_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
