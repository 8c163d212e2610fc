package domain

import "strings"

// MediaKind is the closed set of media attachments a message can carry.
type MediaKind string

const (
	MediaNone     MediaKind = "none"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// ParseMediaKind parses a string into a MediaKind, case-insensitively.
// Unknown values map to MediaNone.
func ParseMediaKind(s string) MediaKind {
	switch MediaKind(strings.ToLower(s)) {
	case MediaPhoto:
		return MediaPhoto
	case MediaVideo:
		return MediaVideo
	case MediaDocument:
		return MediaDocument
	}
	return MediaNone
}
