package repository

import (
	"promowatch/internal/modules/message/domain"
)

// Repository defines the interface for parsed-message persistence
type Repository interface {
	Save(message *domain.ParsedMessage) error
	Recent(source string, limit int) ([]*domain.ParsedMessage, error)
	AllRecent(limit int) ([]*domain.ParsedMessage, error)
}
