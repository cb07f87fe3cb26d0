package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"gorm.io/gorm"
)

// Store groups the repositories whose rows change together when a message
// is sent or read
type Store struct {
	db            *gorm.DB
	Conversations *ConversationRepository
	Messages      *MessageRepository
	ReadStatus    *ReadStatusRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db),
		ReadStatus:    NewReadStatusRepository(db),
	}
}

// Transaction runs fn with repositories bound to one database transaction.
// Inside fn only the tx store may be used.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// notFound converts gorm's missing-row error into a NOT_FOUND AppError
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(what + " not found")
	}
	return err
}

// isUniqueViolation matches duplicate-key errors from Postgres and SQLite
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
