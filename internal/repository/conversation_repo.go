package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository handles database operations for Conversation
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreate returns the active conversation for the (pair, listing, type) triple,
// creating it together with both read-status rows when none exists.
// The bool reports whether a new conversation was created.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, userA, userB uuid.UUID, listingID *uuid.UUID, convType model.ConversationType, title string) (*model.Conversation, bool, error) {
	if userA == userB {
		return nil, false, apperror.InvalidParticipants("a conversation needs two different participants")
	}
	p1, p2 := model.CanonicalPair(userA, userB)
	scope := model.ListingScopeOf(listingID)

	existing, err := r.findActive(ctx, p1, p2, convType, scope)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv := &model.Conversation{
		Participant1ID: p1,
		Participant2ID: p2,
		Type:           convType,
		ListingID:      listingID,
		Title:          title,
		IsActive:       true,
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		statuses := []model.ReadStatus{
			{UserID: p1, ConversationID: conv.ID},
			{UserID: p2, ConversationID: conv.ID},
		}
		return tx.Create(&statuses).Error
	})
	if err != nil {
		// Lost the race against a concurrent creator: the winner's row is the answer
		if isUniqueViolation(err) {
			if winner, ferr := r.findActive(ctx, p1, p2, convType, scope); ferr == nil {
				return winner, false, nil
			}
		}
		return nil, false, err
	}
	return conv, true, nil
}

func (r *ConversationRepository) findActive(ctx context.Context, p1, p2 uuid.UUID, convType model.ConversationType, scope string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Where("participant1_id = ? AND participant2_id = ?", p1, p2).
		Where("type = ? AND listing_scope = ? AND is_active = ?", convType, scope, true).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindByID finds a conversation by ID
func (r *ConversationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, notFound(err, "conversation")
	}
	return &conv, nil
}

// LockByID loads a conversation with a row lock held until the surrounding
// transaction ends. Appends to one conversation serialize on this lock.
func (r *ConversationRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&conv).Error
	if err != nil {
		return nil, notFound(err, "conversation")
	}
	return &conv, nil
}

// TouchOnNewMessage records the latest message on the conversation
func (r *ConversationRepository) TouchOnNewMessage(ctx context.Context, conversationID uuid.UUID, preview string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_at":      at,
			"last_message_preview": preview,
			"message_count":        gorm.Expr("message_count + 1"),
			"updated_at":           at,
		}).Error
}

// RefreshPreview rewrites the preview only when messageID is still the newest message
func (r *ConversationRepository) RefreshPreview(ctx context.Context, conversationID uuid.UUID, messageID uint64, preview string) error {
	latest := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("conversation_id = ?", conversationID)
	return r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ? AND (?) = ?", conversationID, latest, messageID).
		Update("last_message_preview", preview).Error
}

// Deactivate closes a conversation; a later FindOrCreate for the same triple starts a new one
func (r *ConversationRepository) Deactivate(ctx context.Context, conversationID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("conversation not found")
	}
	return nil
}

// conversationRow is one conversation joined with the viewer's unread count,
// the other participant and the listing
type conversationRow struct {
	model.Conversation
	UnreadCount         int
	OtherID             uuid.UUID
	OtherName           string
	OtherAvatar         string
	OtherIsOnline       bool
	OtherLastSeen       *time.Time
	ListingTitle        *string
	ListingThumbnailURL *string
}

const otherParticipantExpr = "CASE WHEN conversations.participant1_id = ? THEN conversations.participant2_id ELSE conversations.participant1_id END"

const summaryColumns = `conversations.*,
			COALESCE(rs.unread_count, 0) AS unread_count,
			other_user.id AS other_id,
			other_user.name AS other_name,
			other_user.avatar AS other_avatar,
			other_user.is_online AS other_is_online,
			other_user.last_seen AS other_last_seen,
			listings.title AS listing_title,
			listings.thumbnail_url AS listing_thumbnail_url`

// viewerQuery joins every conversation the viewer takes part in with the viewer's
// read status, the other participant and the listing
func (r *ConversationRepository) viewerQuery(ctx context.Context, viewerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("conversations").
		Joins("JOIN users AS other_user ON other_user.id = "+otherParticipantExpr, viewerID).
		Joins("LEFT JOIN message_read_status AS rs ON rs.conversation_id = conversations.id AND rs.user_id = ?", viewerID).
		Joins("LEFT JOIN listings ON listings.id = conversations.listing_id").
		Where("(conversations.participant1_id = ? OR conversations.participant2_id = ?)", viewerID, viewerID)
}

// ListForUser returns one page of the viewer's active conversations and the total match count
func (r *ConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID, filter model.ConversationFilter, page model.Pagination) ([]model.ConversationSummary, int64, error) {
	build := func() *gorm.DB {
		q := r.viewerQuery(ctx, userID).Where("conversations.is_active = ?", true)
		if s := strings.TrimSpace(filter.Search); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("(LOWER(other_user.name) LIKE ? OR LOWER(COALESCE(conversations.title, '')) LIKE ? OR LOWER(COALESCE(listings.title, '')) LIKE ?)",
				like, like, like)
		}
		if filter.Type != "" {
			q = q.Where("conversations.type = ?", filter.Type)
		}
		if filter.ListingID != nil {
			q = q.Where("conversations.listing_id = ?", *filter.ListingID)
		}
		if filter.HasUnread != nil {
			if *filter.HasUnread {
				q = q.Where("COALESCE(rs.unread_count, 0) > 0")
			} else {
				q = q.Where("COALESCE(rs.unread_count, 0) = 0")
			}
		}
		return q
	}

	var total int64
	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	dir := "DESC"
	if filter.SortOrder == "asc" {
		dir = "ASC"
	}
	sortExpr := "COALESCE(conversations.last_message_at, conversations.created_at)"
	if filter.SortBy == "created_at" {
		sortExpr = "conversations.created_at"
	}

	var rows []conversationRow
	err := build().
		Select(summaryColumns).
		Order(sortExpr + " " + dir).
		Order("conversations.id " + dir).
		Offset(page.Offset()).
		Limit(page.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	summaries := make([]model.ConversationSummary, 0, len(rows))
	for i := range rows {
		summaries = append(summaries, rows[i].toSummary())
	}
	return summaries, total, nil
}

// Summary returns one conversation as seen by viewerID.
// Conversations the viewer does not take part in are reported as not found.
func (r *ConversationRepository) Summary(ctx context.Context, conversationID, viewerID uuid.UUID) (*model.ConversationSummary, error) {
	var rows []conversationRow
	err := r.viewerQuery(ctx, viewerID).
		Select(summaryColumns).
		Where("conversations.id = ?", conversationID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperror.NotFound("conversation not found")
	}
	summary := rows[0].toSummary()
	return &summary, nil
}

func (row *conversationRow) toSummary() model.ConversationSummary {
	s := model.ConversationSummary{
		ID:                 row.ID,
		Type:               row.Type,
		Title:              row.Title,
		ListingID:          row.ListingID,
		IsActive:           row.IsActive,
		LastMessageAt:      row.LastMessageAt,
		LastMessagePreview: row.LastMessagePreview,
		MessageCount:       row.MessageCount,
		UnreadCount:        row.UnreadCount,
		OtherParticipant: model.UserProfile{
			ID:       row.OtherID,
			Name:     row.OtherName,
			Avatar:   row.OtherAvatar,
			IsOnline: row.OtherIsOnline,
			LastSeen: row.OtherLastSeen,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.ListingID != nil && row.ListingTitle != nil {
		thumb := model.ListingThumbnail{ID: *row.ListingID, Title: *row.ListingTitle}
		if row.ListingThumbnailURL != nil {
			thumb.ThumbnailURL = *row.ListingThumbnailURL
		}
		s.Listing = &thumb
	}
	return s
}
