package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/metrics"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/repository"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

const (
	defaultConversationPageSize = 20
	defaultMessagePageSize      = 50
	maxPageSize                 = 100
)

// UserDirectory resolves user ids to accounts
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// ListingLookup resolves listing ids for "contact seller" flows
type ListingLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Listing, error)
}

// Broadcaster delivers live events. SendToUser reports whether the user had a live connection.
type Broadcaster interface {
	BroadcastToConversation(conversationID uuid.UUID, eventType string, payload interface{})
	SendToUser(userID uuid.UUID, eventType string, payload interface{}) bool
	IsOnline(userID uuid.UUID) bool
}

// OfflineNotifier pushes a notification to a recipient without a live connection
type OfflineNotifier interface {
	NotifyOffline(ctx context.Context, recipientID uuid.UUID, senderName, preview string, conversationID uuid.UUID)
}

// ChatService is the only place where conversation, message and read-status
// changes are combined. Events are emitted strictly after the store commit.
type ChatService struct {
	store    *repository.Store
	users    UserDirectory
	listings ListingLookup
	hub      Broadcaster
	notifier OfflineNotifier
	now      func() time.Time
}

func NewChatService(
	store *repository.Store,
	users UserDirectory,
	listings ListingLookup,
	hub Broadcaster,
	notifier OfflineNotifier,
) *ChatService {
	return &ChatService{
		store:    store,
		users:    users,
		listings: listings,
		hub:      hub,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetClock replaces the clock used for edit windows and read stamps
func (s *ChatService) SetClock(now func() time.Time) {
	s.now = now
}

// ==================== Messages ====================

// SendMessage appends a message, bumps the conversation and the recipient's unread
// counter in one transaction, then fans the events out. Every rejection is reported
// as INVALID_MESSAGE carrying the underlying reason.
func (s *ChatService) SendMessage(ctx context.Context, senderID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	msgType := req.Type
	if msgType == "" {
		msgType = model.MessageTypeText
	}

	var msg *model.Message
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		conv, err := tx.Conversations.LockByID(ctx, req.ConversationID)
		if err != nil {
			return err
		}
		if !conv.IsActive {
			return apperror.Forbidden("conversation is no longer active")
		}
		if !conv.IsParticipant(senderID) {
			return apperror.NotParticipant("you are not a participant of this conversation")
		}
		if err := validateContent(msgType, req.Content, req.Attachments); err != nil {
			return err
		}

		m, err := tx.Messages.Append(ctx, conv, senderID, req.Content, msgType, req.Attachments)
		if err != nil {
			return err
		}
		if err := tx.Conversations.TouchOnNewMessage(ctx, conv.ID, m.Preview(), m.CreatedAt); err != nil {
			return err
		}
		if err := tx.ReadStatus.Increment(ctx, m.RecipientID, conv.ID); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeInternal {
			return nil, apperror.Internal("failed to send message", err)
		}
		return nil, apperror.Wrap(apperror.CodeInvalidMessage, "message could not be sent", err)
	}

	metrics.MessagesSent.WithLabelValues(string(msg.Type)).Inc()
	s.announceMessage(ctx, msg)
	return msg, nil
}

func validateContent(msgType model.MessageType, content string, attachments []model.AttachmentInput) error {
	switch msgType {
	case model.MessageTypeText:
		if strings.TrimSpace(content) == "" {
			return apperror.Validation("text messages cannot be empty")
		}
	case model.MessageTypeImage, model.MessageTypeFile:
		if len(attachments) == 0 && strings.TrimSpace(content) == "" {
			return apperror.Validation(string(msgType) + " messages need an attachment")
		}
	default:
		return apperror.Validation("unknown message type")
	}
	return nil
}

// announceMessage emits the post-commit events of a send and falls back to push
// when the recipient has no live connection
func (s *ChatService) announceMessage(ctx context.Context, msg *model.Message) {
	s.hub.BroadcastToConversation(msg.ConversationID, model.WSEventMessageNew, msg)

	unread := 0
	if status, err := s.store.ReadStatus.Get(ctx, msg.RecipientID, msg.ConversationID); err == nil {
		unread = status.UnreadCount
	}
	lastAt := msg.CreatedAt
	delivered := s.hub.SendToUser(msg.RecipientID, model.WSEventConversationUpdated, model.ConversationUpdatedEvent{
		ConversationID:     msg.ConversationID,
		LastMessagePreview: msg.Preview(),
		LastMessageAt:      &lastAt,
		UnreadCount:        unread,
		IsActive:           true,
	})

	senderName := "New message"
	if sender, err := s.users.FindByID(ctx, msg.SenderID); err == nil {
		senderName = sender.Name
	}

	if delivered {
		s.hub.SendToUser(msg.RecipientID, model.WSEventNotification, model.NotificationEvent{
			Title: senderName,
			Body:  msg.Preview(),
			Data: map[string]string{
				"type":            "new_message",
				"conversation_id": msg.ConversationID.String(),
			},
		})
		return
	}
	if s.notifier != nil {
		go s.notifier.NotifyOffline(context.Background(), msg.RecipientID, senderName, msg.Preview(), msg.ConversationID)
	}
}

// EditMessage replaces a message's content within the edit window
func (s *ChatService) EditMessage(ctx context.Context, userID uuid.UUID, messageID uint64, content string) (*model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperror.Validation("content cannot be empty")
	}

	var msg *model.Message
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		m, err := tx.Messages.Edit(ctx, messageID, userID, content, s.now())
		if err != nil {
			return err
		}
		msg = m
		return tx.Conversations.RefreshPreview(ctx, m.ConversationID, m.ID, m.Preview())
	})
	if err != nil {
		return nil, err
	}

	s.hub.BroadcastToConversation(msg.ConversationID, model.WSEventMessageEdited, model.MessageEditedEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		IsEdited:       true,
		EditedAt:       msg.EditedAt,
	})
	return msg, nil
}

// DeleteMessage turns a message into a tombstone
func (s *ChatService) DeleteMessage(ctx context.Context, userID uuid.UUID, messageID uint64) error {
	var msg *model.Message
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		m, err := tx.Messages.SoftDelete(ctx, messageID, userID, s.now())
		if err != nil {
			return err
		}
		msg = m
		return tx.Conversations.RefreshPreview(ctx, m.ConversationID, m.ID, m.Preview())
	})
	if err != nil {
		return err
	}

	s.hub.BroadcastToConversation(msg.ConversationID, model.WSEventMessageDeleted, model.MessageDeletedEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Content:        msg.Content,
		IsDeleted:      true,
		DeletedAt:      msg.DeletedAt,
	})
	return nil
}

// MarkAsRead marks messages addressed to userID as read and brings the unread
// counter in line. The read-status row is locked first so concurrent sends
// increment either before or after this operation, never in between.
func (s *ChatService) MarkAsRead(ctx context.Context, userID uuid.UUID, req model.MarkReadRequest) (int64, error) {
	if !req.MarkAllAsRead && len(req.MessageIDs) == 0 {
		return 0, apperror.Validation("either message_ids or mark_all_as_read is required")
	}

	now := s.now()
	var (
		updated   int64
		watermark *uint64
		conv      *model.Conversation
	)
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		c, err := s.participantConversation(ctx, tx, req.ConversationID, userID)
		if err != nil {
			return err
		}
		if _, err := tx.ReadStatus.Lock(ctx, userID, c.ID); err != nil {
			return err
		}

		var upTo *uint64
		if !req.MarkAllAsRead {
			ids := uniqueIDs(req.MessageIDs)
			found, err := tx.Messages.CountInConversation(ctx, c.ID, ids)
			if err != nil {
				return err
			}
			if found != int64(len(ids)) {
				return apperror.Validation("message_ids must belong to the conversation")
			}
			highest := maxID(ids)
			upTo = &highest
		}
		n, err := tx.Messages.MarkRead(ctx, c.ID, userID, upTo, now)
		if err != nil {
			return err
		}

		if req.MarkAllAsRead {
			latest, err := tx.Messages.LatestID(ctx, c.ID)
			if err != nil {
				return err
			}
			if latest > 0 {
				watermark = &latest
			}
			if err := tx.ReadStatus.Reset(ctx, userID, c.ID, watermark, now); err != nil {
				return err
			}
		} else {
			watermark = upTo
			remaining, err := tx.Messages.CountUnread(ctx, c.ID, userID)
			if err != nil {
				return err
			}
			if err := tx.ReadStatus.Sync(ctx, userID, c.ID, remaining, watermark, now); err != nil {
				return err
			}
		}
		updated, conv = n, c
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.hub.SendToUser(conv.OtherParticipant(userID), model.WSEventMessagesRead, model.MessagesReadEvent{
		ConversationID: conv.ID,
		ReaderID:       userID,
		MessageIDs:     req.MessageIDs,
		UpToMessageID:  watermark,
		ReadAt:         now,
	})
	if total, err := s.store.ReadStatus.TotalUnread(ctx, userID); err == nil {
		s.hub.SendToUser(userID, model.WSEventUnreadUpdated, model.UnreadUpdatedEvent{TotalUnread: total})
	} else {
		log.Printf("⚠️ Failed to recompute unread total for %s: %v", userID, err)
	}
	return updated, nil
}

func uniqueIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func maxID(ids []uint64) uint64 {
	var highest uint64
	for _, id := range ids {
		if id > highest {
			highest = id
		}
	}
	return highest
}

// SendTypingIndicator relays typing state to the other participant only
func (s *ChatService) SendTypingIndicator(ctx context.Context, userID, conversationID uuid.UUID, isTyping bool) error {
	conv, err := s.store.Conversations.FindByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(userID) {
		return apperror.NotParticipant("you are not a participant of this conversation")
	}

	s.hub.SendToUser(conv.OtherParticipant(userID), model.WSEventTypingIndicator, model.TypingEvent{
		ConversationID: conv.ID,
		UserID:         userID,
		IsTyping:       isTyping,
	})
	return nil
}

// ==================== Conversations ====================

// CreateOrGetConversation reuses the active conversation for the (pair, listing, type)
// triple or starts one, then sends the optional initial message.
// The bool reports whether the conversation was created.
func (s *ChatService) CreateOrGetConversation(ctx context.Context, userID uuid.UUID, req model.CreateConversationRequest) (*model.ConversationSummary, bool, error) {
	if req.ParticipantID == userID {
		return nil, false, apperror.InvalidParticipants("you cannot start a conversation with yourself")
	}
	convType := req.Type
	if convType == "" {
		convType = model.ConversationTypeDirect
	}
	if convType == model.ConversationTypeListingInquiry && req.ListingID == nil {
		return nil, false, apperror.Validation("listing_id is required for listing inquiries")
	}

	for _, id := range []uuid.UUID{userID, req.ParticipantID} {
		if _, err := s.users.FindByID(ctx, id); err != nil {
			return nil, false, err
		}
	}
	title := req.Title
	if req.ListingID != nil {
		listing, err := s.listings.FindByID(ctx, *req.ListingID)
		if err != nil {
			return nil, false, err
		}
		if title == "" {
			title = listing.Title
		}
	}

	conv, created, err := s.store.Conversations.FindOrCreate(ctx, userID, req.ParticipantID, req.ListingID, convType, title)
	if err != nil {
		return nil, false, err
	}

	if strings.TrimSpace(req.InitialMessage) != "" {
		if _, err := s.SendMessage(ctx, userID, model.SendMessageRequest{
			ConversationID: conv.ID,
			Content:        req.InitialMessage,
			Type:           model.MessageTypeText,
		}); err != nil {
			return nil, false, err
		}
	}

	summary, err := s.store.Conversations.Summary(ctx, conv.ID, userID)
	if err != nil {
		return nil, false, err
	}
	return summary, created, nil
}

// ContactListing opens (or reuses) a listing inquiry with the listing's owner
// and sends the buyer's first message
func (s *ChatService) ContactListing(ctx context.Context, userID, listingID uuid.UUID, message string) (*model.ContactListingResponse, error) {
	listing, err := s.listings.FindByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == userID {
		return nil, apperror.InvalidParticipants("you cannot contact yourself about your own listing")
	}
	if _, err := s.users.FindByID(ctx, listing.OwnerID); err != nil {
		return nil, err
	}

	conv, _, err := s.store.Conversations.FindOrCreate(ctx, userID, listing.OwnerID, &listing.ID, model.ConversationTypeListingInquiry, listing.Title)
	if err != nil {
		return nil, err
	}

	msg, err := s.SendMessage(ctx, userID, model.SendMessageRequest{
		ConversationID: conv.ID,
		Content:        message,
		Type:           model.MessageTypeText,
	})
	if err != nil {
		return nil, err
	}

	summary, err := s.store.Conversations.Summary(ctx, conv.ID, userID)
	if err != nil {
		return nil, err
	}
	return &model.ContactListingResponse{Conversation: *summary, Message: msg}, nil
}

// GetConversation returns the viewer's summary of a conversation; outsiders get NOT_FOUND
func (s *ChatService) GetConversation(ctx context.Context, userID, conversationID uuid.UUID) (*model.ConversationSummary, error) {
	return s.store.Conversations.Summary(ctx, conversationID, userID)
}

// ListConversations returns one page of the user's active conversations
func (s *ChatService) ListConversations(ctx context.Context, userID uuid.UUID, q model.ConversationListQuery) (*model.ConversationListResponse, error) {
	filter := model.ConversationFilter{
		Search:    q.Search,
		Type:      q.Type,
		HasUnread: q.HasUnreadMessages,
		SortBy:    q.SortBy,
		SortOrder: q.SortOrder,
	}
	if q.ListingID != "" {
		id, err := uuid.Parse(q.ListingID)
		if err != nil {
			return nil, apperror.Validation("listing_id must be a UUID")
		}
		filter.ListingID = &id
	}
	page := model.Pagination{Page: q.Page, Limit: q.Limit}.Normalize(defaultConversationPageSize, maxPageSize)

	summaries, total, err := s.store.Conversations.ListForUser(ctx, userID, filter, page)
	if err != nil {
		return nil, err
	}
	return &model.ConversationListResponse{Data: summaries, Pagination: model.NewPageMeta(page, total)}, nil
}

// GetMessages returns one page of a conversation's history together with its summary
func (s *ChatService) GetMessages(ctx context.Context, userID, conversationID uuid.UUID, q model.MessageListQuery) (*model.MessageListResponse, error) {
	summary, err := s.store.Conversations.Summary(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}

	filter := model.MessageFilter{
		Search:      q.Search,
		Type:        q.MessageType,
		UnreadOnly:  q.UnreadOnly,
		BeforeID:    q.BeforeMessageID,
		AfterID:     q.AfterMessageID,
		NewestFirst: q.Order == "desc",
	}
	page := model.Pagination{Page: q.Page, Limit: q.Limit}.Normalize(defaultMessagePageSize, maxPageSize)

	messages, total, err := s.store.Messages.Page(ctx, conversationID, userID, filter, page)
	if err != nil {
		return nil, err
	}
	return &model.MessageListResponse{
		Data:         messages,
		Pagination:   model.NewPageMeta(page, total),
		Conversation: *summary,
	}, nil
}

// GetUnreadCount sums the user's unread messages over active conversations
func (s *ChatService) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.store.ReadStatus.TotalUnread(ctx, userID)
}

// IsParticipant reports whether userID takes part in the conversation.
// Unknown conversations are simply not joinable.
func (s *ChatService) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	conv, err := s.store.Conversations.FindByID(ctx, conversationID)
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	return conv.IsParticipant(userID), nil
}

// DeactivateConversation closes a conversation for both participants
func (s *ChatService) DeactivateConversation(ctx context.Context, userID, conversationID uuid.UUID) error {
	conv, err := s.participantConversation(ctx, s.store, conversationID, userID)
	if err != nil {
		return err
	}
	if err := s.store.Conversations.Deactivate(ctx, conv.ID); err != nil {
		return err
	}

	event := model.ConversationUpdatedEvent{
		ConversationID:     conv.ID,
		LastMessagePreview: conv.LastMessagePreview,
		LastMessageAt:      conv.LastMessageAt,
		IsActive:           false,
	}
	s.hub.SendToUser(conv.Participant1ID, model.WSEventConversationUpdated, event)
	s.hub.SendToUser(conv.Participant2ID, model.WSEventConversationUpdated, event)
	return nil
}

// participantConversation loads a conversation, hiding it from non-participants
func (s *ChatService) participantConversation(ctx context.Context, store *repository.Store, conversationID, userID uuid.UUID) (*model.Conversation, error) {
	conv, err := store.Conversations.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(userID) {
		return nil, apperror.NotFound("conversation not found")
	}
	return conv, nil
}
