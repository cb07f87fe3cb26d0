package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/internal/service"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

// ChatHandler handles conversation and message endpoints
type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateConversation godoc
// @Summary Find or create a conversation
// @Description Returns the active conversation for the pair (and listing), creating it when missing. An optional initial message is sent right away.
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.CreateConversationRequest true "Create conversation request"
// @Success 200 {object} model.ConversationSummary "Existing conversation"
// @Success 201 {object} model.ConversationSummary "New conversation"
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations [post]
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	var req model.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	summary, created, err := h.chatService.CreateOrGetConversation(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, summary)
}

// ListConversations godoc
// @Summary List the current user's active conversations
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param search query string false "Matches the other participant's name, the title or the listing title"
// @Param type query string false "direct or listing_inquiry"
// @Param listing_id query string false "Listing ID"
// @Param has_unread_messages query bool false "Only conversations with (or without) unread messages"
// @Param sort_by query string false "last_message_at or created_at"
// @Param sort_order query string false "asc or desc"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 20, max 100)"
// @Success 200 {object} model.ConversationListResponse
// @Router /conversations [get]
func (h *ChatHandler) ListConversations(c *gin.Context) {
	var q model.ConversationListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.chatService.ListConversations(c.Request.Context(), currentUserID(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetConversation godoc
// @Summary Get one conversation
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.ConversationSummary
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [get]
func (h *ChatHandler) GetConversation(c *gin.Context) {
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.chatService.GetConversation(c.Request.Context(), currentUserID(c), convID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// DeactivateConversation godoc
// @Summary Close a conversation for both participants
// @Tags Conversations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Success 200 {object} model.SuccessResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id} [delete]
func (h *ChatHandler) DeactivateConversation(c *gin.Context) {
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.chatService.DeactivateConversation(c.Request.Context(), currentUserID(c), convID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "Conversation closed"})
}

// GetMessages godoc
// @Summary Get a page of messages
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Conversation ID"
// @Param search query string false "Content search"
// @Param message_type query string false "text, image or file"
// @Param unread_only query bool false "Only messages the caller has not read"
// @Param before_message_id query int false "Only messages older than this ID"
// @Param after_message_id query int false "Only messages newer than this ID"
// @Param order query string false "asc (default) or desc"
// @Param page query int false "Page (default 1)"
// @Param limit query int false "Page size (default 50, max 100)"
// @Success 200 {object} model.MessageListResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /conversations/{id}/messages [get]
func (h *ChatHandler) GetMessages(c *gin.Context) {
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var q model.MessageListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.chatService.GetMessages(c.Request.Context(), currentUserID(c), convID, q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SendMessage godoc
// @Summary Send a message
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.SendMessageRequest true "Send message request"
// @Success 201 {object} model.Message
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.chatService.SendMessage(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage godoc
// @Summary Edit a message within 24 hours of sending it
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Param body body model.EditMessageRequest true "New content"
// @Success 200 {object} model.Message
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id} [patch]
func (h *ChatHandler) EditMessage(c *gin.Context) {
	msgID, ok := messageID(c)
	if !ok {
		return
	}

	var req model.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.chatService.EditMessage(c.Request.Context(), currentUserID(c), msgID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description The message stays in the history as a placeholder.
// @Tags Messages
// @Security BearerAuth
// @Param id path int true "Message ID"
// @Success 200
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/{id} [delete]
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	msgID, ok := messageID(c)
	if !ok {
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), currentUserID(c), msgID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// MarkAsRead godoc
// @Summary Mark messages as read
// @Description Marks the given messages (and everything older) or the whole conversation as read.
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.MarkReadRequest true "Mark read request"
// @Success 200 {object} model.MarkReadResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /messages/read [post]
func (h *ChatHandler) MarkAsRead(c *gin.Context) {
	var req model.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	updated, err := h.chatService.MarkAsRead(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MarkReadResponse{Updated: updated})
}

// Typing godoc
// @Summary Send a typing indicator
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body model.TypingRequest true "Typing request"
// @Success 200 {object} model.SuccessResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /typing [post]
func (h *ChatHandler) Typing(c *gin.Context) {
	var req model.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if err := h.chatService.SendTypingIndicator(c.Request.Context(), currentUserID(c), req.ConversationID, *req.IsTyping); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.SuccessResponse{Message: "ok"})
}

// UnreadCount godoc
// @Summary Total unread messages across active conversations
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UnreadCountResponse
// @Router /unread-count [get]
func (h *ChatHandler) UnreadCount(c *gin.Context) {
	total, err := h.chatService.GetUnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.UnreadCountResponse{TotalUnread: total})
}

// ContactListing godoc
// @Summary Contact the owner of a listing
// @Tags Conversations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param listingId path string true "Listing ID"
// @Param body body model.ContactListingRequest true "First message"
// @Success 201 {object} model.ContactListingResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /listings/{listingId}/contact [post]
func (h *ChatHandler) ContactListing(c *gin.Context) {
	listingID, ok := pathUUID(c, "listingId")
	if !ok {
		return
	}

	var req model.ContactListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	resp, err := h.chatService.ContactListing(c.Request.Context(), currentUserID(c), listingID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func messageID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, apperror.Validation("invalid message id"))
		return 0, false
	}
	return id, true
}
