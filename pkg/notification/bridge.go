package notification

import (
	"context"
	"log"

	"github.com/google/uuid"
	"github.com/quocanhngo/tradetalk/internal/metrics"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
)

// PushMessage is a provider-agnostic push payload
type PushMessage struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// PushResult reports per-token delivery. InvalidTokens lists tokens the
// provider says are no longer registered.
type PushResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
}

// Sender delivers a push message to a push provider
type Sender interface {
	Send(ctx context.Context, msg PushMessage) (*PushResult, error)
}

// Directory is the part of the user directory the bridge needs
type Directory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetPushTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	RemoveDeviceTokens(ctx context.Context, userID uuid.UUID, tokens []string) error
}

// Bridge turns "recipient is offline" into a push notification
type Bridge struct {
	directory Directory
	sender    Sender
}

// NewBridge creates a bridge; a nil sender disables push delivery
func NewBridge(directory Directory, sender Sender) *Bridge {
	return &Bridge{directory: directory, sender: sender}
}

// NotifyOffline pushes a new-message notification to every device of the recipient.
// Failures are logged and swallowed: a failed push never fails the send that caused it.
func (b *Bridge) NotifyOffline(ctx context.Context, recipientID uuid.UUID, senderName, preview string, conversationID uuid.UUID) {
	if err := b.deliver(ctx, recipientID, senderName, preview, conversationID); err != nil {
		log.Printf("⚠️ Push to %s failed: %v", recipientID, err)
	}
}

func (b *Bridge) deliver(ctx context.Context, recipientID uuid.UUID, senderName, preview string, conversationID uuid.UUID) error {
	if b.sender == nil {
		return nil
	}

	user, err := b.directory.FindByID(ctx, recipientID)
	if err != nil {
		return apperror.DeliveryFailure("recipient lookup failed", err)
	}
	if !user.IsNotificationEnabled {
		return nil
	}

	tokens, err := b.directory.GetPushTokens(ctx, recipientID)
	if err != nil {
		return apperror.DeliveryFailure("push token lookup failed", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	if preview == "" {
		preview = "Sent an attachment"
	}

	result, err := b.sender.Send(ctx, PushMessage{
		Tokens: tokens,
		Title:  senderName,
		Body:   preview,
		Data: map[string]string{
			"type":            "new_message",
			"conversation_id": conversationID.String(),
			"sender_name":     senderName,
		},
	})
	if err != nil {
		metrics.PushNotifications.WithLabelValues("error").Add(float64(len(tokens)))
		return apperror.DeliveryFailure("push provider rejected the message", err)
	}
	if result == nil {
		return nil
	}

	metrics.PushNotifications.WithLabelValues("success").Add(float64(result.SuccessCount))
	metrics.PushNotifications.WithLabelValues("failure").Add(float64(result.FailureCount))

	if len(result.InvalidTokens) > 0 {
		if err := b.directory.RemoveDeviceTokens(ctx, recipientID, result.InvalidTokens); err != nil {
			log.Printf("⚠️ Failed to prune %d stale push tokens for %s: %v", len(result.InvalidTokens), recipientID, err)
		} else {
			log.Printf("🧹 Pruned %d stale push tokens for %s", len(result.InvalidTokens), recipientID)
		}
	}
	return nil
}
