package services

import (
	"context"
	"fmt"
	"log"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

// PushSender sends a push notification to device tokens and returns the tokens that
// should be forgotten.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error)
}

// LiveBroadcaster pushes a message to a user's open websocket.
type LiveBroadcaster interface {
	BroadcastToUser(userID string, data interface{})
}

// Dispatcher delivers stored notifications over FCM and websocket.
type Dispatcher struct {
	store store.Tx
	push  PushSender
	live  LiveBroadcaster
}

// NewDispatcher creates a dispatcher. push and live may be nil when the channel is not
// configured.
func NewDispatcher(s store.Tx, push PushSender, live LiveBroadcaster) *Dispatcher {
	return &Dispatcher{store: s, push: push, live: live}
}

func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification) error {
	if d.live != nil {
		d.live.BroadcastToUser(n.UserID, map[string]interface{}{
			"type": n.Type,
			"data": n,
		})
	}

	if d.push == nil {
		return nil
	}

	tokens, err := d.store.ListFCMTokens(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to load FCM tokens: %w", err)
	}
	if len(tokens) == 0 {
		log.Printf("⚠️  No FCM tokens for user %s, skipping push for %s", n.UserID, n.Type)
		return nil
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}

	data := map[string]string{"notification_id": n.ID}
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = n.Type

	stale, err := d.push.SendMulticast(ctx, values, n.Title, n.Body, data)
	for _, token := range stale {
		if delErr := d.store.DeleteFCMToken(ctx, token); delErr != nil {
			log.Printf("⚠️  Failed to delete stale FCM token: %v", delErr)
		}
	}
	if len(stale) > 0 {
		log.Printf("🧹 Removed %d stale FCM token(s) for user %s", len(stale), n.UserID)
	}
	return err
}
