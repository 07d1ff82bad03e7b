package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"

	"github.com/google/uuid"
)

// Notice is a notification about to be written.
type Notice struct {
	UserID string
	Type   string
	Title  string
	Body   string
	Data   models.Payload
}

// Notify appends a notification to the user's inbox and queues its delivery in the
// same transaction, so nothing is pushed for a transition that rolled back.
func Notify(ctx context.Context, tx store.Tx, now time.Time, n Notice) (*models.Notification, error) {
	data := models.Payload{}
	for k, v := range n.Data {
		data[k] = v
	}
	data["type"] = n.Type

	notification := &models.Notification{
		ID:        uuid.New().String(),
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Data:      data,
		CreatedAt: now.Unix(),
	}
	if err := tx.CreateNotification(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	payload, err := json.Marshal(notification)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification: %w", err)
	}
	msg := &models.OutboxMessage{
		ID:        uuid.New().String(),
		Topic:     models.TopicNotification,
		Payload:   payload,
		CreatedAt: now.Unix(),
	}
	if err := tx.InsertOutbox(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to queue notification: %w", err)
	}
	return notification, nil
}
