package models

// Outbox topics.
const (
	TopicNotification = "notification"
)

// OutboxMessage is an event written in the same transaction as the state change that
// produced it and published afterwards by the outbox worker.
type OutboxMessage struct {
	ID          string  `json:"id" db:"id"`
	Topic       string  `json:"topic" db:"topic"`
	Payload     []byte  `json:"payload" db:"payload"` // JSON
	Attempts    int     `json:"attempts" db:"attempts"`
	LastError   *string `json:"last_error,omitempty" db:"last_error"`
	PublishedAt *int64  `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   int64   `json:"created_at" db:"created_at"`
}
