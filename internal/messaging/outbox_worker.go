package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
)

const (
	workerInterval = 1 * time.Second
	batchSize      = 50
	// messages that failed this many times stay in the table for inspection
	maxPublishAttempts = 10
)

// Publisher hands an outbox message to whatever delivers it.
type Publisher interface {
	Publish(ctx context.Context, msg models.OutboxMessage) error
}

// Deliverer pushes a notification to the user's devices and live connections.
type Deliverer interface {
	Deliver(ctx context.Context, n models.Notification) error
}

// DirectPublisher delivers outbox messages in-process. Used when no broker is
// configured.
type DirectPublisher struct {
	deliverer Deliverer
}

func NewDirectPublisher(d Deliverer) *DirectPublisher {
	return &DirectPublisher{deliverer: d}
}

func (p *DirectPublisher) Publish(ctx context.Context, msg models.OutboxMessage) error {
	if msg.Topic != models.TopicNotification {
		return fmt.Errorf("unsupported topic %q", msg.Topic)
	}
	var n models.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}
	return deliverWithRetry(ctx, "direct", p.deliverer, n)
}

// OutboxWorker publishes pending outbox messages.
type OutboxWorker struct {
	store     store.Store
	publisher Publisher
	done      chan struct{}
	wg        sync.WaitGroup
}

func NewOutboxWorker(s store.Store, p Publisher) *OutboxWorker {
	return &OutboxWorker{
		store:     s,
		publisher: p,
		done:      make(chan struct{}),
	}
}

func (w *OutboxWorker) Start() {
	w.wg.Add(1)
	go w.processLoop()
	log.Println("📤 Outbox worker started")
}

func (w *OutboxWorker) processLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(workerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.ProcessPending(context.Background())
		}
	}
}

// ProcessPending publishes one batch and returns how many messages went out.
func (w *OutboxWorker) ProcessPending(ctx context.Context) int {
	messages, err := w.store.ListPendingOutbox(ctx, batchSize)
	if err != nil {
		log.Printf("❌ outbox: get pending: %v", err)
		return 0
	}

	published := 0
	for _, msg := range messages {
		if msg.Attempts >= maxPublishAttempts {
			continue
		}
		if err := w.publisher.Publish(ctx, msg); err != nil {
			log.Printf("❌ outbox: publish %s: %v", msg.ID, err)
			if err := w.store.MarkOutboxFailed(ctx, msg.ID, err.Error()); err != nil {
				log.Printf("❌ outbox: mark failed %s: %v", msg.ID, err)
			}
			continue
		}

		if err := w.store.MarkOutboxPublished(ctx, msg.ID, time.Now().Unix()); err != nil {
			log.Printf("❌ outbox: mark published %s: %v", msg.ID, err)
			continue
		}
		published++
	}
	return published
}

// Cleanup removes messages published before now-retention.
func (w *OutboxWorker) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return w.store.DeleteOutboxPublishedBefore(ctx, time.Now().Add(-retention).Unix())
}

func (w *OutboxWorker) Stop() {
	close(w.done)
	w.wg.Wait()
	log.Println("📤 Outbox worker stopped")
}
