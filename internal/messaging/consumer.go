package messaging

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"ewaste-backend/internal/models"

	"github.com/avast/retry-go"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	maxRetryAttempts = 3
	initialDelay     = 1 * time.Second
	maxDelay         = 30 * time.Second

	maxSeenIDs = 10000
)

// deliverWithRetry retries delivery with backoff. State transitions are never retried.
func deliverWithRetry(ctx context.Context, source string, d Deliverer, n models.Notification) error {
	return retry.Do(
		func() error {
			return d.Deliver(ctx, n)
		},
		retry.Attempts(maxRetryAttempts),
		retry.Delay(initialDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(attempt uint, err error) {
			log.Printf("⚠️  %s: notification %s retry %d: %v", source, n.ID, attempt+1, err)
		}),
	)
}

// NotificationConsumer delivers notifications published on the broker.
type NotificationConsumer struct {
	rmq       *RabbitMQ
	deliverer Deliverer
	done      chan struct{}
	wg        sync.WaitGroup

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewNotificationConsumer(rmq *RabbitMQ, d Deliverer) *NotificationConsumer {
	return &NotificationConsumer{
		rmq:       rmq,
		deliverer: d,
		done:      make(chan struct{}),
		seen:      make(map[string]struct{}),
	}
}

func (c *NotificationConsumer) Start() {
	c.wg.Add(1)
	go c.consume()
	log.Println("📥 Notification consumer started")
}

func (c *NotificationConsumer) consume() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			log.Println("consumer: stopping")
			return
		default:
			msgs, err := c.rmq.Consume()
			if err != nil {
				log.Printf("⚠️  consumer: %v, retrying in %v...", err, reconnectDelay)
				time.Sleep(reconnectDelay)
				continue
			}

			log.Println("consumer: listening for messages")
			c.processQueue(msgs)
		}
	}
}

func (c *NotificationConsumer) processQueue(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				log.Println("⚠️  consumer: channel closed, reconnecting...")
				return
			}
			c.handle(msg)
		}
	}
}

func (c *NotificationConsumer) handle(msg amqp.Delivery) {
	if msg.MessageId != "" && c.alreadyHandled(msg.MessageId) {
		msg.Ack(false)
		return
	}

	var n models.Notification
	if err := json.Unmarshal(msg.Body, &n); err != nil {
		log.Printf("❌ consumer: bad json: %v", err)
		msg.Nack(false, false)
		return
	}

	if err := deliverWithRetry(context.Background(), "consumer", c.deliverer, n); err != nil {
		log.Printf("❌ consumer: notification %s failed, dropping: %v", n.ID, err)
		msg.Nack(false, false)
		return
	}

	c.markHandled(msg.MessageId)
	msg.Ack(false)
}

func (c *NotificationConsumer) alreadyHandled(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

func (c *NotificationConsumer) markHandled(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seen) >= maxSeenIDs {
		c.seen = make(map[string]struct{})
	}
	c.seen[id] = struct{}{}
}

func (c *NotificationConsumer) Stop() {
	close(c.done)
	c.wg.Wait()
	log.Println("📥 Notification consumer stopped")
}
