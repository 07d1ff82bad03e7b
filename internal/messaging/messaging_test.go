package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store"
	"ewaste-backend/internal/store/memstore"
)

type recordingPublisher struct {
	mu   sync.Mutex
	fail map[string]bool
	got  []models.OutboxMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, msg models.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail[msg.ID] {
		return errors.New("broker down")
	}
	p.got = append(p.got, msg)
	return nil
}

type recordingDeliverer struct {
	mu  sync.Mutex
	got []models.Notification
}

func (d *recordingDeliverer) Deliver(ctx context.Context, n models.Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.got = append(d.got, n)
	return nil
}

func TestNotifyWritesInboxAndOutbox(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	now := time.Unix(1700000000, 0)

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := Notify(ctx, tx, now, Notice{
			UserID: "c1",
			Type:   models.NotificationTaskSettled,
			Title:  "Pickup confirmed",
			Body:   "You earned 10 points",
			Data:   models.Payload{"task_id": "t1"},
		})
		return err
	})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	inbox, _ := s.ListNotifications(ctx, "c1")
	if len(inbox) != 1 {
		t.Fatalf("inbox has %d notifications, want 1", len(inbox))
	}
	if inbox[0].Data["type"] != models.NotificationTaskSettled || inbox[0].Data["task_id"] != "t1" {
		t.Errorf("data = %v", inbox[0].Data)
	}

	outbox := s.Outbox()
	if len(outbox) != 1 || outbox[0].Topic != models.TopicNotification {
		t.Fatalf("outbox = %+v", outbox)
	}
	var decoded models.Notification
	if err := json.Unmarshal(outbox[0].Payload, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != inbox[0].ID {
		t.Errorf("outbox payload id = %s, want %s", decoded.ID, inbox[0].ID)
	}
}

func TestNotifyRolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	_ = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := Notify(ctx, tx, time.Now(), Notice{UserID: "c1", Type: "x"}); err != nil {
			return err
		}
		return errors.New("abort")
	})

	if n := len(s.Outbox()); n != 0 {
		t.Errorf("outbox has %d messages after rollback", n)
	}
}

func TestOutboxWorkerProcessPending(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	for _, id := range []string{"m1", "m2", "m3"} {
		s.InsertOutbox(ctx, &models.OutboxMessage{ID: id, Topic: models.TopicNotification, Payload: []byte(`{}`)})
	}

	pub := &recordingPublisher{fail: map[string]bool{"m2": true}}
	w := NewOutboxWorker(s, pub)

	if got := w.ProcessPending(ctx); got != 2 {
		t.Fatalf("ProcessPending() = %d, want 2", got)
	}

	pending, _ := s.ListPendingOutbox(ctx, 10)
	if len(pending) != 1 || pending[0].ID != "m2" {
		t.Fatalf("pending = %+v, want only m2", pending)
	}
	if pending[0].Attempts != 1 || pending[0].LastError == nil {
		t.Errorf("m2 failure not recorded: %+v", pending[0])
	}

	pub.fail = nil
	if got := w.ProcessPending(ctx); got != 1 {
		t.Fatalf("second ProcessPending() = %d, want 1", got)
	}

	deleted, err := w.Cleanup(ctx, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 3 {
		t.Errorf("Cleanup() deleted %d, want 3", deleted)
	}
}

func TestDirectPublisherDelivers(t *testing.T) {
	d := &recordingDeliverer{}
	p := NewDirectPublisher(d)

	payload, _ := json.Marshal(models.Notification{ID: "n1", UserID: "u1", Type: models.NotificationOrderOTP})
	if err := p.Publish(context.Background(), models.OutboxMessage{ID: "m1", Topic: models.TopicNotification, Payload: payload}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(d.got) != 1 || d.got[0].ID != "n1" {
		t.Errorf("delivered = %+v", d.got)
	}

	if err := p.Publish(context.Background(), models.OutboxMessage{Topic: "other"}); err == nil {
		t.Error("expected error for unknown topic")
	}
}
