package services

import (
	"context"
	"errors"
	"testing"

	"ewaste-backend/internal/models"
	"ewaste-backend/internal/store/memstore"
)

type fakePush struct {
	calls  int
	tokens []string
	data   map[string]string
	stale  []string
	err    error
}

func (f *fakePush) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
	f.calls++
	f.tokens = tokens
	f.data = data
	return f.stale, f.err
}

type fakeLive struct {
	users []string
}

func (f *fakeLive) BroadcastToUser(userID string, data interface{}) {
	f.users = append(f.users, userID)
}

func TestDispatcherDeliver(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for _, tok := range []string{"tok-a", "tok-b"} {
		if err := st.UpsertFCMToken(ctx, &models.FCMToken{UserID: "U1", Token: tok, DeviceType: "android"}); err != nil {
			t.Fatalf("UpsertFCMToken() error = %v", err)
		}
	}

	push := &fakePush{stale: []string{"tok-b"}}
	live := &fakeLive{}
	d := NewDispatcher(st, push, live)

	n := models.Notification{
		ID:     "N1",
		UserID: "U1",
		Type:   models.NotificationTaskAssigned,
		Title:  "New pickup",
		Body:   "You have a new pickup",
		Data:   models.Payload{"task_id": "T1"},
	}
	if err := d.Deliver(ctx, n); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	if len(live.users) != 1 || live.users[0] != "U1" {
		t.Errorf("live broadcast users = %v, want [U1]", live.users)
	}
	if len(push.tokens) != 2 {
		t.Errorf("push tokens = %v, want 2 tokens", push.tokens)
	}
	if push.data["type"] != models.NotificationTaskAssigned || push.data["task_id"] != "T1" || push.data["notification_id"] != "N1" {
		t.Errorf("push data = %v", push.data)
	}

	left, _ := st.ListFCMTokens(ctx, "U1")
	if len(left) != 1 || left[0].Token != "tok-a" {
		t.Errorf("tokens after stale cleanup = %+v, want only tok-a", left)
	}
}

func TestDispatcherWithoutTokens(t *testing.T) {
	push := &fakePush{}
	d := NewDispatcher(memstore.New(), push, nil)

	if err := d.Deliver(context.Background(), models.Notification{ID: "N1", UserID: "U9"}); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if push.calls != 0 {
		t.Errorf("push called %d times for a user without tokens", push.calls)
	}
}

func TestDispatcherPushError(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.UpsertFCMToken(ctx, &models.FCMToken{UserID: "U1", Token: "tok-a"})

	d := NewDispatcher(st, &fakePush{err: errors.New("fcm down")}, nil)
	if err := d.Deliver(ctx, models.Notification{ID: "N1", UserID: "U1"}); err == nil {
		t.Fatal("Deliver() should surface push errors so the message is retried")
	}
}
