package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ewaste-backend/internal/models"
)

func newTestClient(hub *Hub, userID, role, agencyID string, sink LocationSink) *Client {
	return &Client{
		UserID:   userID,
		UserRole: role,
		AgencyID: agencyID,
		hub:      hub,
		send:     make(chan []byte, 8),
		sink:     sink,
	}
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.GetClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-c.send:
		var msg map[string]interface{}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad message %s: %v", raw, err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.UserID)
		return nil
	}
}

func TestHubBroadcastToUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := newTestClient(hub, "U1", models.RoleCitizen, "", nil)
	hub.register <- c
	waitForClients(t, hub, 1)

	if !hub.IsUserConnected("U1") {
		t.Fatal("U1 should be connected")
	}

	hub.BroadcastToUser("U1", map[string]string{"type": "task_settled"})
	if msg := receive(t, c); msg["type"] != "task_settled" {
		t.Errorf("message = %v", msg)
	}

	hub.unregister <- c
	waitForClients(t, hub, 0)
}

func TestHubBroadcastToAgency(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a1 := newTestClient(hub, "AG1", models.RoleAgency, "A1", nil)
	a2 := newTestClient(hub, "AG2", models.RoleAgency, "A2", nil)
	hub.register <- a1
	hub.register <- a2
	waitForClients(t, hub, 2)

	hub.BroadcastToAgency("A1", map[string]string{"type": "volunteer_location_update"})

	receive(t, a1)
	select {
	case raw := <-a2.send:
		t.Errorf("agency A2 received %s", raw)
	default:
	}
}

type fakeSink struct {
	got models.VolunteerLocationUpdate
}

func (f *fakeSink) UpdateLocation(ctx context.Context, volunteerID string, u models.VolunteerLocationUpdate) (*models.Volunteer, error) {
	f.got = u
	lat, lng := u.Latitude, u.Longitude
	return &models.Volunteer{ID: volunteerID, AgencyID: "A1", Latitude: &lat, Longitude: &lng}, nil
}

func TestLocationUpdateRelayedToAgency(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	sink := &fakeSink{}
	agency := newTestClient(hub, "AG1", models.RoleAgency, "A1", nil)
	volunteer := newTestClient(hub, "V1", models.RoleVolunteer, "A1", sink)
	hub.register <- agency
	hub.register <- volunteer
	waitForClients(t, hub, 2)

	volunteer.handleLocationUpdate(json.RawMessage(`{"latitude": 19.02, "longitude": 72.8}`))

	if sink.got.Latitude != 19.02 {
		t.Errorf("stored latitude = %v", sink.got.Latitude)
	}
	msg := receive(t, agency)
	if msg["type"] != "volunteer_location_update" {
		t.Errorf("message = %v", msg)
	}
	data := msg["data"].(map[string]interface{})
	if data["volunteer_id"] != "V1" {
		t.Errorf("volunteer_id = %v", data["volunteer_id"])
	}
}

func TestLocationUpdateIgnoredForCitizens(t *testing.T) {
	hub := NewHub()
	sink := &fakeSink{}
	c := newTestClient(hub, "C1", models.RoleCitizen, "", sink)

	c.handleLocationUpdate(json.RawMessage(`{"latitude": 1, "longitude": 1}`))

	if sink.got.Latitude != 0 {
		t.Error("citizen location should not be stored")
	}
}
