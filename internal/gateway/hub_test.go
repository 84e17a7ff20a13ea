package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"sportsync/internal/eventbus"
	"sportsync/internal/models"
)

func drain(t *testing.T, c *client) OutboundMessage {
	t.Helper()
	select {
	case frame := <-c.send:
		var msg OutboundMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return OutboundMessage{}
	}
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4)
	member, _ := hub.register()
	outsider, _ := hub.register()
	hub.join(member, SportRoom(models.SportFootball))

	n := hub.Broadcast(SportRoom(models.SportFootball), OutboundMessage{Type: eventbus.TypeSportsUpdate})
	if n != 1 {
		t.Fatalf("delivered = %d, want 1", n)
	}
	msg := drain(t, member)
	if msg.Room != "sport:football" {
		t.Fatalf("room = %q, want sport:football", msg.Room)
	}
	select {
	case <-outsider.send:
		t.Fatal("outsider received a room message")
	default:
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4)
	c, _ := hub.register()
	hub.join(c, RoomLive)
	hub.leave(c, RoomLive)

	if n := hub.Broadcast(RoomLive, OutboundMessage{Type: eventbus.TypeSportsUpdate}); n != 0 {
		t.Fatalf("delivered = %d after leave, want 0", n)
	}
}

func TestStalledClientIsDropped(t *testing.T) {
	hub := NewHub(zap.NewNop(), 1)
	c, _ := hub.register()
	hub.join(c, RoomLive)

	// First frame fills the buffer, second overflows it.
	hub.Broadcast(RoomLive, OutboundMessage{Type: eventbus.TypeSportsUpdate})
	hub.Broadcast(RoomLive, OutboundMessage{Type: eventbus.TypeSportsUpdate})

	if hub.ClientCount() != 0 {
		t.Fatalf("clients = %d, want stalled client dropped", hub.ClientCount())
	}
}

func TestHandleEventRoutesToRooms(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4)
	sportWatcher, _ := hub.register()
	eventWatcher, _ := hub.register()
	liveWatcher, _ := hub.register()
	hub.join(sportWatcher, SportRoom(models.SportFootball))
	hub.join(eventWatcher, EventRoom("42"))
	hub.join(liveWatcher, RoomLive)

	payload, _ := json.Marshal(eventbus.EventPayload{
		Sport:      string(models.SportFootball),
		Source:     "sportdata",
		ExternalID: "123",
		Op:         "updated",
		Status:     string(models.StatusLive),
		Live:       true,
	})
	ev := eventbus.Event{
		ID:            "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Type:          eventbus.TypeSportsUpdate,
		AggregateType: eventbus.AggregateEvent,
		AggregateID:   "42",
		Payload:       payload,
	}

	if err := hub.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if msg := drain(t, sportWatcher); msg.Sport != "football" {
		t.Fatalf("sport room frame = %+v", msg)
	}
	if msg := drain(t, eventWatcher); msg.ExternalID != "123" {
		t.Fatalf("event room frame = %+v", msg)
	}
	if msg := drain(t, liveWatcher); msg.Room != RoomLive {
		t.Fatalf("live room frame = %+v", msg)
	}
}

func TestNonLiveUpdateSkipsLiveRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4)
	liveWatcher, _ := hub.register()
	hub.join(liveWatcher, RoomLive)

	payload, _ := json.Marshal(eventbus.EventPayload{
		Sport:  string(models.SportFootball),
		Op:     "updated",
		Status: string(models.StatusScheduled),
	})
	_ = hub.HandleEvent(context.Background(), eventbus.Event{
		Type:    eventbus.TypeSportsUpdate,
		Payload: payload,
	})

	select {
	case <-liveWatcher.send:
		t.Fatal("scheduled update leaked into the live room")
	default:
	}
}

func TestShutdownRejectsNewClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), 4)
	c, _ := hub.register()
	hub.join(c, RoomLive)
	hub.Shutdown()

	if hub.ClientCount() != 0 {
		t.Fatal("shutdown left clients registered")
	}
	if _, ok := hub.register(); ok {
		t.Fatal("register should fail after shutdown")
	}
}
