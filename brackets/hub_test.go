package brackets

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastToRoom(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	room := TournamentRoom(5)
	if room != "tournament_5" {
		t.Fatalf("room = %q", room)
	}
	member := &Client{Hub: hub, Send: make(chan []byte, 4), Room: room}
	other := &Client{Hub: hub, Send: make(chan []byte, 4), Room: TournamentRoom(6)}
	if !hub.Join(member) || !hub.Join(other) {
		t.Fatal("Join failed on a running hub")
	}
	waitFor(t, func() bool { return hub.RoomSize(room) == 1 })

	hub.BroadcastToRoom(room, WebSocketMessage{Type: MessageMatchUpdated, Payload: map[string]int{"match_id": 3}, RoomID: room})

	select {
	case raw := <-member.Send:
		var msg WebSocketMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != MessageMatchUpdated || msg.RoomID != room {
			t.Fatalf("message = %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("member did not receive the broadcast")
	}
	select {
	case <-other.Send:
		t.Fatal("client of another room received the broadcast")
	default:
	}

	hub.Leave(member)
	waitFor(t, func() bool { return hub.RoomSize(room) == 0 })
	if _, ok := <-member.Send; ok {
		t.Fatal("send channel not closed on unregister")
	}
}

func TestHubBroadcastNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	slow := &Client{Hub: hub, Send: make(chan []byte), Room: "r"}
	hub.Join(slow)
	waitFor(t, func() bool { return hub.RoomSize("r") == 1 })

	done := make(chan struct{})
	go func() {
		hub.BroadcastToRoom("r", "x")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastToRoom blocked on an unbuffered client")
	}
}

func TestHubStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	c := &Client{Hub: hub, Send: make(chan []byte, 1), Room: "r"}
	hub.Join(c)
	waitFor(t, func() bool { return hub.RoomSize("r") == 1 })
	cancel()
	<-stopped
	if hub.Join(&Client{Hub: hub, Send: make(chan []byte, 1), Room: "r"}) {
		t.Fatal("Join succeeded on a stopped hub")
	}
	hub.Leave(c)
	if hub.RoomSize("r") != 0 {
		t.Fatal("rooms not cleared on stop")
	}
}
