package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Dosada05/tabletennis-bracket/brackets"
)

type recordingHub struct {
	mu    sync.Mutex
	rooms []string
	msgs  []brackets.WebSocketMessage
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, roomID)
	h.msgs = append(h.msgs, message.(brackets.WebSocketMessage))
}

type sinkFunc func(Envelope) error

func (f sinkFunc) Publish(_ context.Context, env Envelope) error { return f(env) }

func TestHubPublisherTargetsTournamentRoom(t *testing.T) {
	hub := &recordingHub{}
	env, err := NewEnvelope(brackets.MessageMatchUpdated, 4, map[string]int{"match_id": 9})
	if err != nil {
		t.Fatal(err)
	}
	if err := NewHubPublisher(hub).Publish(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	if len(hub.rooms) != 1 || hub.rooms[0] != "tournament_4" {
		t.Fatalf("rooms = %v", hub.rooms)
	}
	if hub.msgs[0].Type != brackets.MessageMatchUpdated || hub.msgs[0].RoomID != "tournament_4" {
		t.Fatalf("message = %+v", hub.msgs[0])
	}
	b, _ := json.Marshal(hub.msgs[0])
	if string(b) != `{"type":"MATCH_UPDATED","payload":{"match_id":9},"room_id":"tournament_4"}` {
		t.Fatalf("wire form = %s", b)
	}
}

func TestMultiPublishesToAll(t *testing.T) {
	boom := errors.New("down")
	var got int
	m := Multi{
		sinkFunc(func(Envelope) error { got++; return boom }),
		sinkFunc(func(Envelope) error { got++; return nil }),
	}
	err := m.Publish(context.Background(), Envelope{})
	if got != 2 {
		t.Fatalf("%d publishers called", got)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRelaySkipsOwnOrigin(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	received := make(chan Envelope, 4)
	relay := NewRelay(rdb, DefaultChannel, "instance-a", sinkFunc(func(env Envelope) error {
		received <- env
		return nil
	}), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, ready) }()
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	own := NewRedisPublisher(rdb, DefaultChannel, "instance-a")
	other := NewRedisPublisher(rdb, DefaultChannel, "instance-b")
	env, _ := NewEnvelope(brackets.MessageBracketUpdated, 2, map[string]bool{"complete": false})
	if err := own.Publish(ctx, env); err != nil {
		t.Fatal(err)
	}
	if err := other.Publish(ctx, env); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-received:
		if got.Origin != "instance-b" || got.TournamentID != 2 || got.Type != brackets.MessageBracketUpdated {
			t.Fatalf("relayed %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nothing relayed")
	}
	select {
	case got := <-received:
		t.Fatalf("own event relayed: %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
