package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/tabletennis-bracket/brackets"
)

// Envelope is one notification for the observers of a tournament.
type Envelope struct {
	Origin       string          `json:"origin"`
	Type         string          `json:"type"`
	TournamentID int             `json:"tournament_id"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of the given message type.
func NewEnvelope(msgType string, tournamentID int, payload interface{}) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Envelope{Type: msgType, TournamentID: tournamentID, Payload: b}, nil
}

type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Broadcaster is the part of the websocket hub the publishers need.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

// HubPublisher delivers envelopes to the local websocket clients.
type HubPublisher struct {
	hub Broadcaster
}

func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(ctx context.Context, env Envelope) error {
	room := brackets.TournamentRoom(env.TournamentID)
	p.hub.BroadcastToRoom(room, brackets.WebSocketMessage{
		Type:    env.Type,
		Payload: env.Payload,
		RoomID:  room,
	})
	return nil
}

// Multi publishes to every publisher, even when some of them fail.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
