// Package client holds the external collaborator clients: the NATS
// lifecycle event publisher and the identity service client.
package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/civicworks/be-pw-proposals/internal/domain"
)

// EventPublisher publishes proposal lifecycle events to NATS for
// downstream consumers (notifications, reporting).
//
// Subject convention: proposals.<transition>
//
// All publish operations are non-fatal — errors are logged but never
// propagated, so event delivery failures never interrupt a transition.
type EventPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// LifecycleEvent is the JSON schema published to NATS.
type LifecycleEvent struct {
	Transition   string         `json:"transition"`
	ProposalID   string         `json:"proposal_id"`
	SerialNumber string         `json:"serial_number"`
	Status       string         `json:"status"`
	ActorID      string         `json:"actor_id"`
	ActorRole    string         `json:"actor_role"`
	At           time.Time      `json:"at"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// NewEventPublisher connects to NATS. An empty URL returns a disabled
// publisher whose Publish is a no-op.
func NewEventPublisher(url string, log zerolog.Logger) (*EventPublisher, error) {
	if url == "" {
		return &EventPublisher{log: log}, nil
	}
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &EventPublisher{nc: nc, log: log}, nil
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// Publish emits one lifecycle event. Never returns an error.
func (p *EventPublisher) Publish(transition domain.Transition, prop *domain.Proposal, caller domain.Caller, payload map[string]any) {
	if p.nc == nil {
		return
	}

	event := &LifecycleEvent{
		Transition:   string(transition),
		ProposalID:   prop.ID,
		SerialNumber: prop.SerialNumber,
		Status:       string(prop.Status),
		ActorID:      caller.ID,
		ActorRole:    string(caller.Role),
		At:           time.Now().UTC(),
		Payload:      payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("transition", string(transition)).Msg("events: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("proposals.%s", transition)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("proposal_id", prop.ID).
			Msg("events: failed to publish (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("proposal_id", prop.ID).
		Msg("events: published")
}
