package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/saviobatista/flightwatch/internal/types"
)

const (
	// SubjectFlightsUpdated carries one snapshot per aggregation pass
	SubjectFlightsUpdated = "flights.updated"
	// SubjectFlightsChanged signals that the tracked flight list was edited
	SubjectFlightsChanged = "flights.changed"

	StreamFlights = "FLIGHTS"
)

// ChangeEvent is published when a stored flight is added, edited or removed.
// An empty FlightKey means the whole list changed.
type ChangeEvent struct {
	FlightKey string    `json:"flight_key,omitempty"`
	At        time.Time `json:"at"`
}

// Client represents a NATS client
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a new NATS client and makes sure the snapshot stream exists
func New(url string) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("flightwatch"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:              StreamFlights,
		Subjects:          []string{SubjectFlightsUpdated},
		Storage:           nats.FileStorage,
		MaxAge:            24 * time.Hour,
		MaxMsgsPerSubject: 100,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &Client{
		conn: nc,
		js:   js,
	}, nil
}

// PublishSnapshot publishes a pass result. The pass ID doubles as the
// JetStream message ID so a retried publish is not stored twice.
func (c *Client) PublishSnapshot(ctx context.Context, snap *types.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	opts := []nats.PubOpt{nats.Context(ctx)}
	if snap.PassID != "" {
		opts = append(opts, nats.MsgId(snap.PassID))
	}
	if _, err := c.js.Publish(SubjectFlightsUpdated, data, opts...); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// SubscribeSnapshots delivers the latest stored snapshot and every new one
func (c *Client) SubscribeSnapshots(handler func(*types.Snapshot)) (*nats.Subscription, error) {
	sub, err := c.js.Subscribe(SubjectFlightsUpdated, func(msg *nats.Msg) {
		var snap types.Snapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			log.Printf("Error unmarshaling snapshot: %v", err)
			return
		}
		handler(&snap)
	}, nats.DeliverLast())
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// PublishChanged signals that the tracked flight list was edited
func (c *Client) PublishChanged(ctx context.Context, flightKey string) error {
	data, err := json.Marshal(ChangeEvent{FlightKey: flightKey, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := c.conn.Publish(SubjectFlightsChanged, data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return c.conn.FlushWithContext(ctx)
}

// SubscribeChanged calls handler for every change signal. Malformed
// payloads are still delivered as a whole-list change.
func (c *Client) SubscribeChanged(handler func(ChangeEvent)) (*nats.Subscription, error) {
	sub, err := c.conn.Subscribe(SubjectFlightsChanged, func(msg *nats.Msg) {
		var ev ChangeEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("Warning: malformed change event: %v", err)
			ev = ChangeEvent{At: time.Now().UTC()}
		}
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}

// Close closes the NATS connection
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
