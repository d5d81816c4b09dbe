// Package notify publishes decay and recovery transitions to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/star/sattrack/internal/tracker"
)

// Event names, also used as the subject suffix.
const (
	EventDecayed   = "decayed"
	EventRecovered = "recovered"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "sattrack.record"

// Event is the JSON payload of one notification.
type Event struct {
	ID        string  `json:"id"`
	SatName   *string `json:"satname"`
	Event     string  `json:"event"`
	FailCount int     `json:"failCount"`
	At        int64   `json:"at"`
}

// Publisher sends a message on a subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Config holds notification configuration loaded from environment variables.
type Config struct {
	URL     string // NATS server URL (default: none, notifications off)
	Subject string // Subject prefix (default: sattrack.record)
}

// Notifier turns run attempts into events.
type Notifier struct {
	pub    Publisher
	prefix string
	logger *slog.Logger
}

// New creates a Notifier publishing through pub.
func New(pub Publisher, prefix string, logger *slog.Logger) *Notifier {
	if prefix == "" {
		prefix = DefaultSubject
	}
	return &Notifier{pub: pub, prefix: prefix, logger: logger}
}

// Events extracts the transitions from a run's attempts, in input order.
func Events(attempts []tracker.Attempt) []Event {
	var events []Event
	for _, a := range attempts {
		var name string
		switch {
		case a.Result.Decayed:
			name = EventDecayed
		case a.Result.Recovered:
			name = EventRecovered
		default:
			continue
		}
		events = append(events, Event{
			ID:        a.Request.ID,
			SatName:   a.SatName,
			Event:     name,
			FailCount: a.FailCount,
			At:        a.CheckedAt,
		})
	}
	return events
}

// Publish sends one message per transition and returns how many were sent.
// Failures are logged and do not stop the remaining events.
func (n *Notifier) Publish(attempts []tracker.Attempt) int {
	sent := 0
	for _, ev := range Events(attempts) {
		data, err := json.Marshal(ev)
		if err != nil {
			n.logger.Warn("failed to encode event", "component", "notify", "satellite_id", ev.ID, "error", err)
			continue
		}
		subject := n.prefix + "." + ev.Event
		if err := n.pub.Publish(subject, data); err != nil {
			n.logger.Warn("failed to publish event", "component", "notify", "satellite_id", ev.ID, "subject", subject, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// NATS is a Publisher backed by a NATS connection.
type NATS struct {
	conn *nats.Conn
}

// Connect dials the NATS server at url.
func Connect(url string, timeout time.Duration, logger *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("sattrack"),
		nats.Timeout(timeout),
		nats.MaxReconnects(2),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "component", "notify", "error", err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &NATS{conn: conn}, nil
}

// Publish implements Publisher.
func (c *NATS) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Close flushes pending messages and closes the connection.
func (c *NATS) Close(timeout time.Duration) error {
	defer c.conn.Close()
	if err := c.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flushing nats: %w", err)
	}
	return nil
}
