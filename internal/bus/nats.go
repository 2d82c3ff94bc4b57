// Package bus publishes notifications to NATS subjects for live delivery.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Envelope wraps every message pushed on the bus.
type Envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher pushes envelopes to NATS. A Publisher without a connection drops
// every message, which is how live push is disabled.
type Publisher struct {
	Conn *nats.Conn
	log  *slog.Logger
}

// NewPublisher connects to url. An empty url returns a disabled publisher.
// The connection keeps retrying in the background when the server is down.
func NewPublisher(url string, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "nats_publisher")
	if url == "" {
		log.Info("live push disabled, no NATS url configured")
		return &Publisher{log: log}, nil
	}
	conn, err := nats.Connect(url,
		nats.Name("iflab-alerts"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &Publisher{Conn: conn, log: log}, nil
}

// Enabled reports whether messages are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.Conn != nil
}

// Close drains the connection. It is safe on a disabled publisher.
func (p *Publisher) Close() {
	if p.Enabled() {
		_ = p.Conn.Drain()
		p.Conn.Close()
	}
}

// Publish wraps payload in an Envelope and sends it to subject.
func (p *Publisher) Publish(subject, eventType string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	data, err := encode(eventType, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	if err := p.Conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

func encode(eventType string, payload any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling payload: %w", err)
	}
	return json.Marshal(Envelope{
		ID:      uuid.NewString(),
		Type:    eventType,
		SentAt:  now,
		Payload: raw,
	})
}

// Subscriber receives envelopes from NATS.
type Subscriber struct {
	Conn *nats.Conn
}

// NewSubscriber connects to the NATS server at url.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := nats.Connect(url, nats.Name("iflab-alerts-watch"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return &Subscriber{Conn: conn}, nil
}

// Close drains the subscriptions and closes the connection.
func (s *Subscriber) Close() {
	if s.Conn != nil {
		_ = s.Conn.Drain()
		s.Conn.Close()
	}
}

// Subscribe calls handler for every envelope on subject. Messages that do not
// decode are dropped.
func (s *Subscriber) Subscribe(subject string, handler func(subject string, env Envelope)) (*nats.Subscription, error) {
	return s.Conn.Subscribe(subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			return
		}
		handler(msg.Subject, env)
	})
}
