package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// Publisher delivers an encoded event to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url, clientName string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name(clientName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.conn.Publish(topic, msg)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }

// Message is a published event as captured by a RecordingPublisher
type Message struct {
	Topic string
	Data  []byte
}

// RecordingPublisher keeps published events in memory
type RecordingPublisher struct {
	mu       sync.Mutex
	messages []Message
}

func (p *RecordingPublisher) Publish(_ context.Context, topic string, msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	data := make([]byte, len(msg))
	copy(data, msg)
	p.messages = append(p.messages, Message{Topic: topic, Data: data})
	return nil
}

// Messages returns a copy of everything published so far
func (p *RecordingPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}
