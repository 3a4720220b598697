package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/signalsfoundry/leo-constellation-sim/model"
)

const (
	// SubjectSnapshot carries one JSON snapshot per simulation step.
	SubjectSnapshot = "constellation.snapshot"
	// StreamName is the JetStream stream holding snapshots.
	StreamName = "CONSTELLATION"
)

// jetStreamPublisher is the part of nats.JetStreamContext the sink uses.
type jetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// NATSSink publishes snapshots to a JetStream subject.
type NATSSink struct {
	conn    *nats.Conn
	js      jetStreamPublisher
	subject string
}

// NewNATSSink connects to url and makes sure the snapshot stream exists.
func NewNATSSink(url string) (*NATSSink, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectSnapshot},
		Storage:  nats.FileStorage,
		MaxAge:   24 * time.Hour,
	})
	if err != nil && !strings.Contains(err.Error(), "stream name already in use") {
		nc.Close()
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	return &NATSSink{conn: nc, js: js, subject: SubjectSnapshot}, nil
}

// newNATSSinkWithPublisher is used by tests.
func newNATSSinkWithPublisher(js jetStreamPublisher) *NATSSink {
	return &NATSSink{js: js, subject: SubjectSnapshot}
}

func (s *NATSSink) Name() string { return "nats" }

// Publish sends the snapshot as JSON. The run ID and tick form the
// message ID so JetStream drops duplicates on retry.
func (s *NATSSink) Publish(ctx context.Context, snap *model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	msgID := fmt.Sprintf("%s-%d", snap.RunID, snap.Tick)
	if _, err := s.js.Publish(s.subject, data, nats.MsgId(msgID)); err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (s *NATSSink) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
