package sink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

// NATSPublisher publishes each payload to a JetStream subject. Like the
// Event Hubs publisher it connects per call.
type NATSPublisher struct {
	url     string
	subject string
}

// NewNATSPublisher creates a publisher for subject on the server at url.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if url == "" || subject == "" {
		return nil, ErrStreamNotConfigured
	}
	return &NATSPublisher{url: url, subject: subject}, nil
}

// Publish sends payload with a fresh message id so JetStream can deduplicate retries.
func (p *NATSPublisher) Publish(ctx context.Context, payload []byte) error {
	nc, err := nats.Connect(p.url, nats.Name("parking-sim"))
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", p.url, err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("creating jetstream context: %w", err)
	}
	ack, err := js.Publish(ctx, p.subject, payload, jetstream.WithMsgID(uuid.NewString()))
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", p.subject, err)
	}
	logrus.Debugf("published to stream %s seq %d", ack.Stream, ack.Sequence)
	return nil
}
