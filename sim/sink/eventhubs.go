package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FullyQualifiedNamespace expands a bare Event Hubs namespace to its host name.
// Values that already contain a dot are returned unchanged.
func FullyQualifiedNamespace(namespace string) string {
	if namespace == "" || strings.Contains(namespace, ".") {
		return namespace
	}
	return namespace + ".servicebus.windows.net"
}

// producerCloseTimeout bounds releasing a producer's connection.
const producerCloseTimeout = 10 * time.Second

// contextCloser is the part of a producer needed to release it.
type contextCloser interface {
	Close(ctx context.Context) error
}

// closeProducer releases c with a fresh context, since the publish context
// may already be past its deadline.
func closeProducer(c contextCloser) {
	ctx, cancel := context.WithTimeout(context.Background(), producerCloseTimeout)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		logrus.Debugf("closing event hub producer: %v", err)
	}
}

// EventHubsPublisher sends each payload as a single-event batch. A producer
// is opened and closed per call; one failed publish never affects the next.
type EventHubsPublisher struct {
	namespace string
	hub       string
	cred      azcore.TokenCredential
}

// NewEventHubsPublisher creates a publisher authenticated with the default
// Azure credential chain.
func NewEventHubsPublisher(namespace, hub string) (*EventHubsPublisher, error) {
	if namespace == "" || hub == "" {
		return nil, ErrStreamNotConfigured
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	return &EventHubsPublisher{
		namespace: FullyQualifiedNamespace(namespace),
		hub:       hub,
		cred:      cred,
	}, nil
}

// Publish sends payload to the event hub.
func (p *EventHubsPublisher) Publish(ctx context.Context, payload []byte) error {
	producer, err := azeventhubs.NewProducerClient(p.namespace, p.hub, p.cred, nil)
	if err != nil {
		return fmt.Errorf("creating producer for %s/%s: %w", p.namespace, p.hub, err)
	}
	defer closeProducer(producer)

	batch, err := producer.NewEventDataBatch(ctx, nil)
	if err != nil {
		return fmt.Errorf("creating event batch: %w", err)
	}
	id := uuid.NewString()
	if err := batch.AddEventData(&azeventhubs.EventData{Body: payload, MessageID: &id}, nil); err != nil {
		return fmt.Errorf("adding event: %w", err)
	}
	if err := producer.SendEventDataBatch(ctx, batch, nil); err != nil {
		return fmt.Errorf("sending event batch: %w", err)
	}
	return nil
}
