package events

import (
	"context"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

const topicExtension = "topic"

// HTTPWriter delivers events to a CloudEvents HTTP sink in binary mode.
type HTTPWriter struct {
	client cloudevents.Client
}

func NewHTTPWriter(sinkURL string) (*HTTPWriter, error) {
	c, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(sinkURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents http client: %w", err)
	}
	return &HTTPWriter{client: c}, nil
}

func (h *HTTPWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	e.SetExtension(topicExtension, topic)
	if result := h.client.Send(ctx, e); !cloudevents.IsACK(result) {
		return fmt.Errorf("failed to deliver event %s: %w", e.ID(), result)
	}
	return nil
}

func (h *HTTPWriter) Close(_ context.Context) error {
	return nil
}

// NewWriter returns the HTTP writer when a sink is configured and the log writer otherwise.
func NewWriter(sinkURL string) (Writer, error) {
	if sinkURL == "" {
		return &LogWriter{}, nil
	}
	return NewHTTPWriter(sinkURL)
}
