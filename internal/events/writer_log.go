package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// LogWriter writes events to the log. Used when no sink is configured.
type LogWriter struct{}

func (s *LogWriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	zap.S().Named("log_writer").Infow("event wrote", "id", e.ID(), "type", e.Type(), "subject", e.Subject(), "topic", topic, "data", string(e.Data()))
	return nil
}

func (s *LogWriter) Close(_ context.Context) error {
	return nil
}
