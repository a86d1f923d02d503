package core

import (
	"context"

	"go.uber.org/zap"
)

// eventSink fans job transitions out to the journal and, for terminal
// events, the webhook sender. Both are optional.
type eventSink struct {
	journal  Journal
	webhooks WebhookSender
	logger   *zap.Logger
}

func (s *eventSink) emit(ctx context.Context, event JobEvent) {
	if s == nil {
		return
	}
	if s.journal != nil {
		if err := s.journal.Record(ctx, event); err != nil {
			s.logger.Warn("journal write failed",
				zap.String("event", event.Event),
				zap.String("order", event.OrderName),
				zap.Error(err))
		}
	}
	if s.webhooks != nil {
		switch event.Event {
		case EventFulfilled, EventFailed, EventRenderFailed:
			s.webhooks.SendJobEvent(event)
		}
	}
}
