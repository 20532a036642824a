package ws

import (
	"context"
	"time"

	"messenger-service/internal/observability"
)

const lifecycleRoutingKey = "ws_events.chats"

// publishLifecycle emits ws_connect, ws_disconnect and ws_error. Publishing is
// best effort; failures only show up in the amqp error counter.
func publishLifecycle(ctx context.Context, info ConnInfo, event, reason string) {
	now := time.Now().UTC()
	var duration int64
	if event != "ws_connect" {
		duration = now.Sub(info.ConnectedAt).Milliseconds()
	}

	observability.IncWSEvent(event)
	_ = observability.PublishEvent(ctx, lifecycleRoutingKey, observability.LifecycleEvent{
		EventType:  "ws_events",
		EventName:  event,
		OccurredAt: now,
		ConnID:     info.ConnID,
		UserID:     info.UserID,
		DurationMS: duration,
		Reason:     reason,
		Identity:   info.Identity,
	}, observability.Headers(info.Identity.RequestID, info.TraceID))
}
