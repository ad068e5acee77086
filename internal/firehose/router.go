package firehose

import (
	"context"
	"log/slog"

	"github.com/blackmichael/bluesky-feeds/internal/domain"
)

// Router fans a single commit event out to every registered feed processor.
// Processors are independent: one processor's error is logged and does not
// stop the others from seeing the event.
type Router struct {
	registry *domain.Registry
	logger   *slog.Logger
}

// NewRouter builds a router over every processor currently in registry.
func NewRouter(registry *domain.Registry, logger *slog.Logger) *Router {
	return &Router{registry: registry, logger: logger}
}

// Dispatch sends evt to every processor in registration order and returns
// the event's own time_us as the cursor advance point. evt is nil for
// non-commit events, in which case Dispatch is a no-op.
func (r *Router) Dispatch(ctx context.Context, evt *domain.CommitEvent) int64 {
	if evt == nil {
		return 0
	}

	for _, p := range r.registry.Processors() {
		if err := p.ProcessEvent(ctx, evt); err != nil {
			r.logger.Error("processor failed to handle event",
				"feed", p.URI(),
				"uri", evt.URI(),
				"error", err,
			)
		}
	}

	return evt.TimeUS
}
