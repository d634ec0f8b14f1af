package analysis

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/kafka"
)

// Refresher re-reads one index entry into a local analyzer.
type Refresher interface {
	Refresh(ctx context.Context, ref lexicon.Ref) error
}

// Invalidator drops cached analysis results.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// HandleInvalidation returns a MessageHandler for index-change
// notifications. Either side may be nil. Failures are logged and the
// message is acknowledged; a stale cache expires with its TTL.
func HandleInvalidation(local Refresher, cache Invalidator) kafka.MessageHandler {
	logger := slog.Default().With("component", "analysis-invalidation")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[lexicon.InvalidateEvent](value)
		if err != nil {
			logger.Error("failed to decode invalidation", "error", err, "key", string(key))
			return nil
		}
		if local != nil {
			if err := local.Refresh(ctx, ev.Ref); err != nil {
				logger.Error("failed to refresh local index", "ref", ev.Ref.Key(), "error", err)
			}
		}
		if cache != nil {
			if err := cache.Invalidate(ctx); err != nil {
				logger.Warn("failed to invalidate analysis cache", "error", err)
			}
		}
		logger.Debug("index change applied", "ref", ev.Ref.Key(), "lang", ev.Lang)
		return nil
	}
}
