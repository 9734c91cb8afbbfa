package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/archgov-inc/archgov-engine/pkg/models"
	"github.com/archgov-inc/archgov-engine/pkg/retry"
)

// Notifier delivers index notifications off the write path. Delivery is
// best effort: failures are logged and swallowed, never surfaced to the
// caller that performed the write.
type Notifier struct {
	indexer  Indexer
	logger   *zap.Logger
	timeout  time.Duration
	retryCfg *retry.Config
}

// NewNotifier creates a Notifier around the given Indexer. A nil
// indexer produces a Notifier whose Notify is a no-op.
func NewNotifier(indexer Indexer, logger *zap.Logger) *Notifier {
	return &Notifier{
		indexer: indexer,
		logger:  logger,
		timeout: 30 * time.Second,
		retryCfg: &retry.Config{
			MaxRetries:   2,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2.0,
			JitterFactor: 0.1,
		},
	}
}

// Notify sends the asset to the indexer on a background goroutine. It
// never blocks the caller and never returns an error.
func (n *Notifier) Notify(asset *models.ArchitectureAsset) {
	if n.indexer == nil {
		return
	}

	// Copy the record so the caller may keep mutating its own.
	snapshot := *asset

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		err := retry.DoIfRetryable(ctx, n.retryCfg, func() error {
			return n.indexer.Index(ctx, &snapshot)
		})
		if err != nil {
			n.logger.Warn("Search index notification failed",
				zap.String("asset_id", snapshot.ID),
				zap.Error(err))
		}
	}()
}
