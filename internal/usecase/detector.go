package usecase

import (
	"context"
	"fmt"

	"ReviewSentinel/internal/config"
	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
)

// Detector decides which extracted reviews require action this cycle: those
// matching the rating filter and not yet in the history store. It is
// read-only with respect to the store and preserves extraction order, which
// is best-effort presentation order only.
type Detector struct {
	history ports.HistoryStore
	source  config.SourceConfig
}

// NewDetector wires the change detector.
func NewDetector(history ports.HistoryStore, source config.SourceConfig) *Detector {
	return &Detector{history: history, source: source}
}

// DetectNew returns the reviews requiring action, in input order.
func (d *Detector) DetectNew(ctx context.Context, extracted []domain.Review) ([]domain.Review, error) {
	fresh := make([]domain.Review, 0, len(extracted))
	for _, review := range extracted {
		if !d.source.Tracks(review.Rating) {
			continue
		}
		seen, err := d.history.HasSeen(ctx, review.IdentityKey)
		if err != nil {
			return nil, fmt.Errorf("check seen %s: %w", review.IdentityKey, err)
		}
		if !seen {
			fresh = append(fresh, review)
		}
	}
	return fresh, nil
}
