package ports

import (
	"context"
	"time"

	"ReviewSentinel/internal/domain"
)

// ReviewSource extracts the currently visible reviews from the profile page.
// A successfully loaded page with zero parseable reviews is a successful
// empty result; only navigation failure is an error.
type ReviewSource interface {
	Extract(ctx context.Context, sourceURL string) ([]domain.RawReview, error)
}

// HistoryStore owns HistoryRecord persistence. No other component writes
// review history directly.
type HistoryStore interface {
	HasSeen(ctx context.Context, identityKey string) (bool, error)
	RecordDetected(ctx context.Context, review domain.Review) (domain.HistoryRecord, error)
	SaveClassification(ctx context.Context, identityKey, category, rationale string) error
	MarkNotified(ctx context.Context, identityKey, category, rationale string) error
	Unnotified(ctx context.Context) ([]domain.HistoryRecord, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

// Classifier assigns a policy-violation category and rationale to a review.
// Implementations never fail a review outright: on exhaustion they fall back
// to domain.CategoryUnableToClassify with a diagnostic rationale.
type Classifier interface {
	Classify(ctx context.Context, review domain.Review) (domain.Classification, error)
}

// Notifier delivers one alert per review, plus operational failure alerts.
type Notifier interface {
	SendReviewAlert(ctx context.Context, review domain.Review, result domain.Classification, detectedAt time.Time) error
	SendFailureAlert(ctx context.Context, subject, reason string) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
