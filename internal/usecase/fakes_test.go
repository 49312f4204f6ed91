package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ReviewSentinel/internal/domain"
)

// fakeStore is an in-memory ports.HistoryStore honoring the same uniqueness
// and not-found contracts as the sqlite implementation.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*domain.HistoryRecord

	hasSeenErr  error
	forceClaims map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*domain.HistoryRecord{}, forceClaims: map[string]bool{}}
}

func (s *fakeStore) HasSeen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSeenErr != nil {
		return false, s.hasSeenErr
	}
	if s.forceClaims[key] {
		// Simulates a concurrent run claiming the key after our check.
		return false, nil
	}
	_, ok := s.records[key]
	return ok, nil
}

func (s *fakeStore) RecordDetected(ctx context.Context, review domain.Review) (domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[review.IdentityKey]; ok {
		return domain.HistoryRecord{}, fmt.Errorf("record %s: %w", review.IdentityKey, domain.ErrDuplicateKey)
	}
	record := &domain.HistoryRecord{
		IdentityKey: review.IdentityKey,
		Author:      review.Author,
		Rating:      review.Rating,
		Text:        review.Text,
		PostedRaw:   review.PostedRaw,
		SourceURL:   review.SourceURL,
		ReviewURL:   review.ReviewURL,
		FirstSeenAt: time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC),
	}
	s.records[review.IdentityKey] = record
	return *record, nil
}

func (s *fakeStore) SaveClassification(ctx context.Context, key, category, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	record.Category = category
	record.Rationale = rationale
	return nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, key, category, rationale string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return domain.ErrNotFound
	}
	at := time.Date(2025, time.March, 15, 12, 1, 0, 0, time.UTC)
	record.NotifiedAt = &at
	record.Category = category
	record.Rationale = rationale
	return nil
}

func (s *fakeStore) Unnotified(ctx context.Context) ([]domain.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HistoryRecord
	for _, record := range s.records {
		if record.NotifiedAt == nil {
			out = append(out, *record)
		}
	}
	return out, nil
}

func (s *fakeStore) Stats(ctx context.Context) (domain.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := domain.Stats{ByRating: map[int]int{}}
	for _, record := range s.records {
		stats.TotalTracked++
		stats.ByRating[record.Rating]++
		if record.NotifiedAt != nil {
			stats.NotifiedCount++
		}
	}
	return stats, nil
}

func (s *fakeStore) seed(review domain.Review, notified bool, category string) {
	record, _ := s.RecordDetected(context.Background(), review)
	if category != "" {
		_ = s.SaveClassification(context.Background(), record.IdentityKey, category, "stored earlier")
	}
	if notified {
		_ = s.MarkNotified(context.Background(), record.IdentityKey, category, "stored earlier")
	}
}

type fakeSource struct {
	raws  []domain.RawReview
	err   error
	calls int
}

func (f *fakeSource) Extract(ctx context.Context, sourceURL string) ([]domain.RawReview, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.raws, nil
}

type fakeClassifier struct {
	mu    sync.Mutex
	calls []string
	fn    func(review domain.Review) (domain.Classification, error)
}

func (f *fakeClassifier) Classify(ctx context.Context, review domain.Review) (domain.Classification, error) {
	f.mu.Lock()
	f.calls = append(f.calls, review.IdentityKey)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(review)
	}
	return domain.Classification{Category: "Spam", Rationale: "test rationale"}, nil
}

type sentAlert struct {
	review domain.Review
	result domain.Classification
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentAlert
	failures []string
	failFor  map[string]error
}

func (f *fakeNotifier) SendReviewAlert(ctx context.Context, review domain.Review, result domain.Classification, detectedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[review.IdentityKey]; ok {
		return err
	}
	f.sent = append(f.sent, sentAlert{review: review, result: result})
	return nil
}

func (f *fakeNotifier) SendFailureAlert(ctx context.Context, subject, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, subject+": "+reason)
	return nil
}
