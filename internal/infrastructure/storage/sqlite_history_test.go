package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ReviewSentinel/internal/domain"
)

func openTestStore(t *testing.T) *SQLiteHistoryStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "reviews.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleReview(key string, rating int) domain.Review {
	return domain.Review{
		IdentityKey: key,
		Author:      "John Smith",
		Rating:      rating,
		Text:        "bad service",
		PostedRaw:   "3 days ago",
		SourceURL:   "https://maps.example.com/place/x",
	}
}

func TestRecordDetectedAndHasSeen(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	seen, err := store.HasSeen(ctx, "k1")
	if err != nil {
		t.Fatalf("has seen: %v", err)
	}
	if seen {
		t.Fatal("empty store claims to have seen k1")
	}

	record, err := store.RecordDetected(ctx, sampleReview("k1", 1))
	if err != nil {
		t.Fatalf("record detected: %v", err)
	}
	if record.NotifiedAt != nil {
		t.Fatal("fresh record should not be notified")
	}
	if record.FirstSeenAt.IsZero() {
		t.Fatal("first seen not set")
	}

	seen, err = store.HasSeen(ctx, "k1")
	if err != nil {
		t.Fatalf("has seen: %v", err)
	}
	if !seen {
		t.Fatal("recorded review not seen")
	}
}

func TestRecordDetectedEnforcesUniqueness(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RecordDetected(ctx, sampleReview("k1", 1)); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := store.RecordDetected(ctx, sampleReview("k1", 1))
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestMarkNotified(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RecordDetected(ctx, sampleReview("k1", 2)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.MarkNotified(ctx, "k1", "Spam", "vague and suspicious"); err != nil {
		t.Fatalf("mark notified: %v", err)
	}

	unnotified, err := store.Unnotified(ctx)
	if err != nil {
		t.Fatalf("unnotified: %v", err)
	}
	if len(unnotified) != 0 {
		t.Fatalf("expected no unnotified records, got %d", len(unnotified))
	}

	err = store.MarkNotified(ctx, "missing", "Spam", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnnotifiedListsCrashLeftovers(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RecordDetected(ctx, sampleReview("k1", 1)); err != nil {
		t.Fatalf("record k1: %v", err)
	}
	if _, err := store.RecordDetected(ctx, sampleReview("k2", 2)); err != nil {
		t.Fatalf("record k2: %v", err)
	}
	if err := store.MarkNotified(ctx, "k1", "Off-topic", "not about the service"); err != nil {
		t.Fatalf("mark k1: %v", err)
	}

	unnotified, err := store.Unnotified(ctx)
	if err != nil {
		t.Fatalf("unnotified: %v", err)
	}
	if len(unnotified) != 1 || unnotified[0].IdentityKey != "k2" {
		t.Fatalf("unexpected unnotified set: %+v", unnotified)
	}
	if unnotified[0].NotifiedAt != nil {
		t.Fatal("unnotified record has notified_at set")
	}
}

func TestSaveClassificationSurvivesForResume(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.RecordDetected(ctx, sampleReview("k1", 1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.SaveClassification(ctx, "k1", "Profanity", "contains slurs"); err != nil {
		t.Fatalf("save classification: %v", err)
	}

	unnotified, err := store.Unnotified(ctx)
	if err != nil {
		t.Fatalf("unnotified: %v", err)
	}
	if len(unnotified) != 1 {
		t.Fatalf("expected 1 unnotified record, got %d", len(unnotified))
	}
	if unnotified[0].Category != "Profanity" || unnotified[0].Rationale != "contains slurs" {
		t.Fatalf("classification not stored: %+v", unnotified[0])
	}

	err = store.SaveClassification(ctx, "missing", "Spam", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	store := openTestStore(t)
	ctx := context.Background()

	for i, rating := range []int{1, 1, 2, 5} {
		review := sampleReview(string(rune('a'+i)), rating)
		if _, err := store.RecordDetected(ctx, review); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if err := store.MarkNotified(ctx, "a", "Spam", ""); err != nil {
		t.Fatalf("mark: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTracked != 4 {
		t.Fatalf("expected 4 tracked, got %d", stats.TotalTracked)
	}
	if stats.ByRating[1] != 2 || stats.ByRating[2] != 1 || stats.ByRating[5] != 1 {
		t.Fatalf("unexpected rating counts: %v", stats.ByRating)
	}
	if stats.NotifiedCount != 1 {
		t.Fatalf("expected 1 notified, got %d", stats.NotifiedCount)
	}
}
