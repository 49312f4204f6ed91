package domain

import (
	"errors"
	"time"
)

// RawReview is what the extraction adapter managed to pull out of one review
// card. Fields may be missing; normalization decides what is usable.
type RawReview struct {
	NativeID  string
	Author    string
	Rating    int
	Text      string
	PostedRaw string
	ReviewURL string
}

// Review is the canonical entity flowing through the pipeline.
type Review struct {
	IdentityKey string
	Author      string
	Rating      int
	Text        string
	PostedRaw   string
	PostedAt    time.Time
	SourceURL   string
	ReviewURL   string
}

// DeepLink returns the most specific URL available for the review.
func (r Review) DeepLink() string {
	if r.ReviewURL != "" {
		return r.ReviewURL
	}
	return r.SourceURL
}

// HistoryRecord is the persisted snapshot of a detected review.
type HistoryRecord struct {
	IdentityKey string
	Author      string
	Rating      int
	Text        string
	PostedRaw   string
	SourceURL   string
	ReviewURL   string
	FirstSeenAt time.Time
	NotifiedAt  *time.Time
	Category    string
	Rationale   string
}

// Review reconstructs the pipeline entity from the stored snapshot, for
// resuming reviews that were detected but never alerted.
func (h HistoryRecord) Review() Review {
	return Review{
		IdentityKey: h.IdentityKey,
		Author:      h.Author,
		Rating:      h.Rating,
		Text:        h.Text,
		PostedRaw:   h.PostedRaw,
		PostedAt:    h.FirstSeenAt,
		SourceURL:   h.SourceURL,
		ReviewURL:   h.ReviewURL,
	}
}

// Classification is the outcome of the reasoning capability for one review.
type Classification struct {
	Category  string
	Rationale string
}

// CategoryUnableToClassify marks reviews the classifier could not categorize;
// the alert still goes out so a human can decide.
const CategoryUnableToClassify = "Unable to classify"

// Stats summarizes the history store contents.
type Stats struct {
	TotalTracked  int
	NotifiedCount int
	ByRating      map[int]int
}

var (
	// ErrDuplicateKey is returned by the history store when a review with the
	// same identity key was already recorded.
	ErrDuplicateKey = errors.New("history: duplicate identity key")

	// ErrNotFound is returned when an identity key was never detected.
	ErrNotFound = errors.New("history: identity key not found")

	// ErrMalformedReview marks raw records that cannot become a Review.
	ErrMalformedReview = errors.New("malformed review record")
)
