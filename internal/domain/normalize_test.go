package domain

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, time.March, 15, 18, 30, 0, 0, time.UTC)

func TestNormalizeProducesStableIdentity(t *testing.T) {
	t.Parallel()

	raw := RawReview{
		Author:    "  John   Smith ",
		Rating:    1,
		Text:      "Terrible &amp; rude\n\nservice",
		PostedRaw: "3 days ago",
	}

	first, err := Normalize(raw, "https://maps.example.com/place/x", testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	second, err := Normalize(raw, "https://maps.example.com/place/x", testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if first.IdentityKey != second.IdentityKey {
		t.Fatalf("identity key not deterministic: %s vs %s", first.IdentityKey, second.IdentityKey)
	}
	if first.Author != "John Smith" {
		t.Fatalf("author not normalized: %q", first.Author)
	}
	if first.Text != "Terrible & rude service" {
		t.Fatalf("text not normalized: %q", first.Text)
	}
}

func TestIdentityKeyDiverges(t *testing.T) {
	t.Parallel()

	base := IdentityKey("", "John Smith", 1, "bad service")

	if IdentityKey("", "Jane Smith", 1, "bad service") == base {
		t.Fatal("different author produced same key")
	}
	if IdentityKey("", "John Smith", 2, "bad service") == base {
		t.Fatal("different rating produced same key")
	}
	if IdentityKey("", "John Smith", 1, "great service") == base {
		t.Fatal("different text produced same key")
	}
}

func TestIdentityKeyPrefersNativeID(t *testing.T) {
	t.Parallel()

	key := IdentityKey("ChZDSUhN0og", "John Smith", 1, "bad service")
	if key != "id:ChZDSUhN0og" {
		t.Fatalf("unexpected key: %s", key)
	}
}

func TestNormalizeRejectsInvalidRating(t *testing.T) {
	t.Parallel()

	_, err := Normalize(RawReview{Author: "x", Rating: 0, Text: "y"}, "https://maps.example.com", testNow)
	if !errors.Is(err, ErrMalformedReview) {
		t.Fatalf("expected ErrMalformedReview, got %v", err)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	review, err := Normalize(RawReview{Rating: 2}, "https://maps.example.com", testNow)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	if review.Author != "Anonymous" {
		t.Fatalf("expected Anonymous author, got %q", review.Author)
	}
	if review.PostedRaw != "Unknown date" {
		t.Fatalf("expected Unknown date, got %q", review.PostedRaw)
	}
	if review.Text != "" {
		t.Fatalf("expected empty text, got %q", review.Text)
	}
	if review.DeepLink() != "https://maps.example.com" {
		t.Fatalf("expected profile fallback link, got %q", review.DeepLink())
	}
}

func TestResolveRelativeAge(t *testing.T) {
	t.Parallel()

	cases := []struct {
		phrase string
		want   time.Time
		ok     bool
	}{
		{"3 days ago", testNow.Add(-3 * 24 * time.Hour).Truncate(24 * time.Hour), true},
		{"a month ago", testNow.Add(-30 * 24 * time.Hour).Truncate(24 * time.Hour), true},
		{"2 years ago", testNow.Add(-2 * 365 * 24 * time.Hour).Truncate(24 * time.Hour), true},
		{"an hour ago", testNow.Add(-time.Hour).Truncate(24 * time.Hour), true},
		{"just now", testNow.Truncate(24 * time.Hour), true},
		{"yesterday", testNow.Add(-24 * time.Hour).Truncate(24 * time.Hour), true},
		{"Unknown date", time.Time{}, false},
		{"", time.Time{}, false},
		{"soon", time.Time{}, false},
	}

	for _, tc := range cases {
		got, ok := ResolveRelativeAge(tc.phrase, testNow)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v, got %v", tc.phrase, tc.ok, ok)
		}
		if ok && !got.Equal(tc.want) {
			t.Fatalf("%q: expected %v, got %v", tc.phrase, tc.want, got)
		}
	}
}
