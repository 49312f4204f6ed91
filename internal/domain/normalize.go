package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"
)

// Normalize converts a raw extraction record into the canonical Review.
// It is pure: identical input yields an identical Review, including the
// identity key, regardless of extraction order.
func Normalize(raw RawReview, sourceURL string, now time.Time) (Review, error) {
	if raw.Rating < 1 || raw.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating %d outside 1-5", ErrMalformedReview, raw.Rating)
	}

	author := NormalizeText(raw.Author)
	if author == "" {
		author = "Anonymous"
	}
	text := NormalizeText(raw.Text)

	postedRaw := strings.TrimSpace(raw.PostedRaw)
	if postedRaw == "" {
		postedRaw = "Unknown date"
	}
	postedAt, ok := ResolveRelativeAge(postedRaw, now)
	if !ok {
		postedAt = now.UTC().Truncate(24 * time.Hour)
	}

	return Review{
		IdentityKey: IdentityKey(raw.NativeID, author, raw.Rating, text),
		Author:      author,
		Rating:      raw.Rating,
		Text:        text,
		PostedRaw:   postedRaw,
		PostedAt:    postedAt,
		SourceURL:   sourceURL,
		ReviewURL:   strings.TrimSpace(raw.ReviewURL),
	}, nil
}

// NormalizeText resolves HTML entities and collapses presentation whitespace.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// IdentityKey derives the stable fingerprint for a review. A source-provided
// id wins outright. Otherwise the key hashes author, rating and normalized
// text. The posted date is deliberately excluded: the source rewords relative
// ages over time ("7 months ago" becomes "8 months ago"), which would make the
// key unstable. The cost is that two id-less reviews with identical author,
// rating and text collapse into one logical review.
func IdentityKey(nativeID, author string, rating int, text string) string {
	if id := strings.TrimSpace(nativeID); id != "" {
		return "id:" + id
	}
	sum := sha256.Sum256([]byte(author + "|" + strconv.Itoa(rating) + "|" + text))
	return hex.EncodeToString(sum[:])
}

var agePeriods = []struct {
	word string
	unit time.Duration
}{
	{"minute", time.Minute},
	{"hour", time.Hour},
	{"day", 24 * time.Hour},
	{"week", 7 * 24 * time.Hour},
	{"month", 30 * 24 * time.Hour},
	{"year", 365 * 24 * time.Hour},
}

// ResolveRelativeAge turns phrases like "3 days ago", "a month ago" or
// "just now" into an approximate instant, truncated to day granularity.
// The second return value is false when the phrase is not understood.
func ResolveRelativeAge(phrase string, now time.Time) (time.Time, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if p == "" {
		return time.Time{}, false
	}
	if p == "just now" || p == "now" || p == "today" {
		return now.UTC().Truncate(24 * time.Hour), true
	}
	if p == "yesterday" {
		return now.UTC().Add(-24 * time.Hour).Truncate(24 * time.Hour), true
	}

	fields := strings.Fields(p)
	if len(fields) < 2 || fields[len(fields)-1] != "ago" {
		return time.Time{}, false
	}

	count := 1
	if fields[0] != "a" && fields[0] != "an" {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return time.Time{}, false
		}
		count = n
	}

	unitWord := strings.TrimSuffix(fields[1], "s")
	for _, period := range agePeriods {
		if period.word == unitWord {
			at := now.UTC().Add(-time.Duration(count) * period.unit)
			return at.Truncate(24 * time.Hour), true
		}
	}
	return time.Time{}, false
}
