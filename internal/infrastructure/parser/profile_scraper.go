package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ReviewSentinel/internal/browser"
	"ReviewSentinel/internal/config"
	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
)

// ProfileScraper extracts review cards from a business profile page. Its job
// is maximal faithful extraction: rating filtering happens downstream, and a
// page that loads with zero parseable reviews is a successful empty result.
type ProfileScraper struct {
	navigator    browser.Navigator
	selectors    config.SelectorConfig
	artifactPath string
	logger       *slog.Logger
}

var _ ports.ReviewSource = (*ProfileScraper)(nil)

// NewProfileScraper wires the navigator with the externally supplied selector
// configuration. artifactPath receives the page HTML whenever extraction goes
// wrong, for offline selector debugging; empty disables capture.
func NewProfileScraper(nav browser.Navigator, selectors config.SelectorConfig, artifactPath string, logger *slog.Logger) *ProfileScraper {
	return &ProfileScraper{
		navigator:    nav,
		selectors:    selectors,
		artifactPath: artifactPath,
		logger:       logger,
	}
}

// Extract navigates to the profile and parses every visible review card.
// Navigation failure is the only hard error; individual malformed cards are
// skipped.
func (s *ProfileScraper) Extract(ctx context.Context, sourceURL string) ([]domain.RawReview, error) {
	snapshot, err := s.navigator.Fetch(ctx, sourceURL)
	if err != nil {
		s.captureArtifact(snapshot)
		return nil, fmt.Errorf("navigate %s: %w", sourceURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot.HTML))
	if err != nil {
		s.captureArtifact(snapshot)
		return nil, fmt.Errorf("%w: parse document: %v", browser.ErrNavigation, err)
	}

	containers, selector := s.findContainers(doc)
	if containers == nil {
		// Page loaded but no selector matched: either the business has no
		// reviews or the markup changed. Keep the HTML so the two can be
		// told apart offline.
		s.captureArtifact(snapshot)
		s.log().Warn("no review containers matched", "url", sourceURL, "artifact", s.artifactPath)
		return []domain.RawReview{}, nil
	}
	s.log().Debug("review containers found", "selector", selector, "count", containers.Length())

	reviews := make([]domain.RawReview, 0, containers.Length())
	containers.Each(func(i int, card *goquery.Selection) {
		raw, ok := s.parseCard(card, sourceURL)
		if !ok {
			s.log().Debug("skipped review card", "index", i)
			return
		}
		reviews = append(reviews, raw)
	})

	return reviews, nil
}

func (s *ProfileScraper) findContainers(doc *goquery.Document) (*goquery.Selection, string) {
	for _, selector := range s.selectors.Container {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			return sel, selector
		}
	}
	return nil, ""
}

// parseCard pulls one raw record out of a review card. A card with neither
// author nor text and no parseable rating is dropped.
func (s *ProfileScraper) parseCard(card *goquery.Selection, sourceURL string) (domain.RawReview, bool) {
	raw := domain.RawReview{
		Author:    firstText(card, s.selectors.Author),
		Rating:    parseStarRating(card, s.selectors.Rating),
		Text:      firstText(card, s.selectors.Text),
		PostedRaw: firstText(card, s.selectors.Posted),
		NativeID:  s.nativeID(card),
	}

	if raw.Rating == 0 && raw.Author == "" && raw.Text == "" {
		return domain.RawReview{}, false
	}

	raw.ReviewURL = reviewLink(card, raw.NativeID, sourceURL)
	return raw, true
}

func (s *ProfileScraper) nativeID(card *goquery.Selection) string {
	attr := s.selectors.NativeIDAttr
	if attr == "" {
		return ""
	}
	if id, ok := card.Attr(attr); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id)
	}
	if id, ok := card.Find("[" + attr + "]").First().Attr(attr); ok {
		return strings.TrimSpace(id)
	}
	return ""
}

// firstText tries each fallback selector in order until one yields content.
func firstText(card *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(card.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

// parseStarRating reads the rating from an aria-label like "1 star" or
// "4 stars". Returns 0 when no selector yields a parseable label.
func parseStarRating(card *goquery.Selection, selectors []string) int {
	for _, selector := range selectors {
		label, ok := card.Find(selector).First().Attr("aria-label")
		if !ok {
			continue
		}
		fields := strings.Fields(label)
		if len(fields) == 0 {
			continue
		}
		if n, err := strconv.Atoi(fields[0]); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(fields[0], 64); err == nil {
			return int(f)
		}
	}
	return 0
}

// reviewLink looks for an anchor inside the card pointing at the specific
// review. Without one the profile URL serves as the alert's fallback link.
func reviewLink(card *goquery.Selection, nativeID, sourceURL string) string {
	if nativeID == "" {
		return ""
	}

	base, baseErr := url.Parse(sourceURL)
	var link string
	card.Find("a[href]").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if !strings.Contains(href, nativeID) {
			return true
		}
		if baseErr == nil {
			if resolved, err := url.Parse(href); err == nil {
				link = base.ResolveReference(resolved).String()
				return false
			}
		}
		link = href
		return false
	})
	return link
}

func (s *ProfileScraper) captureArtifact(snapshot browser.Snapshot) {
	if s.artifactPath == "" || snapshot.HTML == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.artifactPath), 0o755); err != nil {
		s.log().Warn("cannot create artifact directory", "error", err)
		return
	}
	if err := os.WriteFile(s.artifactPath, []byte(snapshot.HTML), 0o644); err != nil {
		s.log().Warn("cannot write diagnostic artifact", "error", err)
	}
}

func (s *ProfileScraper) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
