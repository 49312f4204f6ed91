package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
	"ReviewSentinel/pkg/retry"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source       ports.ReviewSource
	History      ports.HistoryStore
	Classifier   ports.Classifier
	Notifier     ports.Notifier
	Detector     *Detector
	SourceURL    string
	ExtractRetry retry.Policy
	Logger       *slog.Logger
	Now          func() time.Time
}

// Pipeline sequences one run: extract, detect, then process each new review
// in isolation. A single review's failure never aborts the batch; only an
// extraction hard failure fails the run.
type Pipeline struct {
	source       ports.ReviewSource
	history      ports.HistoryStore
	classifier   ports.Classifier
	notifier     ports.Notifier
	detector     *Detector
	sourceURL    string
	extractRetry retry.Policy
	logger       *slog.Logger
	now          func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:       deps.Source,
		history:      deps.History,
		classifier:   deps.Classifier,
		notifier:     deps.Notifier,
		detector:     deps.Detector,
		sourceURL:    deps.SourceURL,
		extractRetry: deps.ExtractRetry,
		logger:       logger,
		now:          now,
	}
}

// Run executes one full invocation. The returned error is non-nil only for
// run-level failures; per-review problems land in the summary's failure list.
func (p *Pipeline) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{RunID: uuid.NewString(), StartedAt: p.now().UTC()}
	logger := p.logger.With("run_id", summary.RunID)

	// Reviews recorded by an earlier run that crashed before delivery get
	// another alert attempt first; extraction no longer surfaces them as new.
	p.resumeUnnotified(ctx, logger, &summary)

	logger.Info("extracting reviews", "url", p.sourceURL)
	var raws []domain.RawReview
	err := p.extractRetry.Do(ctx, func(ctx context.Context) error {
		extracted, extractErr := p.source.Extract(ctx, p.sourceURL)
		if extractErr != nil {
			return extractErr
		}
		raws = extracted
		return nil
	})
	if err != nil {
		summary.FinishedAt = p.now().UTC()
		logger.Error("extraction failed", "error", err)
		p.sendFailureAlert(ctx, logger, err)
		return summary, fmt.Errorf("extract: %w", err)
	}
	summary.Extracted = len(raws)

	detectedAt := p.now().UTC()
	reviews := make([]domain.Review, 0, len(raws))
	for i, raw := range raws {
		review, normErr := domain.Normalize(raw, p.sourceURL, detectedAt)
		if normErr != nil {
			summary.Malformed++
			logger.Warn("skipping malformed review record", "index", i, "error", normErr)
			continue
		}
		reviews = append(reviews, review)
	}

	fresh, err := p.detector.DetectNew(ctx, reviews)
	if err != nil {
		summary.FinishedAt = p.now().UTC()
		return summary, fmt.Errorf("detect new: %w", err)
	}
	summary.NewDetected = len(fresh)
	logger.Info("change detection complete",
		"extracted", summary.Extracted, "malformed", summary.Malformed, "new", summary.NewDetected)

	for _, review := range fresh {
		if ctx.Err() != nil {
			logger.Warn("time budget exceeded, stopping batch", "remaining", summary.NewDetected-summary.Notified)
			break
		}
		p.processReview(ctx, logger, review, &summary)
	}

	summary.FinishedAt = p.now().UTC()
	logger.Info("run complete",
		"new", summary.NewDetected, "resumed", summary.Resumed,
		"notified", summary.Notified, "skipped", summary.Skipped,
		"failed", len(summary.Failures))
	return summary, nil
}

// processReview carries one review from claim through delivery. Each step's
// failure is recorded and the batch moves on.
func (p *Pipeline) processReview(ctx context.Context, logger *slog.Logger, review domain.Review, summary *RunSummary) {
	record, err := p.history.RecordDetected(ctx, review)
	if errors.Is(err, domain.ErrDuplicateKey) {
		// Another invocation claimed this review between our HasSeen check
		// and the insert. Not an error.
		summary.Skipped++
		logger.Debug("review already claimed", "identity_key", review.IdentityKey)
		return
	}
	if err != nil {
		summary.fail(review.IdentityKey, review.Author, "record", err)
		logger.Error("cannot record detection", "identity_key", review.IdentityKey, "error", err)
		return
	}
	logger.Info("new review detected", "identity_key", review.IdentityKey,
		"author", review.Author, "rating", review.Rating)

	result, err := p.classifier.Classify(ctx, review)
	if err != nil {
		// A classifier error never blocks the alert.
		result = domain.Classification{
			Category:  domain.CategoryUnableToClassify,
			Rationale: fmt.Sprintf("Classification error: %v", err),
		}
	}
	summary.Classified++
	if err := p.history.SaveClassification(ctx, review.IdentityKey, result.Category, result.Rationale); err != nil {
		logger.Warn("cannot store classification", "identity_key", review.IdentityKey, "error", err)
	}

	p.deliver(ctx, logger, review, result, record.FirstSeenAt, summary)
}

func (p *Pipeline) deliver(ctx context.Context, logger *slog.Logger, review domain.Review, result domain.Classification, detectedAt time.Time, summary *RunSummary) {
	if err := p.notifier.SendReviewAlert(ctx, review, result, detectedAt); err != nil {
		summary.fail(review.IdentityKey, review.Author, "notify", err)
		logger.Error("alert delivery failed", "identity_key", review.IdentityKey, "error", err)
		return
	}
	if err := p.history.MarkNotified(ctx, review.IdentityKey, result.Category, result.Rationale); err != nil {
		// The alert went out but the confirmation write failed; the next run
		// will re-send. At-least-once is the invariant here.
		summary.fail(review.IdentityKey, review.Author, "confirm", err)
		logger.Error("cannot confirm delivery", "identity_key", review.IdentityKey, "error", err)
		return
	}
	summary.Notified++
	logger.Info("alert delivered", "identity_key", review.IdentityKey, "category", result.Category)
}

// resumeUnnotified re-attempts delivery for records a previous run detected
// but never confirmed, reusing any stored classification.
func (p *Pipeline) resumeUnnotified(ctx context.Context, logger *slog.Logger, summary *RunSummary) {
	records, err := p.history.Unnotified(ctx)
	if err != nil {
		logger.Warn("cannot load unnotified records", "error", err)
		return
	}
	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		summary.Resumed++
		review := record.Review()
		logger.Info("resuming unnotified review", "identity_key", record.IdentityKey)

		result := domain.Classification{Category: record.Category, Rationale: record.Rationale}
		if result.Category == "" {
			classified, classifyErr := p.classifier.Classify(ctx, review)
			if classifyErr != nil {
				classified = domain.Classification{
					Category:  domain.CategoryUnableToClassify,
					Rationale: fmt.Sprintf("Classification error: %v", classifyErr),
				}
			}
			result = classified
			if err := p.history.SaveClassification(ctx, review.IdentityKey, result.Category, result.Rationale); err != nil {
				logger.Warn("cannot store classification", "identity_key", review.IdentityKey, "error", err)
			}
		}

		p.deliver(ctx, logger, review, result, record.FirstSeenAt, summary)
	}
}

func (p *Pipeline) sendFailureAlert(ctx context.Context, logger *slog.Logger, cause error) {
	if p.notifier == nil {
		return
	}
	subject := "Review Monitoring Failed"
	if err := p.notifier.SendFailureAlert(ctx, subject, cause.Error()); err != nil {
		logger.Warn("cannot send failure alert", "error", err)
	}
}
