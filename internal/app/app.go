package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"ReviewSentinel/internal/browser"
	"ReviewSentinel/internal/config"
	"ReviewSentinel/internal/infrastructure/llm"
	"ReviewSentinel/internal/infrastructure/mailer"
	"ReviewSentinel/internal/infrastructure/parser"
	"ReviewSentinel/internal/infrastructure/scheduler"
	"ReviewSentinel/internal/infrastructure/storage"
	"ReviewSentinel/internal/logging"
	"ReviewSentinel/internal/usecase"
	"ReviewSentinel/pkg/retry"
)

// Application wires configuration into adapters and the pipeline, and owns
// their lifecycle.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLiteHistoryStore
	pipeline *usecase.Pipeline
}

// New builds a runnable application instance. The caller must Close it to
// release the history store.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.JSON)
	}

	policy := retry.Policy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelaySeconds) * time.Second,
		MaxDelay:    retry.Default.MaxDelay,
		Jitter:      true,
	}

	navigator, err := browser.NewHTTPNavigator(cfg.Proxy, baseLogger.With("component", "navigator"))
	if err != nil {
		return nil, fmt.Errorf("app: navigator: %w", err)
	}

	artifactPath := filepath.Join(filepath.Dir(cfg.Database.Path), "failure_snapshot.html")
	source := parser.NewProfileScraper(navigator, cfg.Selectors, artifactPath,
		baseLogger.With("component", "scraper"))

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("app: open history store: %w", err)
	}

	classifier := llm.NewOpenAIClassifier(cfg.Classifier, policy,
		baseLogger.With("component", "classifier"))
	notifier := mailer.NewSMTPNotifier(cfg.Mail, policy,
		baseLogger.With("component", "mailer"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:       source,
		History:      store,
		Classifier:   classifier,
		Notifier:     notifier,
		Detector:     usecase.NewDetector(store, cfg.Source),
		SourceURL:    cfg.Source.URL,
		ExtractRetry: policy,
		Logger:       baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, logger: baseLogger, store: store, pipeline: pipeline}, nil
}

// Run executes either a single pipeline invocation or, when an interval is
// configured, the recurring worker until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if interval := a.cfg.Worker.Interval(); interval > 0 {
		return a.runWorker(ctx, interval)
	}
	return a.runOnce(ctx)
}

func (a *Application) runOnce(ctx context.Context) error {
	summary, err := a.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	if stats, statsErr := a.store.Stats(ctx); statsErr == nil {
		a.logger.Info("history totals",
			"tracked", stats.TotalTracked, "notified", stats.NotifiedCount)
	}
	if summary.AllFailed() {
		return fmt.Errorf("app: run %s: no review in the batch was delivered", summary.RunID)
	}
	return nil
}

func (a *Application) runWorker(ctx context.Context, interval time.Duration) error {
	a.logger.Info("starting worker", "interval", interval)

	driver := scheduler.NewIntervalScheduler(interval)
	worker := usecase.NewWorker(driver, a.pipeline)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("app: start worker: %w", err)
	}

	<-ctx.Done()
	a.logger.Info("stopping worker")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return worker.Stop(stopCtx)
}

// Close releases resources held by the application.
func (a *Application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}
