package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ReviewSentinel/internal/domain"
	"ReviewSentinel/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
	identity_key  TEXT PRIMARY KEY,
	author        TEXT NOT NULL,
	rating        INTEGER NOT NULL,
	review_text   TEXT NOT NULL,
	posted_raw    TEXT NOT NULL,
	source_url    TEXT NOT NULL,
	review_url    TEXT NOT NULL DEFAULT '',
	first_seen_at INTEGER NOT NULL,
	notified_at   INTEGER,
	category      TEXT NOT NULL DEFAULT '',
	rationale     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_reviews_notified_at ON reviews(notified_at);
CREATE INDEX IF NOT EXISTS idx_reviews_rating ON reviews(rating);
`

// SQLiteHistoryStore persists every review ever detected. Records are never
// deleted: the table doubles as the duplicate-suppression index and the audit
// trail, including for reviews the source later edits or removes.
type SQLiteHistoryStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ ports.HistoryStore = (*SQLiteHistoryStore)(nil)

// Open opens (creating if needed) the history database at path.
func Open(path string) (*SQLiteHistoryStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// The store is the single shared mutable resource; serialize writers at
	// the connection level so concurrent runs contend on the unique index,
	// not on the driver.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &SQLiteHistoryStore{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

// HasSeen reports whether a review with this identity key was ever detected.
func (s *SQLiteHistoryStore) HasSeen(ctx context.Context, identityKey string) (bool, error) {
	query, args, err := sq.Select("1").From("reviews").
		Where(sq.Eq{"identity_key": identityKey}).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query seen: %w", err)
	}
	return true, nil
}

// RecordDetected inserts the detection-time snapshot. The primary key makes
// this the claim point between overlapping runs: a conflicting concurrent
// insert surfaces domain.ErrDuplicateKey and the caller skips the review.
func (s *SQLiteHistoryStore) RecordDetected(ctx context.Context, review domain.Review) (domain.HistoryRecord, error) {
	firstSeen := s.now().UTC()

	query, args, err := sq.Insert("reviews").
		Columns("identity_key", "author", "rating", "review_text", "posted_raw",
			"source_url", "review_url", "first_seen_at").
		Values(review.IdentityKey, review.Author, review.Rating, review.Text,
			review.PostedRaw, review.SourceURL, review.ReviewURL, firstSeen.Unix()).
		ToSql()
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.HistoryRecord{}, fmt.Errorf("record %s: %w", review.IdentityKey, domain.ErrDuplicateKey)
		}
		return domain.HistoryRecord{}, fmt.Errorf("insert review: %w", err)
	}

	return domain.HistoryRecord{
		IdentityKey: review.IdentityKey,
		Author:      review.Author,
		Rating:      review.Rating,
		Text:        review.Text,
		PostedRaw:   review.PostedRaw,
		SourceURL:   review.SourceURL,
		ReviewURL:   review.ReviewURL,
		FirstSeenAt: firstSeen,
	}, nil
}

// SaveClassification stores the classification outcome as soon as it is
// known, before delivery. A crash between classification and alerting then
// resumes without a second round-trip to the reasoning service.
func (s *SQLiteHistoryStore) SaveClassification(ctx context.Context, identityKey, category, rationale string) error {
	query, args, err := sq.Update("reviews").
		Set("category", category).
		Set("rationale", rationale).
		Where(sq.Eq{"identity_key": identityKey}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("save classification %s: %w", identityKey, domain.ErrNotFound)
	}
	return nil
}

// MarkNotified sets notified_at and stores the classification once delivery
// is confirmed.
func (s *SQLiteHistoryStore) MarkNotified(ctx context.Context, identityKey, category, rationale string) error {
	query, args, err := sq.Update("reviews").
		Set("notified_at", s.now().UTC().Unix()).
		Set("category", category).
		Set("rationale", rationale).
		Where(sq.Eq{"identity_key": identityKey}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark notified %s: %w", identityKey, domain.ErrNotFound)
	}
	return nil
}

// Unnotified returns records that were detected but never confirmed as
// alerted, oldest first, for resumption after a crash mid-batch.
func (s *SQLiteHistoryStore) Unnotified(ctx context.Context) ([]domain.HistoryRecord, error) {
	query, args, err := sq.Select("identity_key", "author", "rating", "review_text",
		"posted_raw", "source_url", "review_url", "first_seen_at", "notified_at",
		"category", "rationale").
		From("reviews").
		Where(sq.Eq{"notified_at": nil}).
		OrderBy("first_seen_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query unnotified: %w", err)
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}

// Stats summarizes the tracked history.
func (s *SQLiteHistoryStore) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{ByRating: map[int]int{}}

	query, args, err := sq.Select("rating", "COUNT(*)").From("reviews").GroupBy("rating").ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rating, count int
		if err := rows.Scan(&rating, &count); err != nil {
			return domain.Stats{}, fmt.Errorf("scan stats: %w", err)
		}
		stats.ByRating[rating] = count
		stats.TotalTracked += count
	}
	if err := rows.Err(); err != nil {
		return domain.Stats{}, fmt.Errorf("rows iteration: %w", err)
	}

	notifiedQuery, notifiedArgs, err := sq.Select("COUNT(*)").From("reviews").
		Where(sq.NotEq{"notified_at": nil}).ToSql()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("build query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, notifiedQuery, notifiedArgs...).Scan(&stats.NotifiedCount); err != nil {
		return domain.Stats{}, fmt.Errorf("query notified count: %w", err)
	}

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.HistoryRecord, error) {
	var (
		record     domain.HistoryRecord
		firstSeen  int64
		notifiedAt sql.NullInt64
	)
	err := row.Scan(&record.IdentityKey, &record.Author, &record.Rating,
		&record.Text, &record.PostedRaw, &record.SourceURL, &record.ReviewURL,
		&firstSeen, &notifiedAt, &record.Category, &record.Rationale)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("scan record: %w", err)
	}

	record.FirstSeenAt = time.Unix(firstSeen, 0).UTC()
	if notifiedAt.Valid {
		at := time.Unix(notifiedAt.Int64, 0).UTC()
		record.NotifiedAt = &at
	}
	return record, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
