// Package postgres provides the Postgres-backed PageStore.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists page records in the business_pages table and maintains the
// businesses.updated_at touch column. Upserts conflict on (business_id, url)
// with last-writer-wins semantics, so concurrent writers need no extra
// locking.
type Store struct {
	pool dbPool
}

// New connects a pooled Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const upsertPageSQL = `
INSERT INTO business_pages (
	business_id,
	url,
	page_type,
	summary,
	email,
	social_links,
	seo_score,
	seo_explanation,
	page_speed_score,
	time_to_interactive_ms,
	snapshot_uri,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now()
)
ON CONFLICT (business_id, url) DO UPDATE SET
	page_type = EXCLUDED.page_type,
	summary = EXCLUDED.summary,
	email = EXCLUDED.email,
	social_links = EXCLUDED.social_links,
	seo_score = EXCLUDED.seo_score,
	seo_explanation = EXCLUDED.seo_explanation,
	page_speed_score = EXCLUDED.page_speed_score,
	time_to_interactive_ms = EXCLUDED.time_to_interactive_ms,
	snapshot_uri = EXCLUDED.snapshot_uri,
	updated_at = now()`

// UpsertPage implements enrich.PageStore. updated_at is stamped by the
// database on every write, recompute or not.
func (s *Store) UpsertPage(ctx context.Context, rec enrich.PageRecord) error {
	if rec.BusinessID == "" || rec.URL == "" {
		return fmt.Errorf("business id and url are required")
	}
	socialJSON, err := json.Marshal(rec.SocialLinks)
	if err != nil {
		return fmt.Errorf("marshal social links: %w", err)
	}
	_, err = s.pool.Exec(ctx, upsertPageSQL,
		rec.BusinessID,
		rec.URL,
		string(rec.PageType),
		rec.Summary,
		rec.Email,
		socialJSON,
		rec.SEOScore,
		rec.SEOExplanation,
		rec.PerformanceScore,
		rec.TimeToInteractiveMs,
		rec.SnapshotURI,
	)
	if err != nil {
		return fmt.Errorf("upsert business page: %w", err)
	}
	return nil
}

const getPageSQL = `
SELECT
	page_type,
	summary,
	email,
	social_links,
	seo_score,
	seo_explanation,
	page_speed_score,
	time_to_interactive_ms,
	snapshot_uri,
	updated_at
FROM business_pages
WHERE business_id = $1 AND url = $2`

// GetPage implements enrich.PageStore.
func (s *Store) GetPage(ctx context.Context, businessID, url string) (enrich.PageRecord, bool, error) {
	rec := enrich.PageRecord{BusinessID: businessID, URL: url}
	var (
		pageType   string
		socialJSON []byte
	)
	err := s.pool.QueryRow(ctx, getPageSQL, businessID, url).Scan(
		&pageType,
		&rec.Summary,
		&rec.Email,
		&socialJSON,
		&rec.SEOScore,
		&rec.SEOExplanation,
		&rec.PerformanceScore,
		&rec.TimeToInteractiveMs,
		&rec.SnapshotURI,
		&rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return enrich.PageRecord{}, false, nil
	}
	if err != nil {
		return enrich.PageRecord{}, false, fmt.Errorf("get business page: %w", err)
	}
	rec.PageType = enrich.PageType(pageType)
	if len(socialJSON) > 0 {
		if err := json.Unmarshal(socialJSON, &rec.SocialLinks); err != nil {
			return enrich.PageRecord{}, false, fmt.Errorf("unmarshal social links: %w", err)
		}
	}
	return rec, true, nil
}

const recentlyUpdatedSQL = `
SELECT EXISTS (
	SELECT 1 FROM business_pages
	WHERE business_id = $1 AND updated_at > $2
)`

// IsBusinessRecentlyUpdated implements enrich.PageStore.
func (s *Store) IsBusinessRecentlyUpdated(ctx context.Context, businessID string, within time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-within)
	var recent bool
	if err := s.pool.QueryRow(ctx, recentlyUpdatedSQL, businessID, cutoff).Scan(&recent); err != nil {
		return false, fmt.Errorf("business freshness query: %w", err)
	}
	return recent, nil
}

const touchBusinessSQL = `UPDATE businesses SET updated_at = now() WHERE id = $1`

// TouchBusiness implements enrich.PageStore.
func (s *Store) TouchBusiness(ctx context.Context, businessID string) error {
	if _, err := s.pool.Exec(ctx, touchBusinessSQL, businessID); err != nil {
		return fmt.Errorf("touch business: %w", err)
	}
	return nil
}
