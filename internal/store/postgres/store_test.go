package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/Michaelfleck/paradane-business-bot/internal/enrich"
)

func ptr[T any](v T) *T { return &v }

func TestUpsertPageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	rec := enrich.PageRecord{
		BusinessID:          "biz-1",
		URL:                 "https://a.test/menu",
		PageType:            enrich.PageTypeMenu,
		Summary:             "Dinner menu for a cocktail lounge.",
		Email:               ptr("info@a.test"),
		SocialLinks:         []string{"https://instagram.com/atest"},
		SEOScore:            82,
		SEOExplanation:      "Missing canonical link.",
		PerformanceScore:    ptr(64),
		TimeToInteractiveMs: ptr(int64(3200)),
		SnapshotURI:         "gs://bucket/businesses/biz-1/abc.html",
	}

	mock.ExpectExec("INSERT INTO business_pages").
		WithArgs(
			rec.BusinessID,
			rec.URL,
			"Menu",
			rec.Summary,
			rec.Email,
			[]byte(`["https://instagram.com/atest"]`),
			rec.SEOScore,
			rec.SEOExplanation,
			rec.PerformanceScore,
			rec.TimeToInteractiveMs,
			rec.SnapshotURI,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.UpsertPage(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPageRequiresKeys(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	require.Error(t, store.UpsertPage(context.Background(), enrich.PageRecord{URL: "https://a.test"}))
}

func TestGetPageFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	updated := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"page_type", "summary", "email", "social_links", "seo_score",
		"seo_explanation", "page_speed_score", "time_to_interactive_ms",
		"snapshot_uri", "updated_at",
	}).AddRow(
		"About", "About the bar.", ptr("info@a.test"), []byte(`["https://x.com/atest"]`),
		75, "Missing favicon link.", ptr(58), ptr(int64(4100)), "", updated,
	)

	mock.ExpectQuery("SELECT(.|\\s)*FROM business_pages").
		WithArgs("biz-1", "https://a.test/about").
		WillReturnRows(rows)

	rec, found, err := store.GetPage(context.Background(), "biz-1", "https://a.test/about")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, enrich.PageTypeAbout, rec.PageType)
	require.Equal(t, "About the bar.", rec.Summary)
	require.Equal(t, []string{"https://x.com/atest"}, rec.SocialLinks)
	require.Equal(t, updated, rec.UpdatedAt)
}

func TestGetPageNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT(.|\\s)*FROM business_pages").
		WithArgs("biz-1", "https://a.test/missing").
		WillReturnError(pgx.ErrNoRows)

	_, found, err := store.GetPage(context.Background(), "biz-1", "https://a.test/missing")
	require.NoError(t, err)
	require.False(t, found)
}

func TestIsBusinessRecentlyUpdated(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("biz-1", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	recent, err := store.IsBusinessRecentlyUpdated(context.Background(), "biz-1", 24*time.Hour)
	require.NoError(t, err)
	require.True(t, recent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchBusiness(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE businesses SET updated_at").
		WithArgs("biz-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.TouchBusiness(context.Background(), "biz-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
