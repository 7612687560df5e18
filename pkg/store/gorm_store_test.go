package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"vendorhub/pkg/domain"
	"vendorhub/pkg/entitlement"
)

func newMockStore(t *testing.T, options ...GormStoreOption) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return NewGormStoreFromDB(db, options...), mock
}

var vendorColumns = []string{
	"id", "owner_id", "name", "description", "image_url", "logo_url", "category_id",
	"price_range", "rating", "review_count", "location", "dietary_options",
	"cuisine_types", "theme_types", "subscription_tier", "subscription_status",
	"catalogue_pages", "word_count", "photo_limit", "reviews_enabled", "created_at", "updated_at",
}

func vendorRow(rows *sqlmock.Rows, id string, rating float64) *sqlmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(id, nil, "Vendor "+id, "", "", "", "cat-1", "$$", rating, 3, "Austin",
		"{vegan,halal}", "{}", "{}", "premium", "active", 8, 500, 100, true, now, now)
}

func TestGormStoreSearchVendorsQueryShape(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows(vendorColumns)
	vendorRow(rows, "v2", 4.8)
	vendorRow(rows, "v1", 4.1)
	vendorRow(rows, "v2", 4.8)
	mock.ExpectQuery(`SELECT \* FROM "vendors" WHERE \(name ILIKE .* OR description ILIKE .*\) AND category_id = .* AND dietary_options @> .* ORDER BY rating DESC,id ASC LIMIT`).
		WillReturnRows(rows)

	got, err := s.SearchVendors(context.Background(), VendorQuery{
		Search:     "cake",
		CategoryID: "cat-1",
		Dietary:    []string{"vegan"},
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected duplicates to be dropped, got %d rows", len(got))
	}
	if got[0].ID != "v2" || got[0].Rating != 4.8 {
		t.Fatalf("unexpected first vendor: %+v", got[0])
	}
	if len(got[0].DietaryOptions) != 2 || got[0].DietaryOptions[1] != "halal" {
		t.Fatalf("text[] column not decoded: %v", got[0].DietaryOptions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreGetVendorNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "vendors" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows(vendorColumns))

	_, found, err := s.GetVendor(context.Background(), "missing")
	if err != nil || found {
		t.Fatalf("expected (false, nil), got (%v, %v)", found, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreTimeoutIsUnavailable(t *testing.T) {
	s, mock := newMockStore(t, WithQueryTimeout(20*time.Millisecond))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillDelayFor(500 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := s.UserCount(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestGormStoreListReviewsExcludesRejected(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT \* FROM "reviews" WHERE vendor_id = .* AND status <> .* ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "vendor_id", "rating", "title", "review_text", "status", "admin_reply", "admin_reply_at", "created_at", "updated_at"}).
			AddRow("r1", "u1", "v1", 5, "Great", "Lovely cake", "approved", "", nil, now, now))

	reviews, err := s.ListReviewsByVendor(context.Background(), "v1")
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(reviews) != 1 || reviews[0].Rating != 5 {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveOptionsClampsPool(t *testing.T) {
	opts := resolveOptions([]GormStoreOption{WithPool(4, 10, 0), WithQueryTimeout(-1)})
	if opts.MaxOpenConns != 4 || opts.MaxIdleConns != 4 {
		t.Fatalf("pool = %d/%d, want 4/4", opts.MaxOpenConns, opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime != defaultConnMaxLifetime || opts.QueryTimeout != defaultQueryTimeout {
		t.Fatalf("defaults not applied: %+v", opts)
	}
}

func TestGormStoreCreateReviewLocksVendorAndRecomputes(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "vendors" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(vendorRow(sqlmock.NewRows(vendorColumns), "v1", 4.0))
	mock.ExpectExec(`INSERT INTO "reviews"`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT COALESCE\(AVG\(rating\), 0\) AS avg, COUNT\(\*\) AS count FROM "reviews" WHERE vendor_id = \$1 AND status <> \$2`).
		WithArgs("v1", string(domain.ReviewRejected)).
		WillReturnRows(sqlmock.NewRows([]string{"avg", "count"}).AddRow(4.3333, 3))
	mock.ExpectExec(`UPDATE "vendors" SET "rating"=\$1,"review_count"=\$2,"updated_at"=\$3 WHERE id = \$4`).
		WithArgs(4.3, 3, sqlmock.AnyArg(), "v1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := s.CreateReview(context.Background(), domain.Review{
		ID: "r1", UserID: "u1", VendorID: "v1", Rating: 5, Status: domain.ReviewPending,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if v.Rating != 4.3 || v.ReviewCount != 3 {
		t.Fatalf("aggregate = %.1f/%d, want 4.3/3", v.Rating, v.ReviewCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreCreateReviewRejectsIneligibleTier(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "vendors" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(vendorColumns).AddRow("v1", nil, "Vendor v1", "", "", "", "cat-1", "$", 0.0, 0, "Austin",
			"{}", "{}", "{}", "free", "active", 1, 50, 1, false, now, now))
	mock.ExpectRollback()

	_, err := s.CreateReview(context.Background(), domain.Review{ID: "r1", UserID: "u1", VendorID: "v1", Rating: 4})
	if !errors.Is(err, ErrReviewsDisabled) {
		t.Fatalf("expected ErrReviewsDisabled, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no review may be written: %v", err)
	}
}

func TestGormStoreAddShortlistExistingPair(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "shortlists" .* ON CONFLICT \("user_id","vendor_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectQuery(`SELECT \* FROM "shortlists" WHERE user_id = \$1 AND vendor_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "vendor_id", "notes", "created_at"}).
			AddRow("s-old", "u1", "v1", "first pick", now))

	item, created, err := s.AddShortlist(context.Background(), domain.Shortlist{ID: "s-new", UserID: "u1", VendorID: "v1", CreatedAt: now})
	if err != nil {
		t.Fatalf("add shortlist: %v", err)
	}
	if created || item.ID != "s-old" || item.Notes != "first pick" {
		t.Fatalf("expected the stored row with created=false, got %+v created=%v", item, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreAddShortlistNewPair(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "shortlists" .* ON CONFLICT \("user_id","vendor_id"\) DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	item, created, err := s.AddShortlist(context.Background(), domain.Shortlist{ID: "s-new", UserID: "u1", VendorID: "v1", CreatedAt: time.Now().UTC()})
	if err != nil || !created || item.ID != "s-new" {
		t.Fatalf("add shortlist = %+v created=%v err=%v", item, created, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreUpdateSubscriptionWritesEntitlements(t *testing.T) {
	s, mock := newMockStore(t)
	e := entitlement.ForTier(domain.TierPro)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE "vendors" SET "catalogue_pages"=\$1,"photo_limit"=\$2,"reviews_enabled"=\$3,"subscription_status"=\$4,"subscription_tier"=\$5,"updated_at"=\$6,"word_count"=\$7 WHERE id = \$8 RETURNING \*`).
		WithArgs(e.CataloguePages, e.PhotoLimit, e.ReviewsEnabled, "active", "pro", sqlmock.AnyArg(), e.WordCount, "v1").
		WillReturnRows(sqlmock.NewRows(vendorColumns).AddRow("v1", nil, "Vendor v1", "", "", "", "cat-1", "$$", 0.0, 0, "Austin",
			"{}", "{}", "{}", "pro", "active", e.CataloguePages, e.WordCount, e.PhotoLimit, e.ReviewsEnabled, now, now))
	mock.ExpectCommit()

	v, err := s.UpdateSubscription(context.Background(), "v1", domain.TierPro, domain.SubscriptionActive)
	if err != nil {
		t.Fatalf("update subscription: %v", err)
	}
	if v.SubscriptionTier != domain.TierPro || !entitlement.Consistent(v) {
		t.Fatalf("returned vendor not consistent with its tier: %+v", v)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGormStoreUpdateSubscriptionMissingVendor(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE "vendors" SET .* WHERE id = \$8 RETURNING \*`).
		WillReturnRows(sqlmock.NewRows(vendorColumns))
	mock.ExpectCommit()

	_, err := s.UpdateSubscription(context.Background(), "missing", domain.TierBasic, domain.SubscriptionActive)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormStoreMarkMessagesReadSkipsOwnMessages(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "messages" SET "is_read"=\$1 WHERE conversation_id = \$2 AND sender_id <> \$3 AND is_read = \$4`).
		WithArgs(true, "c1", "reader", false).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := s.MarkMessagesRead(context.Background(), "c1", "reader")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("marked %d messages, want 2", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
