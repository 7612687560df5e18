package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/entitlement"
)

const (
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultQueryTimeout    = 5 * time.Second
)

type GormStoreOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
	SkipMigrations  bool
}

type GormStoreOption func(*GormStoreOptions)

// WithPool bounds the connection pool.
func WithPool(maxOpen, maxIdle int, lifetime time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.MaxOpenConns = maxOpen
		opts.MaxIdleConns = maxIdle
		opts.ConnMaxLifetime = lifetime
	}
}

// WithQueryTimeout caps every store call, including the wait for a pooled
// connection.
func WithQueryTimeout(d time.Duration) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.QueryTimeout = d
	}
}

// WithoutMigrations skips schema migration on open.
func WithoutMigrations() GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.SkipMigrations = true
	}
}

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db           *gorm.DB
	queryTimeout time.Duration
}

// NewGormStore runs migrations, opens the pool and applies pool bounds.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := resolveOptions(options)
	if !opts.SkipMigrations {
		if err := Migrate(dsn); err != nil {
			return nil, err
		}
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	return &GormStore{db: db, queryTimeout: opts.QueryTimeout}, nil
}

// NewGormStoreFromDB wraps an already opened gorm handle.
func NewGormStoreFromDB(db *gorm.DB, options ...GormStoreOption) *GormStore {
	opts := resolveOptions(options)
	return &GormStore{db: db, queryTimeout: opts.QueryTimeout}
}

func resolveOptions(options []GormStoreOption) GormStoreOptions {
	opts := GormStoreOptions{
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime,
		QueryTimeout:    defaultQueryTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = defaultMaxOpenConns
	}
	if opts.MaxIdleConns < 0 || opts.MaxIdleConns > opts.MaxOpenConns {
		opts.MaxIdleConns = opts.MaxOpenConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}
	return opts
}

// Close releases the pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks connectivity within the query timeout.
func (s *GormStore) Ping(ctx context.Context) error {
	return s.run(ctx, func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(db.Statement.Context)
	})
}

// run executes fn under the per-call timeout and translates driver errors
// into store sentinels.
func (s *GormStore) run(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	err := fn(s.db.WithContext(ctx))
	if err == nil {
		return nil
	}
	if isStoreSentinel(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func isStoreSentinel(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrReviewsDisabled) ||
		errors.Is(err, ErrPhotoLimit)
}

func first[M any](db *gorm.DB, model *M, conds ...any) (bool, error) {
	if err := db.First(model, conds...).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateUser inserts a user. A taken email is ErrConflict.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Create(&model).Error
	})
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(ctx context.Context, email string) (domain.User, bool, error) {
	var model UserModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db.Where("email = ?", email), &model)
		return err
	})
	if err != nil || !found {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id string) (domain.User, bool, error) {
	var model UserModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns active users ordered by created_at, optionally by role.
func (s *GormStore) ListUsers(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	var models []UserModel
	err := s.run(ctx, func(db *gorm.DB) error {
		tx := db.Where("status = ?", string(domain.StatusActive))
		if role != "" {
			tx = tx.Where("role = ?", string(role))
		}
		return tx.Order("created_at ASC").Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount(ctx context.Context) (int, error) {
	var count int64
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Model(&UserModel{}).Count(&count).Error
	})
	return int(count), err
}

// CreateCategory inserts a category. A taken slug is ErrConflict.
func (s *GormStore) CreateCategory(ctx context.Context, c domain.Category) error {
	model := categoryToModel(c)
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Create(&model).Error
	})
}

// ListCategories returns categories ordered by name.
func (s *GormStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Order("name ASC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

func (s *GormStore) GetCategory(ctx context.Context, id string) (domain.Category, bool, error) {
	return s.getCategory(ctx, "id = ?", id)
}

func (s *GormStore) GetCategoryBySlug(ctx context.Context, slug string) (domain.Category, bool, error) {
	return s.getCategory(ctx, "slug = ?", slug)
}

func (s *GormStore) getCategory(ctx context.Context, conds ...any) (domain.Category, bool, error) {
	var model CategoryModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, conds...)
		return err
	})
	if err != nil || !found {
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// CreateVendor inserts a vendor with entitlement columns derived from its tier.
func (s *GormStore) CreateVendor(ctx context.Context, v domain.Vendor) error {
	entitlement.Apply(&v, v.SubscriptionTier, v.SubscriptionStatus)
	model := vendorToModel(v)
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Create(&model).Error
	})
}

// UpdateVendorProfile rewrites the editable profile columns. Subscription,
// entitlement and rating columns are left untouched.
func (s *GormStore) UpdateVendorProfile(ctx context.Context, v domain.Vendor) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&VendorModel{}).
			Where("id = ?", v.ID).
			Updates(map[string]any{
				"name":            v.Name,
				"description":     v.Description,
				"image_url":       v.ImageURL,
				"logo_url":        v.LogoURL,
				"category_id":     optionalID(v.CategoryID),
				"price_range":     v.PriceRange,
				"location":        v.Location,
				"dietary_options": stringSet(v.DietaryOptions),
				"cuisine_types":   stringSet(v.CuisineTypes),
				"theme_types":     stringSet(v.ThemeTypes),
				"updated_at":      time.Now().UTC(),
			}))
	})
}

// GetVendor returns a vendor by ID.
func (s *GormStore) GetVendor(ctx context.Context, id string) (domain.Vendor, bool, error) {
	var model VendorModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.Vendor{}, false, err
	}
	return vendorFromModel(model), true, nil
}

// DeleteVendor removes a vendor; dependent rows cascade.
func (s *GormStore) DeleteVendor(ctx context.Context, id string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Delete(&VendorModel{}, "id = ?", id))
	})
}

// SearchVendors runs the catalog query. Filters are bound as parameters.
func (s *GormStore) SearchVendors(ctx context.Context, q VendorQuery) ([]domain.Vendor, error) {
	q = q.Normalize()
	var models []VendorModel
	err := s.run(ctx, func(db *gorm.DB) error {
		tx := db.Model(&VendorModel{})
		if q.Search != "" {
			pattern := likePattern(q.Search)
			tx = tx.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
		}
		if q.CategoryID != "" {
			tx = tx.Where("category_id = ?", q.CategoryID)
		}
		if q.Location != "" {
			tx = tx.Where("location ILIKE ?", likePattern(q.Location))
		}
		if q.PriceRange != "" {
			tx = tx.Where("price_range = ?", q.PriceRange)
		}
		if len(q.Dietary) > 0 {
			tx = tx.Where("dietary_options @> ?", pq.StringArray(q.Dietary))
		}
		if len(q.Cuisine) > 0 {
			tx = tx.Where("cuisine_types @> ?", pq.StringArray(q.Cuisine))
		}
		if len(q.Theme) > 0 {
			tx = tx.Where("theme_types @> ?", pq.StringArray(q.Theme))
		}
		return tx.Order("rating DESC").Order("id ASC").
			Offset(q.Offset()).
			Limit(q.Limit).
			Find(&models).Error
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(models))
	res := make([]domain.Vendor, 0, len(models))
	for _, m := range models {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		res = append(res, vendorFromModel(m))
	}
	return res, nil
}

// UpdateSubscription writes tier, status and every entitlement column in a
// single UPDATE and returns the resulting row.
func (s *GormStore) UpdateSubscription(ctx context.Context, vendorID string, tier domain.SubscriptionTier, status domain.SubscriptionStatus) (domain.Vendor, error) {
	effective, e := entitlement.Resolve(tier, status)
	var model VendorModel
	err := s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&model).
			Clauses(clause.Returning{}).
			Where("id = ?", vendorID).
			Updates(map[string]any{
				"subscription_tier":   string(effective),
				"subscription_status": string(status),
				"catalogue_pages":     e.CataloguePages,
				"word_count":          e.WordCount,
				"photo_limit":         e.PhotoLimit,
				"reviews_enabled":     e.ReviewsEnabled,
				"updated_at":          time.Now().UTC(),
			}))
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	return vendorFromModel(model), nil
}

// AddVendorPhoto inserts p unless the vendor already holds photoLimit photos.
func (s *GormStore) AddVendorPhoto(ctx context.Context, p domain.VendorPhoto) error {
	model := photoToModel(p)
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var vendor VendorModel
			found, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &vendor, "id = ?", p.VendorID)
			if err != nil {
				return err
			}
			if !found {
				return ErrNotFound
			}
			var count int64
			if err := tx.Model(&VendorPhotoModel{}).Where("vendor_id = ?", p.VendorID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(vendor.PhotoLimit) {
				return ErrPhotoLimit
			}
			return tx.Create(&model).Error
		})
	})
}

func (s *GormStore) GetVendorPhoto(ctx context.Context, id string) (domain.VendorPhoto, bool, error) {
	var model VendorPhotoModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.VendorPhoto{}, false, err
	}
	return photoFromModel(model), true, nil
}

func (s *GormStore) ListVendorPhotos(ctx context.Context, vendorID string) ([]domain.VendorPhoto, error) {
	var models []VendorPhotoModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("vendor_id = ?", vendorID).Order("created_at ASC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.VendorPhoto, 0, len(models))
	for _, m := range models {
		res = append(res, photoFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteVendorPhoto(ctx context.Context, id string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Delete(&VendorPhotoModel{}, "id = ?", id))
	})
}

// AddShortlist inserts the (user, vendor) pair. When the pair already exists
// the stored row is returned with created=false.
func (s *GormStore) AddShortlist(ctx context.Context, item domain.Shortlist) (domain.Shortlist, bool, error) {
	model := shortlistToModel(item)
	var existing ShortlistModel
	created := false
	err := s.run(ctx, func(db *gorm.DB) error {
		res := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "vendor_id"}},
			DoNothing: true,
		}).Create(&model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			created = true
			existing = model
			return nil
		}
		found, err := first(db.Where("user_id = ? AND vendor_id = ?", item.UserID, item.VendorID), &existing)
		if err == nil && !found {
			return ErrNotFound
		}
		return err
	})
	if err != nil {
		return domain.Shortlist{}, false, err
	}
	return shortlistFromModel(existing), created, nil
}

// RemoveShortlist deletes the pair. Absence is not an error.
func (s *GormStore) RemoveShortlist(ctx context.Context, userID, vendorID string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Delete(&ShortlistModel{}, "user_id = ? AND vendor_id = ?", userID, vendorID).Error
	})
}

func (s *GormStore) GetShortlist(ctx context.Context, userID, vendorID string) (domain.Shortlist, bool, error) {
	var model ShortlistModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db.Where("user_id = ? AND vendor_id = ?", userID, vendorID), &model)
		return err
	})
	if err != nil || !found {
		return domain.Shortlist{}, false, err
	}
	return shortlistFromModel(model), true, nil
}

func (s *GormStore) ListShortlists(ctx context.Context, userID string) ([]domain.Shortlist, error) {
	var models []ShortlistModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.Shortlist, 0, len(models))
	for _, m := range models {
		res = append(res, shortlistFromModel(m))
	}
	return res, nil
}

func (s *GormStore) CountShortlistsByVendor(ctx context.Context, vendorID string) (int, error) {
	var count int64
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Model(&ShortlistModel{}).Where("vendor_id = ?", vendorID).Count(&count).Error
	})
	return int(count), err
}

func (s *GormStore) CreateTask(ctx context.Context, t domain.Task) error {
	model := taskToModel(t)
	return s.run(ctx, func(db *gorm.DB) error { return db.Create(&model).Error })
}

func (s *GormStore) GetTask(ctx context.Context, id string) (domain.Task, bool, error) {
	var model TaskModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.Task{}, false, err
	}
	return taskFromModel(model), true, nil
}

// ListTasks returns a user's tasks, soonest due first; undated tasks last.
func (s *GormStore) ListTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	var models []TaskModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).
			Order("due_date ASC NULLS LAST").
			Order("created_at ASC").
			Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(models))
	for _, m := range models {
		res = append(res, taskFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateTask(ctx context.Context, t domain.Task) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&TaskModel{}).Where("id = ?", t.ID).Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"due_date":    t.DueDate,
			"status":      string(t.Status),
			"completed":   t.Completed,
			"updated_at":  t.UpdatedAt,
		}))
	})
}

func (s *GormStore) DeleteTask(ctx context.Context, id string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Delete(&TaskModel{}, "id = ?", id))
	})
}

func (s *GormStore) CreateTimelineEvent(ctx context.Context, e domain.TimelineEvent) error {
	model := timelineToModel(e)
	return s.run(ctx, func(db *gorm.DB) error { return db.Create(&model).Error })
}

func (s *GormStore) GetTimelineEvent(ctx context.Context, id string) (domain.TimelineEvent, bool, error) {
	var model TimelineEventModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.TimelineEvent{}, false, err
	}
	return timelineFromModel(model), true, nil
}

func (s *GormStore) ListTimelineEvents(ctx context.Context, userID string) ([]domain.TimelineEvent, error) {
	var models []TimelineEventModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("starts_at ASC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.TimelineEvent, 0, len(models))
	for _, m := range models {
		res = append(res, timelineFromModel(m))
	}
	return res, nil
}

func (s *GormStore) UpdateTimelineEvent(ctx context.Context, e domain.TimelineEvent) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&TimelineEventModel{}).Where("id = ?", e.ID).Updates(map[string]any{
			"title":       e.Title,
			"description": e.Description,
			"starts_at":   e.StartsAt,
			"ends_at":     e.EndsAt,
			"completed":   e.Completed,
			"updated_at":  e.UpdatedAt,
		}))
	})
}

func (s *GormStore) DeleteTimelineEvent(ctx context.Context, id string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Delete(&TimelineEventModel{}, "id = ?", id))
	})
}

func (s *GormStore) CreateCalendarEvent(ctx context.Context, e domain.CalendarEvent) error {
	model := calendarToModel(e)
	return s.run(ctx, func(db *gorm.DB) error { return db.Create(&model).Error })
}

func (s *GormStore) GetCalendarEvent(ctx context.Context, id string) (domain.CalendarEvent, bool, error) {
	var model CalendarEventModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.CalendarEvent{}, false, err
	}
	return calendarFromModel(model), true, nil
}

// ListCalendarEvents returns a vendor's events overlapping [from, to).
// Zero bounds are open.
func (s *GormStore) ListCalendarEvents(ctx context.Context, vendorID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	var models []CalendarEventModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		tx := db.Where("vendor_id = ?", vendorID)
		if !from.IsZero() {
			tx = tx.Where("ends_at > ?", from.UTC())
		}
		if !to.IsZero() {
			tx = tx.Where("starts_at < ?", to.UTC())
		}
		return tx.Order("starts_at ASC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.CalendarEvent, 0, len(models))
	for _, m := range models {
		res = append(res, calendarFromModel(m))
	}
	return res, nil
}

func (s *GormStore) DeleteCalendarEvent(ctx context.Context, id string) error {
	return s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Delete(&CalendarEventModel{}, "id = ?", id))
	})
}

// CreateReview inserts r and recomputes the vendor aggregate in one
// transaction holding the vendor row lock. The updated vendor is returned.
func (s *GormStore) CreateReview(ctx context.Context, r domain.Review) (domain.Vendor, error) {
	model := reviewToModel(r)
	var vendor VendorModel
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			found, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &vendor, "id = ?", r.VendorID)
			if err != nil {
				return err
			}
			if !found {
				return ErrNotFound
			}
			if !vendor.ReviewsEnabled {
				return ErrReviewsDisabled
			}
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			return recomputeRating(tx, &vendor)
		})
	})
	if err != nil {
		return domain.Vendor{}, err
	}
	return vendorFromModel(vendor), nil
}

func recomputeRating(tx *gorm.DB, vendor *VendorModel) error {
	var agg struct {
		Avg   float64
		Count int
	}
	if err := tx.Model(&ReviewModel{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS count").
		Where("vendor_id = ? AND status <> ?", vendor.ID, string(domain.ReviewRejected)).
		Scan(&agg).Error; err != nil {
		return err
	}
	vendor.Rating = RoundRating(agg.Avg)
	vendor.ReviewCount = agg.Count
	vendor.UpdatedAt = time.Now().UTC()
	return tx.Model(&VendorModel{}).Where("id = ?", vendor.ID).Updates(map[string]any{
		"rating":       vendor.Rating,
		"review_count": vendor.ReviewCount,
		"updated_at":   vendor.UpdatedAt,
	}).Error
}

func (s *GormStore) GetReview(ctx context.Context, id string) (domain.Review, bool, error) {
	var model ReviewModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// ListReviewsByVendor returns the vendor's non-rejected reviews, newest first.
func (s *GormStore) ListReviewsByVendor(ctx context.Context, vendorID string) ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("vendor_id = ? AND status <> ?", vendorID, string(domain.ReviewRejected)).
			Order("created_at DESC").
			Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

// SetReviewStatus moderates a review and recomputes the vendor aggregate.
func (s *GormStore) SetReviewStatus(ctx context.Context, id string, status domain.ReviewStatus) (domain.Review, error) {
	var review ReviewModel
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			found, err := first(tx, &review, "id = ?", id)
			if err != nil {
				return err
			}
			if !found {
				return ErrNotFound
			}
			var vendor VendorModel
			found, err = first(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &vendor, "id = ?", review.VendorID)
			if err != nil {
				return err
			}
			if !found {
				return ErrNotFound
			}
			review.Status = string(status)
			review.UpdatedAt = time.Now().UTC()
			if err := tx.Model(&ReviewModel{}).Where("id = ?", id).Updates(map[string]any{
				"status":     review.Status,
				"updated_at": review.UpdatedAt,
			}).Error; err != nil {
				return err
			}
			return recomputeRating(tx, &vendor)
		})
	})
	if err != nil {
		return domain.Review{}, err
	}
	return reviewFromModel(review), nil
}

// SetReviewReply sets or replaces the admin reply.
func (s *GormStore) SetReviewReply(ctx context.Context, id, reply string, at time.Time) (domain.Review, error) {
	var model ReviewModel
	err := s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&model).
			Clauses(clause.Returning{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"admin_reply":    reply,
				"admin_reply_at": at.UTC(),
				"updated_at":     at.UTC(),
			}))
	})
	if err != nil {
		return domain.Review{}, err
	}
	return reviewFromModel(model), nil
}

// OpenConversation returns the active conversation for the (host, provider,
// vendor) triple, creating it from c when none exists.
func (s *GormStore) OpenConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, bool, error) {
	model := conversationToModel(c)
	var existing ConversationModel
	var found bool
	lookup := func(db *gorm.DB) error {
		tx := db.Where("host_id = ? AND provider_id = ? AND status = ?", c.HostID, c.ProviderID, string(domain.ConversationActive))
		if strings.TrimSpace(c.VendorID) == "" {
			tx = tx.Where("vendor_id IS NULL")
		} else {
			tx = tx.Where("vendor_id = ?", c.VendorID)
		}
		var err error
		found, err = first(tx, &existing)
		return err
	}
	err := s.run(ctx, func(db *gorm.DB) error {
		if err := lookup(db); err != nil || found {
			return err
		}
		err := db.Create(&model).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent open
			if err := lookup(db); err != nil {
				return err
			}
			if found {
				return nil
			}
		}
		return err
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	if found {
		return conversationFromModel(existing), false, nil
	}
	return conversationFromModel(model), true, nil
}

func (s *GormStore) GetConversation(ctx context.Context, id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	var found bool
	err := s.run(ctx, func(db *gorm.DB) (err error) {
		found, err = first(db, &model, "id = ?", id)
		return err
	})
	if err != nil || !found {
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

// ListConversationsByUser returns conversations where the user is either
// party, most recently active first.
func (s *GormStore) ListConversationsByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	var models []ConversationModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("host_id = ? OR provider_id = ?", userID, userID).
			Order("last_message_at DESC NULLS LAST").
			Order("updated_at DESC").
			Find(&models).Error
	}); err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, m := range models {
		items = append(items, conversationFromModel(m))
	}
	return items, nil
}

// SetConversationStatus archives or reactivates a conversation. Reactivating
// while another active conversation holds the same triple is ErrConflict.
func (s *GormStore) SetConversationStatus(ctx context.Context, id string, status domain.ConversationStatus) (domain.Conversation, error) {
	var model ConversationModel
	err := s.run(ctx, func(db *gorm.DB) error {
		return affected(db.Model(&model).
			Clauses(clause.Returning{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":     string(status),
				"updated_at": time.Now().UTC(),
			}))
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return conversationFromModel(model), nil
}

func (s *GormStore) CountConversationsByVendor(ctx context.Context, vendorID string) (int, error) {
	var count int64
	err := s.run(ctx, func(db *gorm.DB) error {
		return db.Model(&ConversationModel{}).Where("vendor_id = ?", vendorID).Count(&count).Error
	})
	return int(count), err
}

// AppendMessage inserts msg and bumps the conversation's last-message and
// updated timestamps in the same transaction.
func (s *GormStore) AppendMessage(ctx context.Context, msg domain.Message) error {
	model := messageToModel(msg)
	return s.run(ctx, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&model).Error; err != nil {
				return err
			}
			return affected(tx.Model(&ConversationModel{}).
				Where("id = ?", msg.ConversationID).
				Updates(map[string]any{
					"last_message_at": msg.CreatedAt.UTC(),
					"updated_at":      msg.CreatedAt.UTC(),
				}))
		})
	})
}

// ListMessages returns a conversation's messages oldest first.
func (s *GormStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Where("conversation_id = ?", conversationID).
			Order("created_at ASC").
			Order("id ASC").
			Find(&models).Error
	}); err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// MarkMessagesRead flags unread messages not sent by readerID. It returns the
// number of messages changed.
func (s *GormStore) MarkMessagesRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	var n int64
	err := s.run(ctx, func(db *gorm.DB) error {
		res := db.Model(&MessageModel{}).
			Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
			Update("is_read", true)
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}

func (s *GormStore) CreateCampaign(ctx context.Context, c domain.Campaign) error {
	model := campaignToModel(c)
	return s.run(ctx, func(db *gorm.DB) error { return db.Create(&model).Error })
}

func (s *GormStore) ListCampaigns(ctx context.Context) ([]domain.Campaign, error) {
	var models []CampaignModel
	if err := s.run(ctx, func(db *gorm.DB) error {
		return db.Order("created_at DESC").Find(&models).Error
	}); err != nil {
		return nil, err
	}
	res := make([]domain.Campaign, 0, len(models))
	for _, m := range models {
		res = append(res, campaignFromModel(m))
	}
	return res, nil
}

var _ Store = (*GormStore)(nil)
