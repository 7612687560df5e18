package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vendorhub/internal/util"
	"vendorhub/pkg/analytics"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/events"
	"vendorhub/pkg/queue"
	"vendorhub/pkg/storage"
	"vendorhub/pkg/store"
)

// Config holds runtime configuration for the marketplace core.
type Config struct {
	DatabaseURL    string
	StoreOptions   []store.GormStoreOption
	Redis          redis.UniversalClient
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	JWTLeeway      time.Duration
	SessionTTL     time.Duration
	PhotoURLExpiry time.Duration
	MaxPhotoBytes  int64
	CampaignBatch  int
	Store          store.Store
	Sessions       store.SessionStore
	Objects        storage.ObjectStore
	Notifications  queue.Enqueuer
	Events         events.Publisher
	Views          analytics.ViewCounter
}

// App is the marketplace application service.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	objects        storage.ObjectStore
	notifications  queue.Enqueuer
	events         events.Publisher
	views          analytics.ViewCounter
	photoURLExpiry time.Duration
	maxPhotoBytes  int64
	campaignBatch  int
	now            func() time.Time
	closeStore     func() error
}

// New constructs the application. Dependencies left nil in cfg are built
// from the connection settings or fall back to process-local versions.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.PhotoURLExpiry <= 0 {
		cfg.PhotoURLExpiry = 15 * time.Minute
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = 10 << 20
	}
	if cfg.CampaignBatch <= 0 {
		cfg.CampaignBatch = 100
	}

	dataStore := cfg.Store
	var closeStore func() error
	if dataStore == nil {
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, errors.New("database URL required")
		}
		gs, err := store.NewGormStore(cfg.DatabaseURL, cfg.StoreOptions...)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		dataStore = gs
		closeStore = gs.Close
	}

	sessions := cfg.Sessions
	if sessions == nil {
		var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
		if cfg.Redis != nil {
			revoker = store.NewRedisTokenRevoker(cfg.Redis, "")
		}
		js, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessions = js
	}

	objects := cfg.Objects
	if objects == nil {
		objects = storage.NewMemoryStore("")
	}
	publisher := cfg.Events
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	views := cfg.Views
	if views == nil {
		if cfg.Redis != nil {
			rv, err := analytics.NewRedisViewCounter(cfg.Redis, "")
			if err != nil {
				return nil, fmt.Errorf("init view counter: %w", err)
			}
			views = rv
		} else {
			views = analytics.NewMemoryViewCounter()
		}
	}

	return &App{
		store:          dataStore,
		sessions:       sessions,
		objects:        objects,
		notifications:  cfg.Notifications,
		events:         publisher,
		views:          views,
		photoURLExpiry: cfg.PhotoURLExpiry,
		maxPhotoBytes:  cfg.MaxPhotoBytes,
		campaignBatch:  cfg.CampaignBatch,
		now:            func() time.Time { return time.Now().UTC() },
		closeStore:     closeStore,
	}, nil
}

// Close releases the database pool when New opened it. A store passed in
// through Config stays open; its owner closes it.
func (a *App) Close() error {
	if a.closeStore == nil {
		return nil
	}
	return a.closeStore()
}

// Ready reports whether the store answers.
func (a *App) Ready(ctx context.Context) error {
	if p, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// MaxPhotoBytes is the upload size cap.
func (a *App) MaxPhotoBytes() int64 { return a.maxPhotoBytes }

func (a *App) publish(ctx context.Context, eventType string, data any) {
	ev := events.New(eventType, data)
	if err := a.events.Publish(ctx, ev); err != nil {
		util.LoggerFromContext(ctx).Warn("publish event failed", "type", eventType, "event_id", ev.ID, "err", err)
	}
}

// storeErr translates store sentinels into app errors and wraps the rest.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrReviewsDisabled):
		return ErrReviewsDisabled
	case errors.Is(err, store.ErrPhotoLimit):
		return ErrPhotoLimit
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func isAdmin(u domain.User) bool { return u.Role == domain.RoleAdmin }

// canManageVendor reports whether actor may change v.
func canManageVendor(actor domain.User, v domain.Vendor) bool {
	return isAdmin(actor) || (v.OwnerID != "" && v.OwnerID == actor.ID)
}

func (a *App) managedVendor(ctx context.Context, actor domain.User, vendorID string) (domain.Vendor, error) {
	v, ok, err := a.store.GetVendor(ctx, vendorID)
	if err != nil {
		return domain.Vendor{}, storeErr("fetch vendor", err)
	}
	if !ok {
		return domain.Vendor{}, ErrNotFound
	}
	if !canManageVendor(actor, v) {
		return domain.Vendor{}, ErrForbidden
	}
	return v, nil
}
