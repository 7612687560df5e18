package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"vendorhub/internal/ratelimit"
	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/store"
	"vendorhub/services/marketplace/internal/app"
	"vendorhub/services/marketplace/internal/security"
)

const (
	serviceName  = "marketplace"
	maxJSONBytes = 1 << 20
	rateWindow   = time.Minute
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Redis                    redis.UniversalClient
	CORSOrigins              []string
	TrustedProxyCIDRs        []string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	ReviewRateLimitPerMinute int
}

// Server exposes the marketplace REST API.
type Server struct {
	app           *app.App
	router        chi.Router
	trusted       *util.TrustedProxies
	corsOrigins   []string
	signupLimiter ratelimit.Limiter
	loginLimiter  ratelimit.Limiter
	reviewLimiter ratelimit.Limiter
	alerter       *security.Alerter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Redis == nil {
		return nil, errors.New("redis client required for rate limiting")
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	newLimiter := func(name string, limit, fallback int) (ratelimit.Limiter, error) {
		if limit <= 0 {
			limit = fallback
		}
		limiter, err := ratelimit.NewFixedWindowLimiter(cfg.Redis, "vendorhub:marketplace:ratelimit:"+name, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", cfg.SignupRateLimitPerMinute, 5)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", cfg.LoginRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	reviewLimiter, err := newLimiter("review", cfg.ReviewRateLimitPerMinute, 10)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:           cfg.App,
		trusted:       trusted,
		corsOrigins:   cfg.CORSOrigins,
		signupLimiter: signupLimiter,
		loginLimiter:  loginLimiter,
		reviewLimiter: reviewLimiter,
		alerter:       security.NewAlerter(cfg.Redis, "", nil),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(
		util.WithRequestID,
		util.WithRequestLog(serviceName),
		util.WithSecurityHeaders,
		util.WithCORS(s.corsOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	// auth
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Method(http.MethodPost, "/auth/logout", s.authenticated(s.handleLogout))
	r.Method(http.MethodGet, "/users/me", s.authenticated(s.handleMe))

	// catalog
	r.Get("/categories", s.handleListCategories)
	r.Get("/categories/{slug}", s.handleGetCategory)
	r.Method(http.MethodPost, "/categories", s.adminOnly(s.handleCreateCategory))

	r.Get("/vendors", s.handleSearchVendors)
	r.Method(http.MethodPost, "/vendors", s.authenticated(s.handleCreateVendor))
	r.Route("/vendors/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetVendor)
		r.Method(http.MethodPatch, "/", s.authenticated(s.handleUpdateVendor))
		r.Method(http.MethodDelete, "/", s.adminOnly(s.handleDeleteVendor))
		r.Method(http.MethodPut, "/subscription", s.authenticated(s.handleChangeSubscription))
		r.Get("/reviews", s.handleListReviews)
		r.Get("/photos", s.handleListPhotos)
		r.Method(http.MethodPost, "/photos", s.authenticated(s.handleUploadPhoto))
		r.Method(http.MethodDelete, "/photos/{photoId}", s.authenticated(s.handleDeletePhoto))
		r.Get("/calendar", s.handleListCalendar)
		r.Method(http.MethodPost, "/calendar", s.authenticated(s.handleCreateCalendarEvent))
		r.Method(http.MethodGet, "/analytics", s.authenticated(s.handleVendorAnalytics))
	})
	r.Method(http.MethodDelete, "/calendar-events/{id}", s.authenticated(s.handleDeleteCalendarEvent))

	// shortlists
	r.Method(http.MethodPost, "/shortlists", s.authenticated(s.handleAddShortlist))
	r.Method(http.MethodGet, "/shortlists", s.authenticated(s.handleListShortlists))
	r.Method(http.MethodGet, "/shortlists/{userId}/{vendorId}", s.authenticated(s.handleIsShortlisted))
	r.Method(http.MethodDelete, "/shortlists/{userId}/{vendorId}", s.authenticated(s.handleRemoveShortlist))

	// reviews
	r.Method(http.MethodPost, "/reviews", s.authenticated(s.handleCreateReview))
	r.Method(http.MethodPut, "/reviews/{id}/reply", s.adminOnly(s.handleReplyToReview))
	r.Method(http.MethodPatch, "/reviews/{id}/status", s.adminOnly(s.handleModerateReview))

	// planning
	r.Method(http.MethodGet, "/tasks", s.authenticated(s.handleListTasks))
	r.Method(http.MethodPost, "/tasks", s.authenticated(s.handleCreateTask))
	r.Method(http.MethodPatch, "/tasks/{id}", s.authenticated(s.handleUpdateTask))
	r.Method(http.MethodDelete, "/tasks/{id}", s.authenticated(s.handleDeleteTask))
	r.Method(http.MethodGet, "/timeline-events", s.authenticated(s.handleListTimeline))
	r.Method(http.MethodPost, "/timeline-events", s.authenticated(s.handleCreateTimelineEvent))
	r.Method(http.MethodPatch, "/timeline-events/{id}", s.authenticated(s.handleUpdateTimelineEvent))
	r.Method(http.MethodDelete, "/timeline-events/{id}", s.authenticated(s.handleDeleteTimelineEvent))

	// messaging
	r.Method(http.MethodGet, "/conversations", s.authenticated(s.handleListConversations))
	r.Method(http.MethodPost, "/conversations", s.authenticated(s.handleStartConversation))
	r.Method(http.MethodPatch, "/conversations/{id}", s.authenticated(s.handleUpdateConversation))
	r.Method(http.MethodGet, "/conversations/{id}/messages", s.authenticated(s.handleListMessages))
	r.Method(http.MethodPost, "/conversations/{id}/messages", s.authenticated(s.handleSendMessage))
	r.Method(http.MethodPost, "/conversations/{id}/read", s.authenticated(s.handleMarkRead))

	// admin
	r.Method(http.MethodPost, "/admin/campaigns", s.adminOnly(s.handleCreateCampaign))
	r.Method(http.MethodGet, "/admin/campaigns", s.adminOnly(s.handleListCampaigns))

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Ready(r.Context()); err != nil {
		util.LoggerFromContext(r.Context()).Warn("readiness check failed", "err", err)
		w.Header().Set("Retry-After", "5")
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authorize(r)
		if err != nil {
			s.audit(r, "marketplace.authorize", "fail")
			writeAppError(w, r, err)
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			s.audit(r, "marketplace.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, error) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, app.ErrUnauthorized
	}
	return s.app.UserFromToken(r.Context(), token)
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

type errorResponse struct {
	Error     string                  `json:"error"`
	Code      string                  `json:"code"`
	RequestID string                  `json:"requestId,omitempty"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, RequestID: util.RequestIDFromRequest(r)})
}

// writeAppError maps application and store errors to a status and a stable code.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:     "validation failed",
			Code:      "validation_failed",
			RequestID: util.RequestIDFromRequest(r),
			Fields:    verr.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, app.ErrUserDisabled):
		writeError(w, r, http.StatusForbidden, "user_disabled", "account disabled")
	case errors.Is(err, app.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, app.ErrReviewsDisabled):
		writeError(w, r, http.StatusForbidden, "reviews_disabled", "vendor's subscription tier does not accept reviews")
	case errors.Is(err, app.ErrPhotoLimit):
		writeError(w, r, http.StatusForbidden, "photo_limit_reached", "vendor's subscription tier photo limit reached")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, r, http.StatusConflict, "email_exists", "email already registered")
	case errors.Is(err, app.ErrSlugTaken):
		writeError(w, r, http.StatusConflict, "slug_taken", "category slug already in use")
	case errors.Is(err, app.ErrConversationArchived):
		writeError(w, r, http.StatusConflict, "conversation_archived", "conversation is archived")
	case errors.Is(err, app.ErrConversationConflict):
		writeError(w, r, http.StatusConflict, "conversation_conflict", "another active conversation exists")
	case errors.Is(err, store.ErrConflict):
		writeError(w, r, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, app.ErrNotificationsDisabled):
		writeError(w, r, http.StatusServiceUnavailable, "notifications_disabled", "notification queue not configured")
	case errors.Is(err, store.ErrUnavailable):
		util.LoggerFromContext(r.Context()).Warn("store unavailable", "err", err)
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable, retry")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decodeJSON reads a bounded JSON body into dst and reports a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes)).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	ip := util.ClientIP(r, s.trusted)
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", ip,
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)

	alert, err := s.alerter.Observe(r.Context(), event, outcome, ip)
	if err != nil {
		logger.Warn("security alert evaluation failed", "event", event, "err", err)
		return
	}
	if alert.Fired {
		logger.Error("security_alert",
			"event", event,
			"outcome", outcome,
			"ip", ip,
			"count", alert.Count,
			"window", alert.Rule.Window.String(),
		)
	}
}

// allowRate charges one attempt against key. Rejections answer 429 with
// Retry-After set to the rest of the window.
func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter, key, msg string) bool {
	ok, retryAfter := limiter.Allow(r.Context(), key)
	if ok {
		return true
	}
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, r, http.StatusTooManyRequests, "rate_limited", msg)
	return false
}

func (s *Server) ipKey(r *http.Request) string {
	return r.URL.Path + "|" + util.ClientIP(r, s.trusted)
}
