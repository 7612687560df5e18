package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"vendorhub/internal/validation"
	"vendorhub/pkg/analytics"
	"vendorhub/pkg/domain"
	"vendorhub/pkg/events"
	"vendorhub/pkg/queue"
	"vendorhub/pkg/storage"
	"vendorhub/pkg/store"
)

const testPassword = "Sup3r-Secret!"

type recordingQueue struct {
	mu      sync.Mutex
	batches [][]queue.Notification
	err     error
}

func (q *recordingQueue) Enqueue(ctx context.Context, n queue.Notification) (queue.Job, error) {
	jobs, err := q.EnqueueBatch(ctx, []queue.Notification{n})
	if err != nil {
		return queue.Job{}, err
	}
	return jobs[0], nil
}

func (q *recordingQueue) EnqueueBatch(_ context.Context, ns []queue.Notification) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return nil, q.err
	}
	q.batches = append(q.batches, append([]queue.Notification(nil), ns...))
	jobs := make([]queue.Job, len(ns))
	for i, n := range ns {
		jobs[i] = queue.Job{ID: n.RecipientID, Notification: n, Status: queue.StatusQueued}
	}
	return jobs, nil
}

func (q *recordingQueue) all() []queue.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queue.Notification
	for _, b := range q.batches {
		out = append(out, b...)
	}
	return out
}

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	objects *storage.MemoryStore
	queue   *recordingQueue
	events  *events.Recorder
	admin   domain.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:   store.NewMemoryStore(),
		objects: storage.NewMemoryStore(""),
		queue:   &recordingQueue{},
		events:  events.NewRecorder(64),
	}
	a, err := New(Config{
		Store:         env.store,
		JWTSecret:     strings.Repeat("k", 32),
		Objects:       env.objects,
		Notifications: env.queue,
		Events:        env.events,
		Views:         analytics.NewMemoryViewCounter(),
		CampaignBatch: 2,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	env.app = a
	env.admin = env.signUp(t, "admin@example.com", "")
	if env.admin.Role != domain.RoleAdmin {
		t.Fatalf("first user role = %s, want admin", env.admin.Role)
	}
	return env
}

func (e *testEnv) signUp(t *testing.T, email, role string) domain.User {
	t.Helper()
	u, _, err := e.app.SignUp(context.Background(), SignUpInput{Email: email, Password: testPassword, Name: strings.Split(email, "@")[0], Role: role})
	if err != nil {
		t.Fatalf("sign up %s: %v", email, err)
	}
	return u
}

func (e *testEnv) category(t *testing.T, name string) domain.Category {
	t.Helper()
	c, err := e.app.CreateCategory(context.Background(), e.admin, CategoryInput{Name: name})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return c
}

func (e *testEnv) vendor(t *testing.T, owner domain.User, categoryID string, tier domain.SubscriptionTier) domain.Vendor {
	t.Helper()
	ctx := context.Background()
	v, err := e.app.CreateVendor(ctx, owner, VendorInput{Name: "Vendor of " + owner.Email, CategoryID: categoryID})
	if err != nil {
		t.Fatalf("create vendor: %v", err)
	}
	if tier != domain.TierFree {
		v, err = e.app.ChangeSubscription(ctx, owner, v.ID, SubscriptionInput{Tier: string(tier)})
		if err != nil {
			t.Fatalf("change subscription: %v", err)
		}
	}
	return v
}

func assertValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error on %s, got %v", field, err)
	}
	for _, f := range verr.Fields {
		if f.Field == field {
			return
		}
	}
	t.Fatalf("validation error does not mention %s: %+v", field, verr.Fields)
}

func TestSignUpLoginLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	host := env.signUp(t, "Host@Example.com ", "host")
	if host.Role != domain.RoleHost || host.Email != "host@example.com" {
		t.Fatalf("unexpected host: %+v", host)
	}
	if _, _, err := env.app.SignUp(ctx, SignUpInput{Email: "host@example.com", Password: testPassword}); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
	_, _, err := env.app.SignUp(ctx, SignUpInput{Email: "weak@example.com", Password: "password"})
	assertValidation(t, err, "password")
	_, _, err = env.app.SignUp(ctx, SignUpInput{Email: "bad@example.com", Password: testPassword, Role: "admin"})
	assertValidation(t, err, "role")

	if _, _, err := env.app.Login(ctx, "host@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	_, token, err := env.app.Login(ctx, "HOST@example.com", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	me, err := env.app.UserFromToken(ctx, token)
	if err != nil || me.ID != host.ID {
		t.Fatalf("user from token = %+v, %v", me, err)
	}
	if err := env.app.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.app.UserFromToken(ctx, token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revoked token to be unauthorized, got %v", err)
	}
}

func TestCategorySlugDerivedAndUnique(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.category(t, "Wedding Cakes & Desserts")
	if c.Slug != "wedding-cakes-desserts" {
		t.Fatalf("slug = %q", c.Slug)
	}
	if _, err := env.app.CreateCategory(ctx, env.admin, CategoryInput{Name: "Other", Slug: c.Slug}); !errors.Is(err, ErrSlugTaken) {
		t.Fatalf("expected ErrSlugTaken, got %v", err)
	}
	host := env.signUp(t, "host@example.com", "host")
	if _, err := env.app.CreateCategory(ctx, host, CategoryInput{Name: "Venues"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	got, err := env.app.GetCategoryBySlug(ctx, "Wedding-Cakes-Desserts")
	if err != nil || got.ID != c.ID {
		t.Fatalf("get by slug = %+v, %v", got, err)
	}
}

func TestVendorDescriptionLimitedByTierWordCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	cat := env.category(t, "Catering")
	v := env.vendor(t, provider, cat.ID, domain.TierFree)

	long := strings.TrimSpace(strings.Repeat("word ", 51))
	_, err := env.app.UpdateVendor(ctx, provider, v.ID, VendorPatch{Description: &long})
	assertValidation(t, err, "description")

	if _, err := env.app.ChangeSubscription(ctx, provider, v.ID, SubscriptionInput{Tier: "basic"}); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	updated, err := env.app.UpdateVendor(ctx, provider, v.ID, VendorPatch{Description: &long})
	if err != nil {
		t.Fatalf("update after upgrade: %v", err)
	}
	if updated.Description != long || updated.WordCount != 150 {
		t.Fatalf("unexpected vendor after update: %+v", updated)
	}

	other := env.signUp(t, "other@example.com", "provider")
	if _, err := env.app.UpdateVendor(ctx, other, v.ID, VendorPatch{Description: &long}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	host := env.signUp(t, "host@example.com", "host")
	if _, err := env.app.CreateVendor(ctx, host, VendorInput{Name: "x", CategoryID: cat.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected hosts to be unable to list vendors, got %v", err)
	}
	_, err = env.app.CreateVendor(ctx, provider, VendorInput{Name: "x", CategoryID: "missing"})
	assertValidation(t, err, "categoryId")
}

func TestChangeSubscriptionAppliesEntitlementsAndPublishes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Venues").ID, domain.TierFree)
	env.events.Drain()

	got, err := env.app.ChangeSubscription(ctx, provider, v.ID, SubscriptionInput{Tier: "Premium_Pro"})
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if got.SubscriptionTier != domain.TierPremiumPro || got.CataloguePages != 10 || got.PhotoLimit != 15 || !got.ReviewsEnabled {
		t.Fatalf("unexpected entitlements: %+v", got)
	}
	evs := env.events.Drain()
	if len(evs) != 1 || evs[0].Type != events.TypeSubscriptionChanged {
		t.Fatalf("expected one subscription event, got %+v", evs)
	}
	payload := evs[0].Data.(SubscriptionChanged)
	if payload.PreviousTier != domain.TierFree || payload.Tier != domain.TierPremiumPro {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	got, err = env.app.ChangeSubscription(ctx, env.admin, v.ID, SubscriptionInput{Tier: "premium", Status: "cancelled"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.SubscriptionTier != domain.TierFree || got.CataloguePages != 0 || got.SubscriptionStatus != domain.SubscriptionCanceled {
		t.Fatalf("cancel did not reset to free: %+v", got)
	}
	_, err = env.app.ChangeSubscription(ctx, provider, v.ID, SubscriptionInput{Tier: "gold"})
	assertValidation(t, err, "tier")
}

func TestCreateReviewGatedAndAggregated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	cat := env.category(t, "Photographers")
	basic := env.vendor(t, provider, cat.ID, domain.TierBasic)
	premium := env.vendor(t, provider, cat.ID, domain.TierPremium)
	host := env.signUp(t, "host@example.com", "host")

	_, _, err := env.app.CreateReview(ctx, host, ReviewInput{VendorID: basic.ID, Rating: 5, ReviewText: "great"})
	if !errors.Is(err, ErrReviewsDisabled) {
		t.Fatalf("expected ErrReviewsDisabled, got %v", err)
	}
	after, _, _ := env.store.GetVendor(ctx, basic.ID)
	if after.Rating != 0 || after.ReviewCount != 0 {
		t.Fatalf("rejected review changed vendor: %+v", after)
	}

	var last domain.Vendor
	for _, rating := range []int{5, 4, 3} {
		_, v, err := env.app.CreateReview(ctx, host, ReviewInput{VendorID: premium.ID, Rating: rating, ReviewText: "lovely service"})
		if err != nil {
			t.Fatalf("create review: %v", err)
		}
		last = v
	}
	if last.Rating != 4.0 || last.ReviewCount != 3 {
		t.Fatalf("aggregate = %v/%d, want 4.0/3", last.Rating, last.ReviewCount)
	}

	_, _, err = env.app.CreateReview(ctx, host, ReviewInput{VendorID: premium.ID, Rating: 4, ReviewText: strings.Repeat("word ", 121)})
	assertValidation(t, err, "reviewText")
	_, _, err = env.app.CreateReview(ctx, host, ReviewInput{VendorID: premium.ID, Rating: 6, ReviewText: "too good"})
	assertValidation(t, err, "rating")
	if _, _, err := env.app.CreateReview(ctx, host, ReviewInput{VendorID: "missing", Rating: 4, ReviewText: "ok"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := env.app.CreateReview(ctx, host, ReviewInput{UserID: provider.ID, VendorID: premium.ID, Rating: 4, ReviewText: "ok"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden when posting as someone else, got %v", err)
	}

	created := 0
	for _, ev := range env.events.Drain() {
		if ev.Type == events.TypeReviewCreated {
			created++
		}
	}
	if created != 3 {
		t.Fatalf("review.created events = %d, want 3", created)
	}
}

func TestModerationAndReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Florists").ID, domain.TierPremium)
	host := env.signUp(t, "host@example.com", "host")

	var ids []string
	for _, rating := range []int{5, 4, 3} {
		r, _, err := env.app.CreateReview(ctx, host, ReviewInput{VendorID: v.ID, Rating: rating, ReviewText: "fine"})
		if err != nil {
			t.Fatalf("create review: %v", err)
		}
		ids = append(ids, r.ID)
	}
	if _, err := env.app.ModerateReview(ctx, host, ids[2], ModerationInput{Status: "rejected"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for host moderation, got %v", err)
	}
	if _, err := env.app.ModerateReview(ctx, env.admin, ids[2], ModerationInput{Status: "rejected"}); err != nil {
		t.Fatalf("moderate: %v", err)
	}
	got, _, _ := env.store.GetVendor(ctx, v.ID)
	if got.Rating != 4.5 || got.ReviewCount != 2 {
		t.Fatalf("aggregate after rejection = %v/%d, want 4.5/2", got.Rating, got.ReviewCount)
	}
	if n := len(env.app.ListReviews(ctx, v.ID)); n != 2 {
		t.Fatalf("listed reviews = %d, want 2", n)
	}

	_, err := env.app.ReplyToReview(ctx, env.admin, ids[0], ReplyInput{Reply: "   "})
	assertValidation(t, err, "reply")
	r, err := env.app.ReplyToReview(ctx, env.admin, ids[0], ReplyInput{Reply: "Thank you!"})
	if err != nil || r.AdminReply != "Thank you!" || r.AdminReplyAt == nil {
		t.Fatalf("reply = %+v, %v", r, err)
	}
}

type failingSearchStore struct {
	store.Store
}

func (failingSearchStore) SearchVendors(context.Context, store.VendorQuery) ([]domain.Vendor, error) {
	return nil, store.ErrUnavailable
}

func TestSearchVendorsReturnsEmptyOnStoreFailure(t *testing.T) {
	a, err := New(Config{Store: failingSearchStore{Store: store.NewMemoryStore()}, JWTSecret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	got, err := a.SearchVendors(context.Background(), store.VendorQuery{Search: "cake"})
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("search = %v, %v; want empty slice", got, err)
	}
	_, err = a.SearchVendors(context.Background(), store.VendorQuery{PriceRange: "cheap"})
	assertValidation(t, err, "priceRange")
}

func TestShortlistIdempotentAndOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Bands").ID, domain.TierFree)
	host := env.signUp(t, "host@example.com", "host")

	first, created, err := env.app.AddShortlist(ctx, host, ShortlistInput{VendorID: v.ID})
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	second, created, err := env.app.AddShortlist(ctx, host, ShortlistInput{UserID: host.ID, VendorID: v.ID})
	if err != nil || created || second.ID != first.ID {
		t.Fatalf("second add should return existing entry: %+v created=%v err=%v", second, created, err)
	}
	items, _ := env.app.ListShortlists(ctx, host)
	if len(items) != 1 {
		t.Fatalf("shortlist size = %d, want 1", len(items))
	}
	if _, _, err := env.app.AddShortlist(ctx, host, ShortlistInput{UserID: provider.ID, VendorID: v.ID}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, _, err := env.app.AddShortlist(ctx, host, ShortlistInput{VendorID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown vendor, got %v", err)
	}

	if ok, _ := env.app.IsShortlisted(ctx, host, host.ID, v.ID); !ok {
		t.Fatalf("expected vendor to be shortlisted")
	}
	if err := env.app.RemoveShortlist(ctx, host, host.ID, v.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := env.app.RemoveShortlist(ctx, host, host.ID, v.ID); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}
	if ok, _ := env.app.IsShortlisted(ctx, host, host.ID, v.ID); ok {
		t.Fatalf("expected vendor to be removed")
	}
}

func TestMessagingFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "DJs").ID, domain.TierFree)
	host := env.signUp(t, "host@example.com", "host")
	stranger := env.signUp(t, "stranger@example.com", "host")

	conv, created, err := env.app.StartConversation(ctx, host, ConversationInput{VendorID: v.ID})
	if err != nil || !created {
		t.Fatalf("start: created=%v err=%v", created, err)
	}
	if conv.ProviderID != provider.ID || conv.HostID != host.ID {
		t.Fatalf("participants not resolved: %+v", conv)
	}
	again, created, err := env.app.StartConversation(ctx, host, ConversationInput{ProviderID: provider.ID, VendorID: v.ID})
	if err != nil || created || again.ID != conv.ID {
		t.Fatalf("expected existing conversation, got %+v created=%v err=%v", again, created, err)
	}

	if _, err := env.app.SendMessage(ctx, host, conv.ID, MessageInput{Content: "Are you free on June 5?"}); err != nil {
		t.Fatalf("host send: %v", err)
	}
	if _, err := env.app.SendMessage(ctx, provider, conv.ID, MessageInput{Content: "Yes!"}); err != nil {
		t.Fatalf("provider send: %v", err)
	}
	if _, err := env.app.SendMessage(ctx, stranger, conv.ID, MessageInput{Content: "hi"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-participant, got %v", err)
	}

	notes := env.queue.all()
	if len(notes) != 2 || notes[0].RecipientID != provider.ID || notes[1].Address != "host@example.com" {
		t.Fatalf("unexpected notifications: %+v", notes)
	}

	n, err := env.app.MarkRead(ctx, host, conv.ID)
	if err != nil || n != 1 {
		t.Fatalf("mark read = %d, %v; want 1", n, err)
	}
	msgs, _ := env.app.ListMessages(ctx, host, conv.ID)
	if len(msgs) != 2 || msgs[0].IsRead || !msgs[1].IsRead {
		t.Fatalf("only the provider's message should be read: %+v", msgs)
	}

	if _, err := env.app.SetConversationStatus(ctx, host, conv.ID, ConversationPatch{Status: "archived"}); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := env.app.SendMessage(ctx, host, conv.ID, MessageInput{Content: "still there?"}); !errors.Is(err, ErrConversationArchived) {
		t.Fatalf("expected ErrConversationArchived, got %v", err)
	}
	fresh, created, err := env.app.StartConversation(ctx, host, ConversationInput{VendorID: v.ID})
	if err != nil || !created || fresh.ID == conv.ID {
		t.Fatalf("expected a new conversation after archiving: %+v created=%v err=%v", fresh, created, err)
	}
	if _, err := env.app.SetConversationStatus(ctx, host, conv.ID, ConversationPatch{Status: "active"}); !errors.Is(err, ErrConversationConflict) {
		t.Fatalf("expected ErrConversationConflict, got %v", err)
	}

	_, _, err = env.app.StartConversation(ctx, host, ConversationInput{ProviderID: stranger.ID})
	assertValidation(t, err, "providerId")
}

func TestUploadPhotoRespectsTierLimit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Decor").ID, domain.TierFree)

	upload := func() (domain.VendorPhoto, error) {
		return env.app.UploadPhoto(ctx, provider, v.ID, PhotoUpload{Reader: strings.NewReader("img"), Size: 3, ContentType: "image/png"})
	}
	p, err := upload()
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if p.URL == "" {
		t.Fatalf("expected presigned url")
	}
	if _, _, ok := env.objects.Get(p.StorageKey); !ok {
		t.Fatalf("object %s not stored", p.StorageKey)
	}
	if _, err := upload(); !errors.Is(err, ErrPhotoLimit) {
		t.Fatalf("expected ErrPhotoLimit on free tier, got %v", err)
	}
	_, err = env.app.UploadPhoto(ctx, provider, v.ID, PhotoUpload{Reader: strings.NewReader("%PDF"), Size: 4, ContentType: "application/pdf"})
	assertValidation(t, err, "file")

	if err := env.app.DeletePhoto(ctx, provider, v.ID, p.ID); err != nil {
		t.Fatalf("delete photo: %v", err)
	}
	if _, _, ok := env.objects.Get(p.StorageKey); ok {
		t.Fatalf("object should be removed with the photo")
	}
	if _, err := upload(); err != nil {
		t.Fatalf("upload after delete: %v", err)
	}
}

func TestTaskStatusAndCompletedStayInStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.signUp(t, "host@example.com", "host")
	other := env.signUp(t, "other@example.com", "host")

	task, err := env.app.CreateTask(ctx, host, TaskInput{Title: "Book venue"})
	if err != nil || task.Status != domain.TaskTodo || task.Completed {
		t.Fatalf("create = %+v, %v", task, err)
	}
	done := true
	task, err = env.app.UpdateTask(ctx, host, task.ID, TaskPatch{Completed: &done})
	if err != nil || task.Status != domain.TaskDone || !task.Completed {
		t.Fatalf("complete = %+v, %v", task, err)
	}
	status := "in_progress"
	task, err = env.app.UpdateTask(ctx, host, task.ID, TaskPatch{Status: &status})
	if err != nil || task.Completed {
		t.Fatalf("reopen = %+v, %v", task, err)
	}
	if _, err := env.app.UpdateTask(ctx, other, task.ID, TaskPatch{Completed: &done}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected other users' tasks to be hidden, got %v", err)
	}
	if err := env.app.DeleteTask(ctx, host, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestTimelineAndCalendarWindows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	host := env.signUp(t, "host@example.com", "host")
	start := time.Date(2026, 6, 5, 15, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	_, err := env.app.CreateTimelineEvent(ctx, host, TimelineInput{Title: "Ceremony", StartsAt: start, EndsAt: &before})
	assertValidation(t, err, "endsAt")
	ev, err := env.app.CreateTimelineEvent(ctx, host, TimelineInput{Title: "Ceremony", StartsAt: start})
	if err != nil {
		t.Fatalf("create timeline event: %v", err)
	}
	finished := true
	ev, err = env.app.UpdateTimelineEvent(ctx, host, ev.ID, TimelinePatch{Completed: &finished})
	if err != nil || !ev.Completed {
		t.Fatalf("update timeline = %+v, %v", ev, err)
	}

	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Venues").ID, domain.TierFree)
	_, err = env.app.CreateCalendarEvent(ctx, provider, v.ID, CalendarInput{StartsAt: start, EndsAt: before})
	assertValidation(t, err, "endsAt")
	booked, err := env.app.CreateCalendarEvent(ctx, provider, v.ID, CalendarInput{Title: "Smith wedding", StartsAt: start, EndsAt: start.Add(4 * time.Hour), Status: "booked"})
	if err != nil {
		t.Fatalf("create calendar event: %v", err)
	}
	if _, err := env.app.CreateCalendarEvent(ctx, host, v.ID, CalendarInput{StartsAt: start, EndsAt: start.Add(time.Hour)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}
	items, err := env.app.ListCalendar(ctx, v.ID, start.Add(time.Hour), start.Add(2*time.Hour))
	if err != nil || len(items) != 1 || items[0].ID != booked.ID {
		t.Fatalf("calendar = %+v, %v", items, err)
	}
	if _, err := env.app.ListCalendar(ctx, v.ID, start, before); err == nil {
		t.Fatalf("expected inverted range to fail")
	}
	if err := env.app.DeleteCalendarEvent(ctx, provider, booked.ID); err != nil {
		t.Fatalf("delete calendar event: %v", err)
	}
}

func TestVendorAnalyticsDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	provider := env.signUp(t, "pro@example.com", "provider")
	v := env.vendor(t, provider, env.category(t, "Cakes").ID, domain.TierPro)
	host := env.signUp(t, "host@example.com", "host")

	for i := 0; i < 3; i++ {
		if _, err := env.app.GetVendor(ctx, v.ID); err != nil {
			t.Fatalf("get vendor: %v", err)
		}
	}
	if _, _, err := env.app.AddShortlist(ctx, host, ShortlistInput{VendorID: v.ID}); err != nil {
		t.Fatalf("shortlist: %v", err)
	}
	if _, _, err := env.app.StartConversation(ctx, host, ConversationInput{VendorID: v.ID}); err != nil {
		t.Fatalf("conversation: %v", err)
	}

	dash, err := env.app.VendorAnalytics(ctx, provider, v.ID, 7)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	if dash.ProfileViews != 3 || dash.ShortlistCount != 1 || dash.ConversationCount != 1 || dash.PhotoLimit != 8 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
	if len(dash.DailyViews) != 7 || dash.DailyViews[6].Views != 3 {
		t.Fatalf("unexpected daily views: %+v", dash.DailyViews)
	}
	if _, err := env.app.VendorAnalytics(ctx, host, v.ID, 7); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateCampaignQueuesInBatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		env.signUp(t, email, "host")
	}
	env.signUp(t, "p@example.com", "provider")

	c, err := env.app.CreateCampaign(ctx, env.admin, CampaignInput{Channel: "email", Subject: "Spring offers", Body: "10% off", Role: "host"})
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if c.RecipientCount != 3 {
		t.Fatalf("recipients = %d, want 3", c.RecipientCount)
	}
	if len(env.queue.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(env.queue.batches))
	}
	for _, n := range env.queue.all() {
		if n.CampaignID != c.ID || n.Kind != queue.KindCampaign {
			t.Fatalf("unexpected notification: %+v", n)
		}
	}
	_, err = env.app.CreateCampaign(ctx, env.admin, CampaignInput{Channel: "email", Body: "no subject"})
	assertValidation(t, err, "subject")

	host := env.signUp(t, "d@example.com", "host")
	if _, err := env.app.CreateCampaign(ctx, host, CampaignInput{Channel: "sms", Body: "hi"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	list, err := env.app.ListCampaigns(ctx, env.admin)
	if err != nil || len(list) != 1 {
		t.Fatalf("campaigns = %+v, %v", list, err)
	}
}

type closeCountingStore struct {
	*store.MemoryStore
	closed int
}

func (s *closeCountingStore) Close() error {
	s.closed++
	return nil
}

func TestCloseLeavesInjectedStoreOpen(t *testing.T) {
	st := &closeCountingStore{MemoryStore: store.NewMemoryStore()}
	a, err := New(Config{Store: st, JWTSecret: strings.Repeat("k", 32)})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st.closed != 0 {
		t.Fatalf("injected store closed %d times, want 0", st.closed)
	}
}

func TestCloseReleasesOwnedStore(t *testing.T) {
	st := &closeCountingStore{MemoryStore: store.NewMemoryStore()}
	a := &App{store: st, closeStore: st.Close}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if st.closed != 1 {
		t.Fatalf("owned store closed %d times, want 1", st.closed)
	}
}
