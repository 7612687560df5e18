package store

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"vendorhub/pkg/domain"
	"vendorhub/pkg/entitlement"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]domain.User
	categories    map[string]domain.Category
	vendors       map[string]domain.Vendor
	photos        map[string]domain.VendorPhoto
	shortlists    map[string]domain.Shortlist
	tasks         map[string]domain.Task
	timeline      map[string]domain.TimelineEvent
	calendar      map[string]domain.CalendarEvent
	reviews       map[string]domain.Review
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message
	campaigns     []domain.Campaign
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]domain.User),
		categories:    make(map[string]domain.Category),
		vendors:       make(map[string]domain.Vendor),
		photos:        make(map[string]domain.VendorPhoto),
		shortlists:    make(map[string]domain.Shortlist),
		tasks:         make(map[string]domain.Task),
		timeline:      make(map[string]domain.TimelineEvent),
		calendar:      make(map[string]domain.CalendarEvent),
		reviews:       make(map[string]domain.Review),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
	}
}

func shortlistKey(userID, vendorID string) string {
	return userID + "\x00" + vendorID
}

func cloneVendor(v domain.Vendor) domain.Vendor {
	v.DietaryOptions = slices.Clone(v.DietaryOptions)
	v.CuisineTypes = slices.Clone(v.CuisineTypes)
	v.ThemeTypes = slices.Clone(v.ThemeTypes)
	return v
}

func (s *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrConflict
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (domain.User, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok, nil
}

func (s *MemoryStore) ListUsers(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if u.Status != domain.StatusActive {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) UserCount(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, c domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.categories {
		if existing.Slug == c.Slug {
			return ErrConflict
		}
	}
	s.categories[c.ID] = c
	return nil
}

func (s *MemoryStore) ListCategories(context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetCategory(_ context.Context, id string) (domain.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	return c, ok, nil
}

func (s *MemoryStore) GetCategoryBySlug(_ context.Context, slug string) (domain.Category, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.categories {
		if c.Slug == slug {
			return c, true, nil
		}
	}
	return domain.Category{}, false, nil
}

func (s *MemoryStore) CreateVendor(_ context.Context, v domain.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendors[v.ID]; ok {
		return ErrConflict
	}
	entitlement.Apply(&v, v.SubscriptionTier, v.SubscriptionStatus)
	s.vendors[v.ID] = cloneVendor(v)
	return nil
}

func (s *MemoryStore) UpdateVendorProfile(_ context.Context, v domain.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vendors[v.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = v.Name
	cur.Description = v.Description
	cur.ImageURL = v.ImageURL
	cur.LogoURL = v.LogoURL
	cur.CategoryID = v.CategoryID
	cur.PriceRange = v.PriceRange
	cur.Location = v.Location
	cur.DietaryOptions = v.DietaryOptions
	cur.CuisineTypes = v.CuisineTypes
	cur.ThemeTypes = v.ThemeTypes
	cur.UpdatedAt = time.Now().UTC()
	s.vendors[v.ID] = cloneVendor(cur)
	return nil
}

func (s *MemoryStore) GetVendor(_ context.Context, id string) (domain.Vendor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	return cloneVendor(v), ok, nil
}

func (s *MemoryStore) DeleteVendor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendors[id]; !ok {
		return ErrNotFound
	}
	delete(s.vendors, id)
	for k, p := range s.photos {
		if p.VendorID == id {
			delete(s.photos, k)
		}
	}
	for k, sl := range s.shortlists {
		if sl.VendorID == id {
			delete(s.shortlists, k)
		}
	}
	for k, r := range s.reviews {
		if r.VendorID == id {
			delete(s.reviews, k)
		}
	}
	for k, e := range s.calendar {
		if e.VendorID == id {
			delete(s.calendar, k)
		}
	}
	for k, c := range s.conversations {
		if c.VendorID == id {
			c.VendorID = ""
			s.conversations[k] = c
		}
	}
	return nil
}

func (s *MemoryStore) SearchVendors(_ context.Context, q VendorQuery) ([]domain.Vendor, error) {
	q = q.Normalize()
	s.mu.RLock()
	matched := make([]domain.Vendor, 0, len(s.vendors))
	for _, v := range s.vendors {
		if q.Matches(v) {
			matched = append(matched, cloneVendor(v))
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(matched, CompareVendors)
	offset := q.Offset()
	if offset < 0 || offset >= len(matched) {
		return []domain.Vendor{}, nil
	}
	end := offset + min(q.Limit, len(matched)-offset)
	return matched[offset:end], nil
}

func (s *MemoryStore) UpdateSubscription(_ context.Context, vendorID string, tier domain.SubscriptionTier, status domain.SubscriptionStatus) (domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[vendorID]
	if !ok {
		return domain.Vendor{}, ErrNotFound
	}
	entitlement.Apply(&v, tier, status)
	v.UpdatedAt = time.Now().UTC()
	s.vendors[vendorID] = v
	return cloneVendor(v), nil
}

func (s *MemoryStore) AddVendorPhoto(_ context.Context, p domain.VendorPhoto) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[p.VendorID]
	if !ok {
		return ErrNotFound
	}
	count := 0
	for _, existing := range s.photos {
		if existing.VendorID == p.VendorID {
			count++
		}
	}
	if count >= v.PhotoLimit {
		return ErrPhotoLimit
	}
	s.photos[p.ID] = p
	return nil
}

func (s *MemoryStore) GetVendorPhoto(_ context.Context, id string) (domain.VendorPhoto, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.photos[id]
	return p, ok, nil
}

func (s *MemoryStore) ListVendorPhotos(_ context.Context, vendorID string) ([]domain.VendorPhoto, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.VendorPhoto{}
	for _, p := range s.photos {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) DeleteVendorPhoto(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.photos[id]; !ok {
		return ErrNotFound
	}
	delete(s.photos, id)
	return nil
}

func (s *MemoryStore) AddShortlist(_ context.Context, item domain.Shortlist) (domain.Shortlist, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := shortlistKey(item.UserID, item.VendorID)
	if existing, ok := s.shortlists[key]; ok {
		return existing, false, nil
	}
	if _, ok := s.vendors[item.VendorID]; !ok {
		return domain.Shortlist{}, false, ErrNotFound
	}
	s.shortlists[key] = item
	return item, true, nil
}

func (s *MemoryStore) RemoveShortlist(_ context.Context, userID, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.shortlists, shortlistKey(userID, vendorID))
	return nil
}

func (s *MemoryStore) GetShortlist(_ context.Context, userID, vendorID string) (domain.Shortlist, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.shortlists[shortlistKey(userID, vendorID)]
	return item, ok, nil
}

func (s *MemoryStore) ListShortlists(_ context.Context, userID string) ([]domain.Shortlist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Shortlist{}
	for _, item := range s.shortlists {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountShortlistsByVendor(_ context.Context, vendorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, item := range s.shortlists {
		if item.VendorID == vendorID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (domain.Task, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, userID string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Task{}
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DueDate, out[j].DueDate
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) UpdateTask(_ context.Context, t domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	s.tasks[t.ID] = t
	return nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *MemoryStore) CreateTimelineEvent(_ context.Context, e domain.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline[e.ID] = e
	return nil
}

func (s *MemoryStore) GetTimelineEvent(_ context.Context, id string) (domain.TimelineEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.timeline[id]
	return e, ok, nil
}

func (s *MemoryStore) ListTimelineEvents(_ context.Context, userID string) ([]domain.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.TimelineEvent{}
	for _, e := range s.timeline {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *MemoryStore) UpdateTimelineEvent(_ context.Context, e domain.TimelineEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timeline[e.ID]; !ok {
		return ErrNotFound
	}
	s.timeline[e.ID] = e
	return nil
}

func (s *MemoryStore) DeleteTimelineEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timeline[id]; !ok {
		return ErrNotFound
	}
	delete(s.timeline, id)
	return nil
}

func (s *MemoryStore) CreateCalendarEvent(_ context.Context, e domain.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendors[e.VendorID]; !ok {
		return ErrNotFound
	}
	s.calendar[e.ID] = e
	return nil
}

func (s *MemoryStore) GetCalendarEvent(_ context.Context, id string) (domain.CalendarEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.calendar[id]
	return e, ok, nil
}

func (s *MemoryStore) ListCalendarEvents(_ context.Context, vendorID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.CalendarEvent{}
	for _, e := range s.calendar {
		if e.VendorID != vendorID {
			continue
		}
		if !from.IsZero() && !e.EndsAt.After(from) {
			continue
		}
		if !to.IsZero() && !e.StartsAt.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (s *MemoryStore) DeleteCalendarEvent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calendar[id]; !ok {
		return ErrNotFound
	}
	delete(s.calendar, id)
	return nil
}

func (s *MemoryStore) CreateReview(_ context.Context, r domain.Review) (domain.Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[r.VendorID]
	if !ok {
		return domain.Vendor{}, ErrNotFound
	}
	if !v.ReviewsEnabled {
		return domain.Vendor{}, ErrReviewsDisabled
	}
	s.reviews[r.ID] = r
	v = s.recomputeLocked(v)
	return cloneVendor(v), nil
}

func (s *MemoryStore) recomputeLocked(v domain.Vendor) domain.Vendor {
	var reviews []domain.Review
	for _, r := range s.reviews {
		if r.VendorID == v.ID {
			reviews = append(reviews, r)
		}
	}
	v.Rating, v.ReviewCount = Aggregate(reviews)
	v.UpdatedAt = time.Now().UTC()
	s.vendors[v.ID] = v
	return v
}

func (s *MemoryStore) GetReview(_ context.Context, id string) (domain.Review, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	return r, ok, nil
}

func (s *MemoryStore) ListReviewsByVendor(_ context.Context, vendorID string) ([]domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Review{}
	for _, r := range s.reviews {
		if r.VendorID == vendorID && r.Status != domain.ReviewRejected {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SetReviewStatus(_ context.Context, id string, status domain.ReviewStatus) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	s.reviews[id] = r
	if v, ok := s.vendors[r.VendorID]; ok {
		s.recomputeLocked(v)
	}
	return r, nil
}

func (s *MemoryStore) SetReviewReply(_ context.Context, id, reply string, at time.Time) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, ErrNotFound
	}
	at = at.UTC()
	r.AdminReply = reply
	r.AdminReplyAt = &at
	r.UpdatedAt = at
	s.reviews[id] = r
	return r, nil
}

func (s *MemoryStore) OpenConversation(_ context.Context, c domain.Conversation) (domain.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.conversations {
		if existing.Status == domain.ConversationActive &&
			existing.HostID == c.HostID &&
			existing.ProviderID == c.ProviderID &&
			existing.VendorID == c.VendorID {
			return existing, false, nil
		}
	}
	s.conversations[c.ID] = c
	return c, true, nil
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (domain.Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return c, ok, nil
}

func (s *MemoryStore) ListConversationsByUser(_ context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Conversation{}
	for _, c := range s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessageAt, out[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s *MemoryStore) SetConversationStatus(_ context.Context, id string, status domain.ConversationStatus) (domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		return domain.Conversation{}, ErrNotFound
	}
	if status == domain.ConversationActive && c.Status != domain.ConversationActive {
		for _, other := range s.conversations {
			if other.ID != id && other.Status == domain.ConversationActive &&
				other.HostID == c.HostID && other.ProviderID == c.ProviderID && other.VendorID == c.VendorID {
				return domain.Conversation{}, ErrConflict
			}
		}
	}
	c.Status = status
	c.UpdatedAt = time.Now().UTC()
	s.conversations[id] = c
	return c, nil
}

func (s *MemoryStore) CountConversationsByVendor(_ context.Context, vendorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.conversations {
		if c.VendorID == vendorID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	at := msg.CreatedAt.UTC()
	c.LastMessageAt = &at
	c.UpdatedAt = at
	s.conversations[c.ID] = c
	s.messages[c.ID] = append(s.messages[c.ID], msg)
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.messages[conversationID])
	if out == nil {
		out = []domain.Message{}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) MarkMessagesRead(_ context.Context, conversationID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	msgs := s.messages[conversationID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CreateCampaign(_ context.Context, c domain.Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = append(s.campaigns, c)
	return nil
}

func (s *MemoryStore) ListCampaigns(context.Context) ([]domain.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.campaigns)
	slices.Reverse(out)
	if out == nil {
		out = []domain.Campaign{}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
