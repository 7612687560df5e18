package app

import (
	"context"
	"strings"
	"time"

	"vendorhub/internal/util"
	"vendorhub/internal/validation"
	"vendorhub/pkg/domain"
)

type TaskInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueDate     *time.Time `json:"dueDate"`
	Status      string     `json:"status" validate:"omitempty,oneof=todo in_progress done"`
}

type TaskPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"dueDate"`
	Status      *string    `json:"status" validate:"omitempty,oneof=todo in_progress done"`
	Completed   *bool      `json:"completed"`
}

func (a *App) CreateTask(ctx context.Context, actor domain.User, in TaskInput) (domain.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return domain.Task{}, err
	}
	now := a.now()
	t := domain.Task{
		ID:          util.NewID(),
		UserID:      actor.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		DueDate:     utcPtr(in.DueDate),
		Status:      domain.TaskTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Status != "" {
		t.Status = domain.TaskStatus(in.Status)
	}
	t.Completed = t.Status == domain.TaskDone
	if err := a.store.CreateTask(ctx, t); err != nil {
		return domain.Task{}, storeErr("create task", err)
	}
	return t, nil
}

func (a *App) ListTasks(ctx context.Context, actor domain.User) ([]domain.Task, error) {
	items, err := a.store.ListTasks(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return items, nil
}

// UpdateTask applies a patch. Status and Completed stay in step: completing a
// task sets status done, reopening one sets it back to todo.
func (a *App) UpdateTask(ctx context.Context, actor domain.User, id string, patch TaskPatch) (domain.Task, error) {
	if err := validation.Struct(patch); err != nil {
		return domain.Task{}, err
	}
	t, err := a.ownedTask(ctx, actor, id)
	if err != nil {
		return domain.Task{}, err
	}
	setTrimmed(&t.Title, patch.Title)
	setTrimmed(&t.Description, patch.Description)
	if patch.DueDate != nil {
		t.DueDate = utcPtr(patch.DueDate)
	}
	if patch.Status != nil {
		t.Status = domain.TaskStatus(*patch.Status)
	}
	if patch.Completed != nil {
		switch {
		case *patch.Completed:
			t.Status = domain.TaskDone
		case t.Status == domain.TaskDone:
			t.Status = domain.TaskTodo
		}
	}
	t.Completed = t.Status == domain.TaskDone
	t.UpdatedAt = a.now()
	if err := a.store.UpdateTask(ctx, t); err != nil {
		return domain.Task{}, storeErr("update task", err)
	}
	return t, nil
}

func (a *App) DeleteTask(ctx context.Context, actor domain.User, id string) error {
	if _, err := a.ownedTask(ctx, actor, id); err != nil {
		return err
	}
	return storeErr("delete task", a.store.DeleteTask(ctx, id))
}

// ownedTask hides other users' tasks behind ErrNotFound.
func (a *App) ownedTask(ctx context.Context, actor domain.User, id string) (domain.Task, error) {
	t, ok, err := a.store.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, storeErr("fetch task", err)
	}
	if !ok || (t.UserID != actor.ID && !isAdmin(actor)) {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

type TimelineInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	StartsAt    time.Time  `json:"startsAt" validate:"required"`
	EndsAt      *time.Time `json:"endsAt"`
}

type TimelinePatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartsAt    *time.Time `json:"startsAt"`
	EndsAt      *time.Time `json:"endsAt"`
	Completed   *bool      `json:"completed"`
}

func (a *App) CreateTimelineEvent(ctx context.Context, actor domain.User, in TimelineInput) (domain.TimelineEvent, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(in); err != nil {
		return domain.TimelineEvent{}, err
	}
	now := a.now()
	e := domain.TimelineEvent{
		ID:          util.NewID(),
		UserID:      actor.ID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      utcPtr(in.EndsAt),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := checkEventWindow(e.StartsAt, e.EndsAt); err != nil {
		return domain.TimelineEvent{}, err
	}
	if err := a.store.CreateTimelineEvent(ctx, e); err != nil {
		return domain.TimelineEvent{}, storeErr("create timeline event", err)
	}
	return e, nil
}

func (a *App) ListTimelineEvents(ctx context.Context, actor domain.User) ([]domain.TimelineEvent, error) {
	items, err := a.store.ListTimelineEvents(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list timeline events", err)
	}
	return items, nil
}

func (a *App) UpdateTimelineEvent(ctx context.Context, actor domain.User, id string, patch TimelinePatch) (domain.TimelineEvent, error) {
	if err := validation.Struct(patch); err != nil {
		return domain.TimelineEvent{}, err
	}
	e, err := a.ownedTimelineEvent(ctx, actor, id)
	if err != nil {
		return domain.TimelineEvent{}, err
	}
	setTrimmed(&e.Title, patch.Title)
	setTrimmed(&e.Description, patch.Description)
	if patch.StartsAt != nil {
		e.StartsAt = patch.StartsAt.UTC()
	}
	if patch.EndsAt != nil {
		e.EndsAt = utcPtr(patch.EndsAt)
	}
	if patch.Completed != nil {
		e.Completed = *patch.Completed
	}
	if err := checkEventWindow(e.StartsAt, e.EndsAt); err != nil {
		return domain.TimelineEvent{}, err
	}
	e.UpdatedAt = a.now()
	if err := a.store.UpdateTimelineEvent(ctx, e); err != nil {
		return domain.TimelineEvent{}, storeErr("update timeline event", err)
	}
	return e, nil
}

func (a *App) DeleteTimelineEvent(ctx context.Context, actor domain.User, id string) error {
	if _, err := a.ownedTimelineEvent(ctx, actor, id); err != nil {
		return err
	}
	return storeErr("delete timeline event", a.store.DeleteTimelineEvent(ctx, id))
}

func (a *App) ownedTimelineEvent(ctx context.Context, actor domain.User, id string) (domain.TimelineEvent, error) {
	e, ok, err := a.store.GetTimelineEvent(ctx, id)
	if err != nil {
		return domain.TimelineEvent{}, storeErr("fetch timeline event", err)
	}
	if !ok || (e.UserID != actor.ID && !isAdmin(actor)) {
		return domain.TimelineEvent{}, ErrNotFound
	}
	return e, nil
}

type CalendarInput struct {
	Title    string    `json:"title" validate:"max=200"`
	StartsAt time.Time `json:"startsAt" validate:"required"`
	EndsAt   time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	Status   string    `json:"status" validate:"omitempty,oneof=available booked blocked"`
}

// CreateCalendarEvent records vendor availability. Owner or admin only.
func (a *App) CreateCalendarEvent(ctx context.Context, actor domain.User, vendorID string, in CalendarInput) (domain.CalendarEvent, error) {
	if _, err := a.managedVendor(ctx, actor, vendorID); err != nil {
		return domain.CalendarEvent{}, err
	}
	if err := validation.Struct(in); err != nil {
		return domain.CalendarEvent{}, err
	}
	e := domain.CalendarEvent{
		ID:        util.NewID(),
		VendorID:  vendorID,
		Title:     strings.TrimSpace(in.Title),
		StartsAt:  in.StartsAt.UTC(),
		EndsAt:    in.EndsAt.UTC(),
		Status:    domain.CalendarAvailable,
		CreatedAt: a.now(),
	}
	if in.Status != "" {
		e.Status = domain.CalendarStatus(in.Status)
	}
	if err := a.store.CreateCalendarEvent(ctx, e); err != nil {
		return domain.CalendarEvent{}, storeErr("create calendar event", err)
	}
	return e, nil
}

// ListCalendar returns the vendor's events overlapping [from, to). Zero bounds
// are open.
func (a *App) ListCalendar(ctx context.Context, vendorID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, validation.Field("to", "gtfield", "to must be after from")
	}
	items, err := a.store.ListCalendarEvents(ctx, vendorID, from, to)
	if err != nil {
		return nil, storeErr("list calendar", err)
	}
	return items, nil
}

func (a *App) DeleteCalendarEvent(ctx context.Context, actor domain.User, id string) error {
	e, ok, err := a.store.GetCalendarEvent(ctx, id)
	if err != nil {
		return storeErr("fetch calendar event", err)
	}
	if !ok {
		return ErrNotFound
	}
	if _, err := a.managedVendor(ctx, actor, e.VendorID); err != nil {
		return err
	}
	return storeErr("delete calendar event", a.store.DeleteCalendarEvent(ctx, id))
}

func checkEventWindow(start time.Time, end *time.Time) error {
	if end != nil && end.Before(start) {
		return validation.Field("endsAt", "gtfield", "endsAt must be after startsAt")
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
