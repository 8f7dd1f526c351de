// Package store caches the remote entity collections and owns the
// refetch-after-write protocol: every successful mutation re-reads the whole
// collection instead of patching local state. Stores are effectively
// single-owner; nothing here locks, callers funnel all mutations through one
// goroutine by convention.
package store

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"planner-api/domain"
	"planner-api/remote"
)

// TasksAPI is the slice of the remote CRUD API the task store consumes.
type TasksAPI interface {
	GetAllTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, task domain.Task) (remote.MutationResult, error)
	UpdateTask(ctx context.Context, task domain.Task) (remote.MutationResult, error)
	PatchTask(ctx context.Context, fields map[string]any) (remote.MutationResult, error)
	DeleteTask(ctx context.Context, taskID string) (remote.MutationResult, error)
}

// Syncer mirrors date-bearing tasks into the external calendar. All methods
// are best-effort and never fail the task operation.
type Syncer interface {
	EnsureEvent(ctx context.Context, task domain.Task) string
	ReconcileEvent(ctx context.Context, eventID string, task domain.Task) string
	RemoveEvent(ctx context.Context, task domain.Task)
}

// Tasks caches the task collection.
type Tasks struct {
	api    TasksAPI
	sync   Syncer
	logger *log.Logger
	tasks  []domain.Task
}

// NewTasks creates a task store. The syncer may be nil when calendar sync is
// disabled entirely.
func NewTasks(api TasksAPI, sync Syncer, logger *log.Logger) *Tasks {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Tasks{api: api, sync: sync, logger: logger}
}

// Fetch replaces the cached collection wholesale. On failure the previous
// cache stays in place: stale but available.
func (s *Tasks) Fetch(ctx context.Context) error {
	tasks, err := s.api.GetAllTasks(ctx)
	if err != nil {
		s.logger.WithError(err).Error("task fetch failed, serving stale cache")
		return err
	}
	s.tasks = tasks
	return nil
}

// All returns a copy of the cached collection.
func (s *Tasks) All() []domain.Task {
	out := make([]domain.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// ByID looks a task up in the cache.
func (s *Tasks) ByID(id string) (domain.Task, bool) {
	for _, t := range s.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Task{}, false
}

// Create persists a new task, first mirroring it to the calendar when it
// carries a due date. A failed calendar call leaves the task without an
// event reference; the create itself still proceeds.
func (s *Tasks) Create(ctx context.Context, task domain.Task) error {
	task.Normalize()
	if s.sync != nil && task.DueDate != "" {
		task.CalendarEventID = s.sync.EnsureEvent(ctx, task)
	}
	if _, err := s.api.CreateTask(ctx, task); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Update reconciles the task's calendar mirror against its new field values
// and persists the result. The previous cached state supplies the last known
// event reference, so clearing the due date removes the event and persists a
// cleared reference.
func (s *Tasks) Update(ctx context.Context, task domain.Task) error {
	eventID := task.CalendarEventID
	if prev, ok := s.ByID(task.ID); ok && eventID == "" {
		eventID = prev.CalendarEventID
	}
	if s.sync != nil {
		task.CalendarEventID = s.sync.ReconcileEvent(ctx, eventID, task)
	}
	task.Normalize()
	if _, err := s.api.UpdateTask(ctx, task); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// Delete removes the task's calendar mirror first, then the record. The
// ordering matters: a failed record deletion still leaves a task to retry
// from, while the reverse would strand the event.
func (s *Tasks) Delete(ctx context.Context, taskID string) error {
	if s.sync != nil {
		if task, ok := s.ByID(taskID); ok {
			s.sync.RemoveEvent(ctx, task)
		}
	}
	if _, err := s.api.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// SetHasSubTasks persists the denormalized subtask flag. Flag flips do not
// touch event-relevant fields, so no calendar reconciliation runs.
func (s *Tasks) SetHasSubTasks(ctx context.Context, taskID string, has bool) error {
	if _, err := s.api.PatchTask(ctx, map[string]any{"id": taskID, "has_subtasks": has}); err != nil {
		return err
	}
	return s.Fetch(ctx)
}

// FilterByStatus returns cached tasks in the given status.
func (s *Tasks) FilterByStatus(status string) []domain.Task {
	return s.filter(func(t domain.Task) bool { return t.Status == status })
}

// FilterByPriority returns cached tasks with the given priority.
func (s *Tasks) FilterByPriority(priority string) []domain.Task {
	return s.filter(func(t domain.Task) bool { return t.Priority == priority })
}

// FilterByDate returns cached tasks due on the given date.
func (s *Tasks) FilterByDate(date string) []domain.Task {
	return s.filter(func(t domain.Task) bool { return t.DueDate == date })
}

// FilterByProject returns cached tasks belonging to the given project.
func (s *Tasks) FilterByProject(projectID string) []domain.Task {
	return s.filter(func(t domain.Task) bool { return t.ProjectID == projectID })
}

// Search matches the query against title, description and tags,
// case-insensitively.
func (s *Tasks) Search(query string) []domain.Task {
	q := strings.ToLower(query)
	return s.filter(func(t domain.Task) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) ||
			strings.Contains(strings.ToLower(t.Tags), q)
	})
}

func (s *Tasks) filter(keep func(domain.Task) bool) []domain.Task {
	out := []domain.Task{}
	for _, t := range s.tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}
