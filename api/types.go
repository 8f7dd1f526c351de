package api

import (
	"context"

	"planner-api/domain"
	"planner-api/remote"
)

// TaskStore abstracts the task collection for handlers.
type TaskStore interface {
	Fetch(ctx context.Context) error
	All() []domain.Task
	ByID(id string) (domain.Task, bool)
	Create(ctx context.Context, task domain.Task) error
	Update(ctx context.Context, task domain.Task) error
	Delete(ctx context.Context, taskID string) error
	FilterByStatus(status string) []domain.Task
	FilterByPriority(priority string) []domain.Task
	FilterByDate(date string) []domain.Task
	FilterByProject(projectID string) []domain.Task
	Search(query string) []domain.Task
}

// SubTaskStore abstracts per-task subtask lists for handlers.
type SubTaskStore interface {
	FetchByTask(ctx context.Context, taskID string) ([]domain.SubTask, error)
	ByTask(taskID string) []domain.SubTask
	Create(ctx context.Context, sub domain.SubTask) error
	Update(ctx context.Context, sub domain.SubTask) error
	Delete(ctx context.Context, subTaskID string) error
	ToggleStatus(ctx context.Context, subTaskID string) (*domain.Progress, error)
}

// ProjectStore abstracts the project collection for handlers.
type ProjectStore interface {
	Fetch(ctx context.Context) error
	All() []domain.Project
	Create(ctx context.Context, project domain.Project) error
	Update(ctx context.Context, project domain.Project) error
	Delete(ctx context.Context, projectID string) error
	Archive(ctx context.Context, projectID string) error
}

// NoteStore abstracts the note collection for handlers.
type NoteStore interface {
	Fetch(ctx context.Context) error
	All() []domain.Note
	ByID(ctx context.Context, id string) (domain.Note, error)
	ByProject(projectID string) []domain.Note
	Create(ctx context.Context, note domain.Note) error
	Update(ctx context.Context, note domain.Note) error
	Delete(ctx context.Context, noteID string) error
}

// Analytics is the passthrough slice of the remote API that has no local
// store.
type Analytics interface {
	GetWeeklyAnalytics(ctx context.Context) ([]remote.WeeklyAnalytics, error)
	UpdateTimeSpent(ctx context.Context, taskID string, minutes int) (remote.MutationResult, error)
	GetStorageStats(ctx context.Context) (remote.StorageStats, error)
}

// Stores bundles the entity stores the handlers serve.
type Stores struct {
	Tasks     TaskStore
	SubTasks  SubTaskStore
	Projects  ProjectStore
	Notes     NoteStore
	Analytics Analytics
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}

// Deduper prevents reprocessing of retried mutations.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when downstream processing fails.
	Remove(ctx context.Context, userID, key string) error
}
