package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"planner-api/domain"
	"planner-api/remote"
)

// SubTasksAPI is the slice of the remote CRUD API the subtask store consumes.
type SubTasksAPI interface {
	GetSubTasksByTask(ctx context.Context, taskID string) ([]domain.SubTask, error)
	CreateSubTask(ctx context.Context, sub domain.SubTask) (remote.MutationResult, error)
	UpdateSubTask(ctx context.Context, sub domain.SubTask) (remote.MutationResult, error)
	DeleteSubTask(ctx context.Context, subTaskID string) (remote.MutationResult, error)
	ToggleSubTaskStatus(ctx context.Context, subTaskID string) (remote.MutationResult, error)
}

// ParentTasks is the task-store surface the subtask store needs to keep the
// denormalized has_subtasks flag truthful.
type ParentTasks interface {
	ByID(id string) (domain.Task, bool)
	SetHasSubTasks(ctx context.Context, taskID string, has bool) error
}

// SubTasks caches subtask lists keyed by parent task. It is the single owner
// of the parent's has_subtasks flag: the flag flips here and nowhere else.
type SubTasks struct {
	api     SubTasksAPI
	parents ParentTasks
	logger  *log.Logger
	byTask  map[string][]domain.SubTask
}

// NewSubTasks creates a subtask store bound to its parent task store.
func NewSubTasks(api SubTasksAPI, parents ParentTasks, logger *log.Logger) *SubTasks {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &SubTasks{api: api, parents: parents, logger: logger, byTask: map[string][]domain.SubTask{}}
}

// FetchByTask refreshes the cached list for one parent task.
func (s *SubTasks) FetchByTask(ctx context.Context, taskID string) ([]domain.SubTask, error) {
	subs, err := s.api.GetSubTasksByTask(ctx, taskID)
	if err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).Error("subtask fetch failed")
		return nil, err
	}
	s.byTask[taskID] = subs
	return subs, nil
}

// ByTask returns the cached list for a parent task.
func (s *SubTasks) ByTask(taskID string) []domain.SubTask {
	subs := s.byTask[taskID]
	out := make([]domain.SubTask, len(subs))
	copy(out, subs)
	return out
}

// Progress reports completion over the cached list for a parent task.
func (s *SubTasks) Progress(taskID string) domain.Progress {
	return domain.SubTaskProgress(s.byTask[taskID])
}

// Create persists a new subtask and raises the parent's has_subtasks flag if
// this is its first one. A failed flag update is logged, not fatal: progress
// falls back to binary until the next flip corrects it.
func (s *SubTasks) Create(ctx context.Context, sub domain.SubTask) error {
	if sub.ParentTaskID == "" {
		return fmt.Errorf("subtask is missing a parent task id")
	}
	if _, err := s.api.CreateSubTask(ctx, sub); err != nil {
		return err
	}
	if _, err := s.FetchByTask(ctx, sub.ParentTaskID); err != nil {
		return err
	}
	if parent, ok := s.parents.ByID(sub.ParentTaskID); ok && !parent.HasSubTasks {
		if err := s.parents.SetHasSubTasks(ctx, sub.ParentTaskID, true); err != nil {
			s.logger.WithError(err).WithField("task_id", sub.ParentTaskID).Error("failed to raise has_subtasks")
		}
	}
	return nil
}

// Update persists field changes to a subtask.
func (s *SubTasks) Update(ctx context.Context, sub domain.SubTask) error {
	if _, err := s.api.UpdateSubTask(ctx, sub); err != nil {
		return err
	}
	_, err := s.FetchByTask(ctx, sub.ParentTaskID)
	return err
}

// Delete removes a subtask and lowers the parent's has_subtasks flag when the
// last one goes.
func (s *SubTasks) Delete(ctx context.Context, subTaskID string) error {
	taskID := s.parentOf(subTaskID)
	if taskID == "" {
		return fmt.Errorf("unknown subtask %q", subTaskID)
	}
	if _, err := s.api.DeleteSubTask(ctx, subTaskID); err != nil {
		return err
	}
	subs, err := s.FetchByTask(ctx, taskID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		if parent, ok := s.parents.ByID(taskID); ok && parent.HasSubTasks {
			if err := s.parents.SetHasSubTasks(ctx, taskID, false); err != nil {
				s.logger.WithError(err).WithField("task_id", taskID).Error("failed to lower has_subtasks")
			}
		}
	}
	return nil
}

// ToggleStatus flips a subtask between todo and done and reports the parent's
// fresh completion state, so callers can offer to close the parent when the
// last subtask lands. A nil progress means the toggle or the refetch failed.
func (s *SubTasks) ToggleStatus(ctx context.Context, subTaskID string) (*domain.Progress, error) {
	taskID := s.parentOf(subTaskID)
	if taskID == "" {
		return nil, fmt.Errorf("unknown subtask %q", subTaskID)
	}
	if _, err := s.api.ToggleSubTaskStatus(ctx, subTaskID); err != nil {
		return nil, err
	}
	subs, err := s.FetchByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	progress := domain.SubTaskProgress(subs)
	return &progress, nil
}

func (s *SubTasks) parentOf(subTaskID string) string {
	for taskID, subs := range s.byTask {
		for _, sub := range subs {
			if sub.ID == subTaskID {
				return taskID
			}
		}
	}
	return ""
}
