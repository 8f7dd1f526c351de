package remote

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"planner-api/domain"
)

type backend interface {
	GetAllTasks(ctx context.Context) ([]domain.Task, error)
	GetSubTasksByTask(ctx context.Context, taskID string) ([]domain.SubTask, error)
	GetAllProjects(ctx context.Context) ([]domain.Project, error)
	GetAllNotes(ctx context.Context) ([]domain.Note, error)

	CreateTask(ctx context.Context, task domain.Task) (MutationResult, error)
	UpdateTask(ctx context.Context, task domain.Task) (MutationResult, error)
	PatchTask(ctx context.Context, fields map[string]any) (MutationResult, error)
	DeleteTask(ctx context.Context, taskID string) (MutationResult, error)
	CreateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error)
	UpdateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error)
	DeleteSubTask(ctx context.Context, subTaskID string) (MutationResult, error)
	ToggleSubTaskStatus(ctx context.Context, subTaskID string) (MutationResult, error)

	CreateProject(ctx context.Context, project domain.Project) (MutationResult, error)
	UpdateProject(ctx context.Context, project domain.Project) (MutationResult, error)
	DeleteProject(ctx context.Context, projectID string) (MutationResult, error)
	ArchiveProject(ctx context.Context, projectID string) (MutationResult, error)
	CreateNote(ctx context.Context, note domain.Note) (MutationResult, error)
	UpdateNote(ctx context.Context, note domain.Note) (MutationResult, error)
	DeleteNote(ctx context.Context, noteID string) (MutationResult, error)
	UpdateTimeSpent(ctx context.Context, taskID string, minutes int) (MutationResult, error)
}

// Cache wraps a Client with Redis-backed caching of the list reads. Every
// mutation evicts the affected collection key so refetch-after-write sees
// fresh data. Redis trouble degrades to the base client, never to an error.
type Cache struct {
	*Client
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates the caching wrapper around the provided base client.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("remote.NewCache: base client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	c := &Cache{base: base, redis: client, ttl: ttl}
	if cl, ok := base.(*Client); ok {
		c.Client = cl
	}
	return c
}

const (
	tasksKey    = "planner:tasks"
	projectsKey = "planner:projects"
	notesKey    = "planner:notes"
)

func subTasksKey(taskID string) string { return "planner:subtasks:" + taskID }

func (c *Cache) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if c.load(ctx, tasksKey, &tasks) {
		return tasks, nil
	}
	tasks, err := c.base.GetAllTasks(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, tasksKey, tasks)
	return tasks, nil
}

func (c *Cache) GetSubTasksByTask(ctx context.Context, taskID string) ([]domain.SubTask, error) {
	var subs []domain.SubTask
	if c.load(ctx, subTasksKey(taskID), &subs) {
		return subs, nil
	}
	subs, err := c.base.GetSubTasksByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, subTasksKey(taskID), subs)
	return subs, nil
}

func (c *Cache) GetAllProjects(ctx context.Context) ([]domain.Project, error) {
	var projects []domain.Project
	if c.load(ctx, projectsKey, &projects) {
		return projects, nil
	}
	projects, err := c.base.GetAllProjects(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, projectsKey, projects)
	return projects, nil
}

func (c *Cache) GetAllNotes(ctx context.Context) ([]domain.Note, error) {
	var notes []domain.Note
	if c.load(ctx, notesKey, &notes) {
		return notes, nil
	}
	notes, err := c.base.GetAllNotes(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, notesKey, notes)
	return notes, nil
}

func (c *Cache) CreateTask(ctx context.Context, task domain.Task) (MutationResult, error) {
	res, err := c.base.CreateTask(ctx, task)
	if err == nil {
		c.evict(ctx, tasksKey)
	}
	return res, err
}

func (c *Cache) UpdateTask(ctx context.Context, task domain.Task) (MutationResult, error) {
	res, err := c.base.UpdateTask(ctx, task)
	if err == nil {
		c.evict(ctx, tasksKey)
	}
	return res, err
}

func (c *Cache) PatchTask(ctx context.Context, fields map[string]any) (MutationResult, error) {
	res, err := c.base.PatchTask(ctx, fields)
	if err == nil {
		c.evict(ctx, tasksKey)
	}
	return res, err
}

func (c *Cache) DeleteTask(ctx context.Context, taskID string) (MutationResult, error) {
	res, err := c.base.DeleteTask(ctx, taskID)
	if err == nil {
		c.evict(ctx, tasksKey, subTasksKey(taskID))
	}
	return res, err
}

func (c *Cache) CreateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error) {
	res, err := c.base.CreateSubTask(ctx, sub)
	if err == nil {
		c.evict(ctx, subTasksKey(sub.ParentTaskID))
	}
	return res, err
}

func (c *Cache) DeleteSubTask(ctx context.Context, subTaskID string) (MutationResult, error) {
	res, err := c.base.DeleteSubTask(ctx, subTaskID)
	if err == nil {
		c.evictSubTaskLists(ctx)
	}
	return res, err
}

func (c *Cache) ToggleSubTaskStatus(ctx context.Context, subTaskID string) (MutationResult, error) {
	res, err := c.base.ToggleSubTaskStatus(ctx, subTaskID)
	if err == nil {
		c.evictSubTaskLists(ctx)
	}
	return res, err
}

func (c *Cache) UpdateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error) {
	res, err := c.base.UpdateSubTask(ctx, sub)
	if err == nil {
		c.evict(ctx, subTasksKey(sub.ParentTaskID))
	}
	return res, err
}

func (c *Cache) CreateProject(ctx context.Context, project domain.Project) (MutationResult, error) {
	res, err := c.base.CreateProject(ctx, project)
	if err == nil {
		c.evict(ctx, projectsKey)
	}
	return res, err
}

func (c *Cache) UpdateProject(ctx context.Context, project domain.Project) (MutationResult, error) {
	res, err := c.base.UpdateProject(ctx, project)
	if err == nil {
		c.evict(ctx, projectsKey)
	}
	return res, err
}

func (c *Cache) DeleteProject(ctx context.Context, projectID string) (MutationResult, error) {
	res, err := c.base.DeleteProject(ctx, projectID)
	if err == nil {
		c.evict(ctx, projectsKey)
	}
	return res, err
}

func (c *Cache) ArchiveProject(ctx context.Context, projectID string) (MutationResult, error) {
	res, err := c.base.ArchiveProject(ctx, projectID)
	if err == nil {
		c.evict(ctx, projectsKey)
	}
	return res, err
}

func (c *Cache) CreateNote(ctx context.Context, note domain.Note) (MutationResult, error) {
	res, err := c.base.CreateNote(ctx, note)
	if err == nil {
		c.evict(ctx, notesKey)
	}
	return res, err
}

func (c *Cache) UpdateNote(ctx context.Context, note domain.Note) (MutationResult, error) {
	res, err := c.base.UpdateNote(ctx, note)
	if err == nil {
		c.evict(ctx, notesKey)
	}
	return res, err
}

func (c *Cache) DeleteNote(ctx context.Context, noteID string) (MutationResult, error) {
	res, err := c.base.DeleteNote(ctx, noteID)
	if err == nil {
		c.evict(ctx, notesKey)
	}
	return res, err
}

func (c *Cache) UpdateTimeSpent(ctx context.Context, taskID string, minutes int) (MutationResult, error) {
	res, err := c.base.UpdateTimeSpent(ctx, taskID, minutes)
	if err == nil {
		c.evict(ctx, tasksKey)
	}
	return res, err
}

func (c *Cache) load(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

// evictSubTaskLists drops every cached subtask list. Subtask ids do not name
// their parent, so a targeted evict is not possible on delete/toggle.
func (c *Cache) evictSubTaskLists(ctx context.Context) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, subTasksKey("*"), 64).Iterator()
	for iter.Next(ctx) {
		_ = c.redis.Del(ctx, iter.Val()).Err()
	}
}
