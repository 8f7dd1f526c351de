package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"planner-api/domain"
)

type stubBackend struct {
	tasks     []domain.Task
	subs      map[string][]domain.SubTask
	taskCalls int
	subCalls  int
	mutateErr error
}

func (s *stubBackend) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	s.taskCalls++
	return s.tasks, nil
}

func (s *stubBackend) GetSubTasksByTask(ctx context.Context, taskID string) ([]domain.SubTask, error) {
	s.subCalls++
	return s.subs[taskID], nil
}

func (s *stubBackend) GetAllProjects(ctx context.Context) ([]domain.Project, error) { return nil, nil }
func (s *stubBackend) GetAllNotes(ctx context.Context) ([]domain.Note, error)       { return nil, nil }

func (s *stubBackend) mutation() (MutationResult, error) {
	if s.mutateErr != nil {
		return MutationResult{}, s.mutateErr
	}
	return MutationResult{Success: true}, nil
}

func (s *stubBackend) CreateTask(context.Context, domain.Task) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) UpdateTask(context.Context, domain.Task) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) PatchTask(context.Context, map[string]any) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) DeleteTask(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) CreateSubTask(context.Context, domain.SubTask) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) DeleteSubTask(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) ToggleSubTaskStatus(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) UpdateSubTask(context.Context, domain.SubTask) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) CreateProject(context.Context, domain.Project) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) UpdateProject(context.Context, domain.Project) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) DeleteProject(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) ArchiveProject(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) CreateNote(context.Context, domain.Note) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) UpdateNote(context.Context, domain.Note) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) DeleteNote(context.Context, string) (MutationResult, error) {
	return s.mutation()
}
func (s *stubBackend) UpdateTimeSpent(context.Context, string, int) (MutationResult, error) {
	return s.mutation()
}

func newCacheFixture(t *testing.T, base backend) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCache(base, client, time.Minute), mr
}

func TestCacheTasksMissThenHit(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1", Title: "Cached"}}}
	cache, _ := newCacheFixture(t, base)
	ctx := context.Background()

	first, err := cache.GetAllTasks(ctx)
	if err != nil || len(first) != 1 {
		t.Fatalf("first fetch: %v %v", first, err)
	}
	second, err := cache.GetAllTasks(ctx)
	if err != nil || len(second) != 1 {
		t.Fatalf("second fetch: %v %v", second, err)
	}
	if base.taskCalls != 1 {
		t.Fatalf("expected one backend call, got %d", base.taskCalls)
	}
}

func TestCacheEvictsTasksOnMutation(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1"}}}
	cache, mr := newCacheFixture(t, base)
	ctx := context.Background()

	if _, err := cache.GetAllTasks(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if !mr.Exists(tasksKey) {
		t.Fatal("expected warmed cache key")
	}

	if _, err := cache.UpdateTask(ctx, domain.Task{ID: "t1", Title: "renamed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if mr.Exists(tasksKey) {
		t.Fatal("mutation must evict the tasks key")
	}
}

func TestCacheEvictsTasksOnTimeSpent(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1", TimeSpent: 30}}}
	cache, mr := newCacheFixture(t, base)
	ctx := context.Background()

	if _, err := cache.GetAllTasks(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if !mr.Exists(tasksKey) {
		t.Fatal("expected warmed cache key")
	}

	if _, err := cache.UpdateTimeSpent(ctx, "t1", 25); err != nil {
		t.Fatalf("update time spent: %v", err)
	}
	if mr.Exists(tasksKey) {
		t.Fatal("time update must evict the tasks key")
	}

	base.tasks = []domain.Task{{ID: "t1", TimeSpent: 55}}
	tasks, err := cache.GetAllTasks(ctx)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(tasks) != 1 || tasks[0].TimeSpent != 55 {
		t.Fatalf("refetch served stale data: %+v", tasks)
	}
}

func TestCacheEvictsProjectsOnMutation(t *testing.T) {
	base := &stubBackend{}
	cache, mr := newCacheFixture(t, base)
	ctx := context.Background()

	if _, err := cache.GetAllProjects(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if !mr.Exists(projectsKey) {
		t.Fatal("expected warmed cache key")
	}

	if _, err := cache.ArchiveProject(ctx, "p1"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if mr.Exists(projectsKey) {
		t.Fatal("mutation must evict the projects key")
	}
}

func TestCacheKeepsKeyWhenMutationFails(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1"}}, mutateErr: errors.New("remote down")}
	cache, mr := newCacheFixture(t, base)
	ctx := context.Background()

	if _, err := cache.GetAllTasks(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if _, err := cache.DeleteTask(ctx, "t1"); err == nil {
		t.Fatal("expected mutation error")
	}
	if !mr.Exists(tasksKey) {
		t.Fatal("failed mutation must not evict")
	}
}

func TestCacheSubTasksKeyedByParent(t *testing.T) {
	base := &stubBackend{subs: map[string][]domain.SubTask{
		"t1": {{ID: "s1", ParentTaskID: "t1"}},
		"t2": {{ID: "s2", ParentTaskID: "t2"}},
	}}
	cache, _ := newCacheFixture(t, base)
	ctx := context.Background()

	if subs, _ := cache.GetSubTasksByTask(ctx, "t1"); len(subs) != 1 || subs[0].ID != "s1" {
		t.Fatalf("t1 subs: %+v", subs)
	}
	if subs, _ := cache.GetSubTasksByTask(ctx, "t2"); len(subs) != 1 || subs[0].ID != "s2" {
		t.Fatalf("t2 subs: %+v", subs)
	}
	if _, err := cache.GetSubTasksByTask(ctx, "t1"); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if base.subCalls != 2 {
		t.Fatalf("expected two backend calls, got %d", base.subCalls)
	}
}

func TestCacheToggleEvictsSubTaskLists(t *testing.T) {
	base := &stubBackend{subs: map[string][]domain.SubTask{"t1": {{ID: "s1"}}}}
	cache, mr := newCacheFixture(t, base)
	ctx := context.Background()

	if _, err := cache.GetSubTasksByTask(ctx, "t1"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if !mr.Exists(subTasksKey("t1")) {
		t.Fatal("expected warmed subtask key")
	}
	if _, err := cache.ToggleSubTaskStatus(ctx, "s1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if mr.Exists(subTasksKey("t1")) {
		t.Fatal("toggle must evict subtask lists")
	}
}

func TestCacheFallsBackWhenRedisGone(t *testing.T) {
	base := &stubBackend{tasks: []domain.Task{{ID: "t1"}}}
	cache, mr := newCacheFixture(t, base)
	mr.Close()
	ctx := context.Background()

	tasks, err := cache.GetAllTasks(ctx)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("expected fallback to base, got %v %v", tasks, err)
	}
}
