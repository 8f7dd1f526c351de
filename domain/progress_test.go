package domain

import "testing"

func noSubTasks(string) []SubTask { return nil }

func TestComputeProgressBinaryOnly(t *testing.T) {
	tasks := []Task{
		{ID: "1", Status: TaskDone},
		{ID: "2", Status: TaskDone},
		{ID: "3", Status: TaskToDo},
		{ID: "4", Status: TaskDoing},
	}

	got := ComputeProgress(tasks, noSubTasks)

	if got.Percent != 50 || got.Completed != 2 || got.Total != 4 {
		t.Fatalf("unexpected aggregate: %+v", got)
	}
}

func TestComputeProgressMixedSubTasks(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: TaskDone},
		{ID: "b", Status: TaskDoing, HasSubTasks: true},
	}
	subs := map[string][]SubTask{
		"b": {
			{ID: "s1", Status: SubTaskDone},
			{ID: "s2", Status: SubTaskDone},
			{ID: "s3", Status: SubTaskDone},
			{ID: "s4", Status: SubTaskToDo},
		},
	}

	got := ComputeProgress(tasks, func(id string) []SubTask { return subs[id] })

	// mean(100, 75) = 87.5, rounded up.
	if got.Percent != 88 {
		t.Fatalf("expected 88%%, got %d", got.Percent)
	}
	if got.Completed != 1 {
		t.Fatalf("only the fully done task should count, got %d", got.Completed)
	}
	if got.Total != 2 {
		t.Fatalf("unexpected total: %d", got.Total)
	}
}

func TestComputeProgressEmptyInput(t *testing.T) {
	got := ComputeProgress(nil, noSubTasks)
	if got != (Progress{}) {
		t.Fatalf("expected zero aggregate, got %+v", got)
	}
}

func TestComputeProgressFlaggedButUnloadedFallsBackToStatus(t *testing.T) {
	tasks := []Task{
		{ID: "a", Status: TaskDone, HasSubTasks: true},
		{ID: "b", Status: TaskToDo, HasSubTasks: true},
	}

	got := ComputeProgress(tasks, noSubTasks)

	if got.Percent != 50 || got.Completed != 1 {
		t.Fatalf("expected binary fallback, got %+v", got)
	}
}

func TestSubTaskProgress(t *testing.T) {
	subs := []SubTask{
		{ID: "1", Status: SubTaskDone},
		{ID: "2", Status: SubTaskDone},
		{ID: "3", Status: SubTaskToDo},
	}

	got := SubTaskProgress(subs)
	if got.Completed != 2 || got.Total != 3 || got.Percent != 67 {
		t.Fatalf("unexpected progress: %+v", got)
	}

	if got := SubTaskProgress(nil); got != (Progress{}) {
		t.Fatalf("expected zero progress for empty list, got %+v", got)
	}
}

func TestNormalizeClearsDanglingEventReference(t *testing.T) {
	task := Task{ID: "1", CalendarEventID: "evt-1"}
	task.Normalize()
	if task.CalendarEventID != "" {
		t.Fatalf("event reference should be cleared when no due date is set")
	}

	task = Task{ID: "2", DueDate: "2025-03-10", CalendarEventID: "evt-2"}
	task.Normalize()
	if task.CalendarEventID != "evt-2" {
		t.Fatalf("event reference should survive when a due date exists")
	}
}
