package domain

// Task status values mirrored from the spreadsheet columns.
const (
	TaskToDo  = "ToDo"
	TaskDoing = "Doing"
	TaskDone  = "Done"
)

// Task priority values.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Task represents a tracked unit of work with an optional due date and an
// optional mirror event in the external calendar.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority,omitempty"`
	// DueDate is a plain calendar date, YYYY-MM-DD. Empty means no date.
	DueDate string `json:"due_date,omitempty"`
	// DueTime is a clock time, HH:MM. Only meaningful when DueDate is set.
	DueTime string `json:"due_time,omitempty"`
	// CalendarEventID is the provider-assigned id of the mirror event. It is
	// a weak back-reference: the event owns its own existence and the id can
	// go stale without notice.
	CalendarEventID string `json:"calendar_event_id,omitempty"`
	HasSubTasks     bool   `json:"has_subtasks,omitempty"`
	TimeEstimate    int    `json:"time_estimate,omitempty"`
	TimeSpent       int    `json:"time_spent,omitempty"`
	Tags            string `json:"tags,omitempty"`
	NoteID          string `json:"note_id,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

// Normalize enforces the no-date invariant: a task without a due date cannot
// reference a calendar event.
func (t *Task) Normalize() {
	if t.DueDate == "" {
		t.CalendarEventID = ""
	}
}

// SubTask status values.
const (
	SubTaskToDo = "ToDo"
	SubTaskDone = "Done"
)

// SubTask is a binary-status checklist item owned by exactly one task.
type SubTask struct {
	ID           string `json:"id"`
	ParentTaskID string `json:"parent_task_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// Project status values.
const (
	ProjectActive   = "Active"
	ProjectOnHold   = "OnHold"
	ProjectDone     = "Done"
	ProjectArchived = "Archived"
)

// Project groups tasks and notes by foreign reference. Deleting a project
// does not cascade at this layer.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Status      string `json:"status"`
	Priority    string `json:"priority,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Note is a free-form document optionally linked to a project.
type Note struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content,omitempty"`
	Tags      string `json:"tags,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
