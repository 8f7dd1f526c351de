package domain

import "math"

// Progress is a completion aggregate over a set of tasks or subtasks.
type Progress struct {
	Percent   int `json:"percentage"`
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// ComputeProgress aggregates completion over the given tasks. A task that has
// subtasks contributes its subtask completion ratio; a task whose subtasks
// are flagged but not loaded falls back to its own binary status, which is a
// known staleness window rather than an error. Tasks without subtasks
// contribute 0 or 100 from their status. Completed counts tasks whose
// contribution is exactly 100.
func ComputeProgress(tasks []Task, subtasksOf func(taskID string) []SubTask) Progress {
	if len(tasks) == 0 {
		return Progress{}
	}

	total := 0.0
	completed := 0
	for _, t := range tasks {
		contribution := 0.0
		if t.HasSubTasks {
			subs := subtasksOf(t.ID)
			if len(subs) > 0 {
				done := 0
				for _, st := range subs {
					if st.Status == SubTaskDone {
						done++
					}
				}
				contribution = float64(done) / float64(len(subs)) * 100
			} else if t.Status == TaskDone {
				contribution = 100
			}
		} else if t.Status == TaskDone {
			contribution = 100
		}
		total += contribution
		if contribution == 100 {
			completed++
		}
	}

	return Progress{
		Percent:   int(math.Round(total / float64(len(tasks)))),
		Completed: completed,
		Total:     len(tasks),
	}
}

// SubTaskProgress computes the completion aggregate for a single task's
// subtask list.
func SubTaskProgress(subs []SubTask) Progress {
	done := 0
	for _, st := range subs {
		if st.Status == SubTaskDone {
			done++
		}
	}
	p := Progress{Completed: done, Total: len(subs)}
	if len(subs) > 0 {
		p.Percent = int(math.Round(float64(done) / float64(len(subs)) * 100))
	}
	return p
}
