package remote

import (
	"context"
	"net/url"

	"planner-api/domain"
)

// GetSubTasksByTask fetches a task's subtask list.
func (c *Client) GetSubTasksByTask(ctx context.Context, taskID string) ([]domain.SubTask, error) {
	params := url.Values{"taskId": {taskID}}
	var subs []domain.SubTask
	if err := c.get(ctx, "getSubTasksByTask", params, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (c *Client) CreateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error) {
	return c.mutate(ctx, "createSubTask", sub)
}

func (c *Client) UpdateSubTask(ctx context.Context, sub domain.SubTask) (MutationResult, error) {
	return c.mutate(ctx, "updateSubTask", sub)
}

func (c *Client) DeleteSubTask(ctx context.Context, subTaskID string) (MutationResult, error) {
	return c.mutate(ctx, "deleteSubTask", map[string]string{"subTaskId": subTaskID})
}

// ToggleSubTaskStatus flips a subtask between ToDo and Done on the remote.
func (c *Client) ToggleSubTaskStatus(ctx context.Context, subTaskID string) (MutationResult, error) {
	return c.mutate(ctx, "toggleSubTaskStatus", map[string]string{"subTaskId": subTaskID})
}
