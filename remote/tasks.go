package remote

import (
	"context"

	"planner-api/domain"
)

// GetAllTasks fetches the whole task collection.
func (c *Client) GetAllTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := c.get(ctx, "getAllTasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, task domain.Task) (MutationResult, error) {
	return c.mutate(ctx, "createTask", task)
}

func (c *Client) UpdateTask(ctx context.Context, task domain.Task) (MutationResult, error) {
	return c.mutate(ctx, "updateTask", task)
}

// PatchTask sends a partial update carrying only the provided fields.
func (c *Client) PatchTask(ctx context.Context, fields map[string]any) (MutationResult, error) {
	return c.mutate(ctx, "updateTask", fields)
}

func (c *Client) DeleteTask(ctx context.Context, taskID string) (MutationResult, error) {
	return c.mutate(ctx, "deleteTask", map[string]string{"taskId": taskID})
}
