package remote

import "context"

// WeeklyAnalytics is one day of created/completed counts.
type WeeklyAnalytics struct {
	Date      string `json:"date"`
	Created   int    `json:"created"`
	Completed int    `json:"completed"`
}

// GetWeeklyAnalytics fetches the last week's task counts.
func (c *Client) GetWeeklyAnalytics(ctx context.Context) ([]WeeklyAnalytics, error) {
	var out []WeeklyAnalytics
	if err := c.get(ctx, "getWeeklyAnalytics", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTimeSpent adds tracked minutes to a task's time_spent counter.
func (c *Client) UpdateTimeSpent(ctx context.Context, taskID string, minutes int) (MutationResult, error) {
	return c.mutate(ctx, "updateTimeSpent", map[string]any{"taskId": taskID, "minutes": minutes})
}

// StorageStats summarizes what the remote store is holding.
type StorageStats struct {
	Projects      int    `json:"projects"`
	Tasks         int    `json:"tasks"`
	Attachments   int    `json:"attachments"`
	TotalFileSize int64  `json:"total_file_size"`
	TotalFileMB   string `json:"total_file_size_mb"`
}

// GetStorageStats fetches remote storage usage.
func (c *Client) GetStorageStats(ctx context.Context) (StorageStats, error) {
	var out StorageStats
	if err := c.get(ctx, "getStorageStats", nil, &out); err != nil {
		return StorageStats{}, err
	}
	return out, nil
}
