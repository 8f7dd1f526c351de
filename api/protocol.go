package api

import "planner-api/domain"

const mutationMaxSize = 256 * 1024 // 256 KiB

// Response body for all mutation routes. The idempotency key echoes the
// client-supplied Idempotency-Key header, or a freshly minted one, so retries
// can be correlated.
type mutationResponse struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Response body for the subtask toggle route. Progress is absent when the
// toggle persisted but the follow-up refetch failed.
type toggleResponse struct {
	IdempotencyKey string           `json:"idempotencyKey"`
	Progress       *domain.Progress `json:"progress,omitempty"`
}
