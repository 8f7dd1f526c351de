package reconcile

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
)

// DeadRecord is the serialized form of a calendar operation the outbox gave
// up on. It carries enough to replay the operation by hand or from a
// consumer job.
type DeadRecord struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	EventID   string    `json:"eventId,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
	Queued    time.Time `json:"queued"`
}

// DeadLetter receives operations the outbox has exhausted retries for.
type DeadLetter interface {
	Store(ctx context.Context, rec DeadRecord) error
}

// QueueDeadLetter persists dead records to an Azure storage queue so failed
// sync operations can be inspected or replayed out of band.
type QueueDeadLetter struct {
	queue *azqueue.QueueClient
}

// NewQueueDeadLetter connects to the dead-letter queue.
func NewQueueDeadLetter(connStr, queueName string) (*QueueDeadLetter, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute,
				RetryDelay:    time.Second,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueDeadLetter{queue: q}, nil
}

func (q *QueueDeadLetter) Store(ctx context.Context, rec DeadRecord) error {
	data, err := sonic.ConfigStd.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = q.queue.EnqueueMessage(ctx, string(data), nil)
	return err
}
