package reconcile

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"planner-api/calendar"
)

// Operation kinds retried through the outbox. Creates are never retried: the
// triggering task is persisted before a retry could land, so a late create
// would mint an event whose id nothing references.
const (
	opUpdate = "update"
	opDelete = "delete"
)

type operation struct {
	ID      string
	Kind    string
	EventID string
	Event   *calendar.Event
	TaskID  string
	Attempt int
	LastErr string
	Queued  time.Time
}

// OutboxConfig tunes the in-memory retry queue.
type OutboxConfig struct {
	Workers      int
	Buffer       int
	MaxAttempts  int
	CallTimeout  time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
}

// DefaultOutboxConfig returns conservative retry settings.
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		Workers:      2,
		Buffer:       256,
		MaxAttempts:  5,
		CallTimeout:  30 * time.Second,
		RetryInitial: 500 * time.Millisecond,
		RetryMax:     30 * time.Second,
	}
}

// Outbox replays failed calendar operations in the background. It holds no
// durable state: a process restart loses pending operations, which is
// acceptable for a best-effort mirror. Operations that exhaust their retry
// budget are handed to the dead-letter sink.
type Outbox struct {
	cal    CalendarAPI
	cfg    OutboxConfig
	dead   DeadLetter
	logger *log.Logger

	workCh  chan *operation
	stopCh  chan struct{}
	wg      sync.WaitGroup
	retryWG sync.WaitGroup

	mu        sync.Mutex
	closing   bool
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewOutbox creates and starts the retry workers. The dead-letter sink may
// be nil, in which case exhausted operations are only logged.
func NewOutbox(cal CalendarAPI, cfg OutboxConfig, dead DeadLetter, logger *log.Logger) *Outbox {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = cfg.Workers * 32
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	o := &Outbox{
		cal:    cal,
		cfg:    cfg,
		dead:   dead,
		logger: logger,
		workCh: make(chan *operation, cfg.Buffer),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// TryEnqueue hands an operation to the workers without blocking. It reports
// false when the buffer is full or the outbox is shutting down.
func (o *Outbox) TryEnqueue(op operation) bool {
	op.ID = uuid.NewString()
	op.Queued = time.Now().UTC()
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return false
	}
	o.mu.Unlock()
	select {
	case o.workCh <- &op:
		return true
	default:
		o.dropped.Add(1)
		return false
	}
}

// Shutdown stops the workers and waits for in-flight retries to settle.
// workCh is never closed: workers exit via stopCh, so a concurrent enqueue
// or retry timer can at worst park an operation in the buffer.
func (o *Outbox) Shutdown() {
	o.mu.Lock()
	if o.closing {
		o.mu.Unlock()
		return
	}
	o.closing = true
	close(o.stopCh)
	o.mu.Unlock()

	o.wg.Wait()
	o.retryWG.Wait()
}

func (o *Outbox) worker() {
	defer o.wg.Done()
	for {
		select {
		case op := <-o.workCh:
			if op != nil {
				o.attempt(op)
			}
		case <-o.stopCh:
			return
		}
	}
}

func (o *Outbox) attempt(op *operation) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
	err := o.execute(ctx, op)
	cancel()

	if err == nil {
		o.delivered.Add(1)
		o.logger.WithFields(log.Fields{"op": op.Kind, "event": op.EventID, "task": op.TaskID}).Debug("calendar retry succeeded")
		return
	}

	op.Attempt++
	op.LastErr = err.Error()
	if op.Attempt >= o.cfg.MaxAttempts {
		o.deadLetter(op)
		return
	}
	o.scheduleRetry(op)
}

func (o *Outbox) execute(ctx context.Context, op *operation) error {
	switch op.Kind {
	case opDelete:
		err := o.cal.DeleteEvent(ctx, op.EventID)
		if errors.Is(err, calendar.ErrNotFound) {
			return nil
		}
		return err
	case opUpdate:
		if op.Event == nil {
			return nil
		}
		_, err := o.cal.UpdateEvent(ctx, op.EventID, *op.Event)
		if errors.Is(err, calendar.ErrNotFound) {
			// Nothing left to update; the owning task will heal on its next edit.
			return nil
		}
		return err
	default:
		return nil
	}
}

func (o *Outbox) scheduleRetry(op *operation) {
	delay := backoff(op.Attempt, o.cfg.RetryInitial, o.cfg.RetryMax)
	o.retryWG.Add(1)
	timer := time.NewTimer(delay)
	go func(rec *operation) {
		defer o.retryWG.Done()
		defer timer.Stop()
		select {
		case <-timer.C:
			select {
			case o.workCh <- rec:
			case <-o.stopCh:
			}
		case <-o.stopCh:
		}
	}(op)
}

func (o *Outbox) deadLetter(op *operation) {
	entry := o.logger.WithFields(log.Fields{"op": op.Kind, "event": op.EventID, "task": op.TaskID, "attempts": op.Attempt, "last_error": op.LastErr})
	if o.dead == nil {
		entry.Warn("calendar operation abandoned after retries")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
	defer cancel()
	if err := o.dead.Store(ctx, DeadRecord{
		ID:        op.ID,
		Kind:      op.Kind,
		EventID:   op.EventID,
		TaskID:    op.TaskID,
		Attempts:  op.Attempt,
		LastError: op.LastErr,
		Queued:    op.Queued,
	}); err != nil {
		entry.WithError(err).Error("failed to dead-letter calendar operation")
		return
	}
	entry.Warn("calendar operation dead-lettered after retries")
}

// Stats reports outbox counters, exposed on the health surface.
type OutboxStats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Buffered  int    `json:"buffered"`
}

func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		Delivered: o.delivered.Load(),
		Dropped:   o.dropped.Load(),
		Buffered:  len(o.workCh),
	}
}

func backoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	if attempt <= 0 {
		return initial
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if d > float64(max) {
		d = float64(max)
	}
	jitter := 0.2 * d
	return time.Duration(d + (rand.Float64()-0.5)*2*jitter)
}
