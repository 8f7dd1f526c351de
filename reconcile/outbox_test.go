package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"planner-api/calendar"
)

type flakyCalendar struct {
	fakeCalendar

	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *flakyCalendar) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *flakyCalendar) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

type recordingDeadLetter struct {
	mu   sync.Mutex
	recs []DeadRecord
}

func (r *recordingDeadLetter) Store(ctx context.Context, rec DeadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *recordingDeadLetter) Records() []DeadRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DeadRecord, len(r.recs))
	copy(out, r.recs)
	return out
}

func fastOutboxConfig() OutboxConfig {
	return OutboxConfig{
		Workers:      1,
		Buffer:       8,
		MaxAttempts:  3,
		CallTimeout:  time.Second,
		RetryInitial: time.Millisecond,
		RetryMax:     5 * time.Millisecond,
	}
}

func TestOutboxRetriesUntilSuccess(t *testing.T) {
	cal := &flakyCalendar{failures: 2}
	logger, _ := test.NewNullLogger()
	ob := NewOutbox(cal, fastOutboxConfig(), nil, logger)
	defer ob.Shutdown()

	if !ob.TryEnqueue(operation{Kind: opDelete, EventID: "evt-1", TaskID: "t1"}) {
		t.Fatal("enqueue should succeed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if deleted := cal.Deleted(); len(deleted) == 1 && deleted[0] == "evt-1" {
			if ob.Stats().Delivered != 1 {
				t.Fatalf("expected one delivery, stats=%+v", ob.Stats())
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("delete never succeeded, calls=%d", cal.Calls())
}

func TestOutboxDeadLettersAfterMaxAttempts(t *testing.T) {
	cal := &flakyCalendar{failures: 100}
	dead := &recordingDeadLetter{}
	logger, _ := test.NewNullLogger()
	ob := NewOutbox(cal, fastOutboxConfig(), dead, logger)
	defer ob.Shutdown()

	ob.TryEnqueue(operation{Kind: opDelete, EventID: "evt-1", TaskID: "t1"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recs := dead.Records(); len(recs) == 1 {
			rec := recs[0]
			if rec.Kind != opDelete || rec.EventID != "evt-1" || rec.Attempts != 3 {
				t.Fatalf("unexpected dead record: %+v", rec)
			}
			if rec.ID == "" || rec.LastError == "" {
				t.Fatalf("dead record missing id or error: %+v", rec)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("operation was never dead-lettered")
}

func TestOutboxTreatsVanishedEventAsSuccess(t *testing.T) {
	cal := &fakeCalendar{delErr: calendar.ErrNotFound}
	logger, _ := test.NewNullLogger()
	ob := NewOutbox(cal, fastOutboxConfig(), nil, logger)
	defer ob.Shutdown()

	ob.TryEnqueue(operation{Kind: opDelete, EventID: "evt-gone", TaskID: "t1"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if ob.Stats().Delivered == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("not-found delete should count as delivered")
}

func TestOutboxRejectsWhenSaturated(t *testing.T) {
	cfg := fastOutboxConfig()
	cfg.Workers = 1
	cfg.Buffer = 1
	logger, _ := test.NewNullLogger()

	// A calendar that blocks keeps the single worker busy.
	blocked := make(chan struct{})
	cal := &blockingCalendar{release: blocked}
	ob := NewOutbox(cal, cfg, nil, logger)
	defer func() {
		close(blocked)
		ob.Shutdown()
	}()

	ob.TryEnqueue(operation{Kind: opDelete, EventID: "a"})
	time.Sleep(20 * time.Millisecond) // let the worker pick it up
	ob.TryEnqueue(operation{Kind: opDelete, EventID: "b"})

	rejected := 0
	for i := 0; i < 8; i++ {
		if !ob.TryEnqueue(operation{Kind: opDelete, EventID: "c"}) {
			rejected++
		}
	}
	if rejected == 0 || ob.Stats().Dropped == 0 {
		t.Fatalf("expected saturation to reject operations, rejected=%d stats=%+v", rejected, ob.Stats())
	}
}

func TestOutboxShutdownSafeAgainstConcurrentEnqueue(t *testing.T) {
	logger, _ := test.NewNullLogger()
	ob := NewOutbox(&fakeCalendar{}, fastOutboxConfig(), nil, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			ob.TryEnqueue(operation{Kind: opDelete, EventID: "e"})
		}
	}()
	ob.Shutdown()
	<-done

	if ob.TryEnqueue(operation{Kind: opDelete, EventID: "late"}) {
		t.Fatal("enqueue after shutdown must be rejected")
	}
}

type blockingCalendar struct {
	fakeCalendar
	release chan struct{}
}

func (b *blockingCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestBackoffIsBoundedAndGrows(t *testing.T) {
	initial := 100 * time.Millisecond
	max := time.Second
	prevCeiling := time.Duration(0)
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(attempt, initial, max)
		if d <= 0 {
			t.Fatalf("attempt %d produced non-positive delay %v", attempt, d)
		}
		if d > max+max/5 {
			t.Fatalf("attempt %d exceeded jittered ceiling: %v", attempt, d)
		}
		if d > prevCeiling {
			prevCeiling = d
		}
	}
	if prevCeiling < initial {
		t.Fatalf("backoff never grew past the initial delay: %v", prevCeiling)
	}
}
