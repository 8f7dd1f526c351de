// Package reconcile keeps date-bearing tasks mirrored as events in the
// external calendar, best-effort. Calendar failures are logged and absorbed
// here; they never fail the task mutation that triggered them.
package reconcile

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"planner-api/calendar"
	"planner-api/domain"
)

// legacyTitlePrefix was prepended to event titles by earlier revisions of the
// app. Discovery still matches it so historical events get cleaned up.
const legacyTitlePrefix = "[Task] "

// CalendarAPI is the slice of the calendar capability the engine needs.
type CalendarAPI interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, event calendar.Event) (calendar.Event, error)
	UpdateEvent(ctx context.Context, eventID string, event calendar.Event) (calendar.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Config controls the correlation conventions of the engine.
type Config struct {
	// TitlePrefix is prepended to event titles on create and honored by
	// discovery search. One convention, applied to both paths; empty means
	// bare task titles.
	TitlePrefix string
	// DiscoveryCleanup enables the title+date search fallback on removal.
	// It can delete an unrelated event that shares the exact title on the
	// same day, so it is switchable.
	DiscoveryCleanup bool
}

// Reconciler drives a task's calendar mirror through its states: no date and
// no event, date without event, date with event, deleted.
type Reconciler struct {
	cal    CalendarAPI
	cfg    Config
	outbox *Outbox
	logger *log.Logger
}

// New creates a Reconciler. A nil CalendarAPI means the calendar is not
// configured; every operation becomes a logged no-op. The outbox is optional
// retry infrastructure and may be nil.
func New(cal CalendarAPI, cfg Config, outbox *Outbox, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Reconciler{cal: cal, cfg: cfg, outbox: outbox, logger: logger}
}

// EnsureEvent creates a calendar event for a date-bearing task and returns
// the provider-assigned id, or "" when no event was created. Failures are
// logged, never returned: the task operation proceeds regardless.
func (r *Reconciler) EnsureEvent(ctx context.Context, task domain.Task) string {
	if task.DueDate == "" {
		return ""
	}
	if r.cal == nil {
		r.logger.WithField("task", task.ID).Debug("calendar not configured, skipping event creation")
		return ""
	}
	event, err := r.buildEvent(task)
	if err != nil {
		r.logger.WithError(err).WithField("task", task.ID).Warn("cannot derive event window, skipping sync")
		return ""
	}
	created, err := r.cal.CreateEvent(ctx, event)
	if err != nil {
		r.logSyncFailure("create", task, err)
		return ""
	}
	r.logger.WithFields(log.Fields{"task": task.ID, "event": created.ID}).Debug("calendar event created")
	return created.ID
}

// ReconcileEvent brings the task's mirror into agreement with its current
// fields. eventID is the last known event reference, possibly stale. The
// returned id is the reference to persist with the task; "" clears it.
func (r *Reconciler) ReconcileEvent(ctx context.Context, eventID string, task domain.Task) string {
	if r.cal == nil {
		if task.DueDate == "" {
			return ""
		}
		return eventID
	}
	if task.DueDate == "" {
		// Entering the no-date state removes any known event.
		if eventID != "" {
			r.deleteByID(ctx, eventID, task)
		}
		return ""
	}
	if eventID == "" {
		return r.EnsureEvent(ctx, task)
	}

	event, err := r.buildEvent(task)
	if err != nil {
		r.logger.WithError(err).WithField("task", task.ID).Warn("cannot derive event window, keeping existing event")
		return eventID
	}
	if _, err := r.cal.UpdateEvent(ctx, eventID, event); err == nil {
		return eventID
	} else if errors.Is(err, calendar.ErrNotFound) {
		// The reference went stale: the provider no longer has the event.
		// Recreate and persist a fresh id instead of carrying the dangler.
		r.logger.WithFields(log.Fields{"task": task.ID, "event": eventID}).Warn("stale calendar reference, recreating event")
		created, cerr := r.cal.CreateEvent(ctx, event)
		if cerr != nil {
			r.logSyncFailure("recreate", task, cerr)
			return ""
		}
		return created.ID
	} else {
		r.logSyncFailure("update", task, err)
		r.retryLater(operation{Kind: opUpdate, EventID: eventID, Event: &event, TaskID: task.ID})
		return eventID
	}
}

// RemoveEvent deletes the task's calendar mirror: by stored id when known,
// then by discovery search as a second pass. Intended to run before the task
// record itself is deleted.
func (r *Reconciler) RemoveEvent(ctx context.Context, task domain.Task) {
	if r.cal == nil {
		return
	}
	removed := ""
	if task.CalendarEventID != "" {
		if r.deleteByID(ctx, task.CalendarEventID, task) {
			removed = task.CalendarEventID
		}
	}
	if !r.cfg.DiscoveryCleanup || task.DueDate == "" {
		return
	}
	r.discoveryCleanup(ctx, task, removed)
}

// discoveryCleanup lists the whole local day of the due date and deletes
// every event whose title matches the task. Title+date is a weak correlation
// key; a same-titled unrelated event on that day is collateral, which is why
// each deletion is logged as imprecise.
func (r *Reconciler) discoveryCleanup(ctx context.Context, task domain.Task, alreadyRemoved string) {
	dayMin, dayMax, err := DayWindow(task.DueDate)
	if err != nil {
		r.logger.WithError(err).WithField("task", task.ID).Warn("discovery cleanup skipped")
		return
	}
	events, err := r.cal.ListEvents(ctx, dayMin, dayMax)
	if err != nil {
		r.logSyncFailure("discovery-list", task, err)
		return
	}
	for _, ev := range events {
		if ev.ID == "" || ev.ID == alreadyRemoved || !r.titleMatches(ev.Title, task.Title) {
			continue
		}
		r.logger.WithFields(log.Fields{
			"task":  task.ID,
			"event": ev.ID,
			"title": ev.Title,
		}).Info("discovery cleanup deleting event matched by title and date (imprecise)")
		if err := r.cal.DeleteEvent(ctx, ev.ID); err != nil && !errors.Is(err, calendar.ErrNotFound) {
			r.logSyncFailure("discovery-delete", task, err)
		}
	}
}

func (r *Reconciler) deleteByID(ctx context.Context, eventID string, task domain.Task) bool {
	if err := r.cal.DeleteEvent(ctx, eventID); err != nil {
		if errors.Is(err, calendar.ErrNotFound) {
			// Already gone, which is the state we wanted.
			return true
		}
		r.logSyncFailure("delete", task, err)
		r.retryLater(operation{Kind: opDelete, EventID: eventID, TaskID: task.ID})
		return false
	}
	return true
}

func (r *Reconciler) buildEvent(task domain.Task) (calendar.Event, error) {
	start, end, allDay, err := EventWindow(task.DueDate, task.DueTime)
	if err != nil {
		return calendar.Event{}, err
	}
	return calendar.Event{
		Title:       r.cfg.TitlePrefix + task.Title,
		Description: task.Description,
		Start:       start,
		End:         end,
		AllDay:      allDay,
	}, nil
}

func (r *Reconciler) titleMatches(eventTitle, taskTitle string) bool {
	if eventTitle == "" || taskTitle == "" {
		return false
	}
	return eventTitle == taskTitle ||
		eventTitle == r.cfg.TitlePrefix+taskTitle ||
		eventTitle == legacyTitlePrefix+taskTitle
}

func (r *Reconciler) retryLater(op operation) {
	if r.outbox == nil {
		return
	}
	if !r.outbox.TryEnqueue(op) {
		r.logger.WithFields(log.Fields{"task": op.TaskID, "op": op.Kind}).Warn("calendar retry outbox saturated, dropping operation")
	}
}

func (r *Reconciler) logSyncFailure(op string, task domain.Task, err error) {
	entry := r.logger.WithError(err).WithFields(log.Fields{"op": op, "task": task.ID})
	if errors.Is(err, calendar.ErrUnauthenticated) {
		entry.Info("calendar unavailable, task operation continues without sync")
		return
	}
	entry.Warn("calendar sync failed, task operation continues")
}
