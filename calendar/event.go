package calendar

import (
	"time"
)

// Event is an external-provider-managed calendar entry. The provider assigns
// the id; everything else is caller-supplied.
type Event struct {
	ID          string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	AllDay      bool
}

const dateOnly = "2006-01-02"

// wireEvent is the JSON shape sent on create/update.
type wireEvent struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"allDay"`
}

func toWire(e Event) wireEvent {
	return wireEvent{
		Title:       e.Title,
		Description: e.Description,
		Start:       e.Start.Format(time.RFC3339),
		End:         e.End.Format(time.RFC3339),
		AllDay:      e.AllDay,
	}
}

// listItem tolerates the provider's raw item shape: the title may arrive as
// "summary", and start/end are either date-only or dateTime values.
type listItem struct {
	ID          string       `json:"id"`
	Summary     string       `json:"summary"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Start       listItemTime `json:"start"`
	End         listItemTime `json:"end"`
}

type listItemTime struct {
	Date     string `json:"date"`
	DateTime string `json:"dateTime"`
}

func (it listItem) toEvent() Event {
	ev := Event{ID: it.ID, Title: it.Summary, Description: it.Description}
	if ev.Title == "" {
		ev.Title = it.Title
	}
	ev.Start, ev.AllDay = parseItemTime(it.Start)
	ev.End, _ = parseItemTime(it.End)
	return ev
}

func parseItemTime(t listItemTime) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err == nil {
			return parsed, false
		}
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation(dateOnly, t.Date, time.Local)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
