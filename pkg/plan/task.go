package plan

import (
	"time"

	"planist/pkg/gcal"
	"planist/pkg/todoist"
	"planist/pkg/util"
)

// Task is the unified plan item, regardless of origin (manual, tracker,
// calendar). Zero values mean "unset" for the optional fields.
type Task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Duration   int    `json:"duration,omitempty"` // minutes
	Number     int    `json:"number,omitempty"`   // manual ordering slot, 1-based
	StartTime  string `json:"startTime,omitempty"`
	FinishTime string `json:"finishTime,omitempty"`
	Done       bool   `json:"done,omitempty"`
	Postponed  string `json:"postponed,omitempty"` // yyyy-mm-dd

	// RecentlyChanged is a transient UI hint, never persisted.
	RecentlyChanged bool `json:"-"`

	// StartPinned marks a start time that came from an upstream due time
	// this sync; Reflow leaves pinned tasks in place. Transient: the flag is
	// re-derived on every merge.
	StartPinned bool `json:"-"`

	// Tracker origin fields.
	TodoistTaskID   string `json:"todoistTaskId,omitempty"`
	TodoistPriority int    `json:"todoistPriority,omitempty"`

	// Calendar origin fields.
	EventID        string `json:"eventId,omitempty"`
	EventLink      string `json:"eventLink,omitempty"`
	EventStartTime string `json:"eventStartTime,omitempty"`
}

// New creates a manual task with a fresh identifier and documented defaults.
func New(title string) *Task {
	return &Task{ID: util.NewID(), Title: title}
}

// Origin identifies which external system, if any, produced a Task.
type Origin int

const (
	OriginManual Origin = iota
	OriginTracker
	OriginCalendar
)

// Origin classifies the task by its populated origin fields. A tracker id
// takes precedence: a task carries at most one meaningful origin per sync.
func (t *Task) Origin() Origin {
	switch {
	case t.TodoistTaskID != "":
		return OriginTracker
	case t.EventID != "":
		return OriginCalendar
	default:
		return OriginManual
	}
}

// URL returns a deep link into the task's origin system, or "" for manual
// tasks.
func (t *Task) URL() string {
	if t.TodoistTaskID != "" {
		return "https://todoist.com/showTask?id=" + t.TodoistTaskID
	}
	return t.EventLink
}

// ResetTodoist detaches the task from its tracker origin: postponement and
// tracker fields are cleared, identity and schedule slot stay.
func (t *Task) ResetTodoist() {
	t.Postponed = ""
	t.TodoistTaskID = ""
	t.TodoistPriority = 0
}

// EventStartTimePassed reports that the user's plan has drifted behind the
// actual calendar event: the task is not done, has both a planned start and
// a calendar start, and is planned later than the event begins.
func (t *Task) EventStartTimePassed() bool {
	return !t.Done && t.StartTime != "" && t.EventStartTime != "" && t.StartTime > t.EventStartTime
}

// ApplyTodoist updates the upstream-derived field group from a tracker task:
// title, priority, due-derived start/finish/duration, and completion (done is
// monotonic; upstream never un-completes a task here). Local fields (id,
// number, postponement) are untouched.
func (t *Task) ApplyTodoist(src todoist.Task, loc *time.Location) {
	t.TodoistTaskID = src.ID
	t.TodoistPriority = src.Priority
	t.Title = src.Content
	if src.IsCompleted {
		t.Done = true
	}
	if minutes := src.Duration.Minutes(); minutes > 0 {
		t.Duration = minutes
	}
	if due := src.Due.Time(loc); !due.IsZero() {
		t.StartTime = util.ClockFormat(due)
		if t.Duration > 0 {
			t.FinishTime = util.ClockFormat(due.Add(time.Duration(t.Duration) * time.Minute))
		}
		t.StartPinned = true
	} else {
		t.StartPinned = false
	}
}

// ApplyEvent updates the upstream-derived field group from a calendar event:
// title from the summary, duration from the event span, plus the calendar
// link and start time. Local fields are untouched. An all-day event carries
// no time block to plan around, so it contributes title and link only.
func (t *Task) ApplyEvent(ev gcal.Event) {
	t.EventID = ev.ID
	t.EventLink = ev.HTMLLink
	t.Title = ev.Summary
	if ev.AllDay {
		return
	}
	if !ev.Start.IsZero() {
		t.EventStartTime = util.ClockFormat(ev.Start)
		if !ev.End.IsZero() {
			t.Duration = util.MinutesBetween(ev.Start, ev.End)
		}
	}
}

// Clone returns a shallow copy, used for rollback of optimistic mutations.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}
