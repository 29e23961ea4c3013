package todoist

import (
	"sort"
	"time"
)

// dueTimeLayout is Todoist's floating due datetime ("2024-03-07T09:00:00").
// Fixed-timezone dues arrive in RFC 3339 instead.
const dueTimeLayout = "2006-01-02T15:04:05"

// Due describes when a task is due, as reported by the REST API.
type Due struct {
	IsRecurring bool   `json:"is_recurring"`
	String      string `json:"string"`
	Date        string `json:"date"`
	Datetime    string `json:"datetime,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// Time parses the due datetime in the given location. Returns the zero time
// when the due has a bare date only.
func (d *Due) Time(loc *time.Location) time.Time {
	if d == nil || d.Datetime == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, d.Datetime); err == nil {
		return t.In(loc)
	}
	t, err := time.ParseInLocation(dueTimeLayout, d.Datetime, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Duration is the upstream task duration descriptor.
type Duration struct {
	Amount int    `json:"amount"`
	Unit   string `json:"unit"` // "minute" or "day"
}

// Minutes converts the duration to whole minutes.
func (d *Duration) Minutes() int {
	if d == nil {
		return 0
	}
	if d.Unit == "day" {
		return d.Amount * 24 * 60
	}
	return d.Amount
}

// Task is a task record as returned by the Todoist REST v2 API.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SectionID   string    `json:"section_id,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	AssigneeID  string    `json:"assignee_id,omitempty"`
	Order       int       `json:"order"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	IsCompleted bool      `json:"is_completed"`
	Labels      []string  `json:"labels"`
	Priority    int       `json:"priority"`
	CreatorID   string    `json:"creator_id"`
	CreatedAt   string    `json:"created_at"`
	Due         *Due      `json:"due,omitempty"`
	Duration    *Duration `json:"duration,omitempty"`
	URL         string    `json:"url"`
}

// Sort orders tasks canonically: tasks with a due datetime chronologically
// ascending and ahead of tasks without one, then by descending priority, then
// by ascending upstream order index. The reconciliation merge relies on this
// ordering for default placement of freshly seen tasks.
func Sort(tasks []Task) {
	loc := time.Local
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		aDue, bDue := a.Due.Time(loc), b.Due.Time(loc)
		switch {
		case !aDue.IsZero() && bDue.IsZero():
			return true
		case aDue.IsZero() && !bDue.IsZero():
			return false
		case !aDue.IsZero() && !bDue.IsZero() && !aDue.Equal(bDue):
			return aDue.Before(bDue)
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Order < b.Order
	})
}
