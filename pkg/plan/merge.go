package plan

import (
	"sort"
	"time"

	"planist/pkg/gcal"
	"planist/pkg/todoist"
)

// Engine merges freshly fetched source data with the previously persisted
// plan, preserving local annotations across syncs.
type Engine struct {
	// Now is the clock behind version stamps, replaceable in tests.
	Now func() time.Time

	lastVersion int64
}

// NewEngine returns an Engine stamping versions from the wall clock.
func NewEngine() *Engine {
	return &Engine{Now: time.Now}
}

// Merge produces the day's unified ordered task list from the previous local
// list, the tracker tasks (in canonical order), and today's calendar events
// (in start order). Local annotations (number, done, postponed) survive;
// new external items are inserted and stale ones removed. The returned
// version stamp increases on every call.
//
// Merge never fails: missing or extra source data degrades to "no match" or
// "new item".
func (e *Engine) Merge(prev []*Task, tasks []todoist.Task, events []gcal.Event) ([]*Task, int64) {
	loc := e.Now().Location()

	byTracker := make(map[string]*Task)
	byEvent := make(map[string]*Task)
	for _, t := range prev {
		if t.TodoistTaskID != "" {
			byTracker[t.TodoistTaskID] = t
		}
		if t.EventID != "" {
			byEvent[t.EventID] = t
		}
	}

	kept := make(map[*Task]bool)
	merged := make([]*Task, 0, len(prev)+len(tasks)+len(events))

	// Tracker tasks arrive first, in canonical source order.
	for _, src := range tasks {
		if existing, ok := byTracker[src.ID]; ok {
			if !kept[existing] {
				existing.ApplyTodoist(src, loc)
				merged = append(merged, existing)
				kept[existing] = true
			}
			continue
		}
		t := New(src.Content)
		t.ApplyTodoist(src, loc)
		t.RecentlyChanged = true
		merged = append(merged, t)
	}

	// Then calendar events, in start order.
	for _, ev := range events {
		if existing, ok := byEvent[ev.ID]; ok {
			if !kept[existing] {
				existing.ApplyEvent(ev)
				merged = append(merged, existing)
				kept[existing] = true
			}
			continue
		}
		t := New(ev.Summary)
		t.ApplyEvent(ev)
		t.RecentlyChanged = true
		merged = append(merged, t)
	}

	// Surviving local entries keep their previous relative order. A tracker
	// task gone upstream is kept only as a completed record; a vanished
	// calendar event is always dropped.
	for _, t := range prev {
		if kept[t] {
			continue
		}
		switch t.Origin() {
		case OriginTracker:
			if t.Done {
				merged = append(merged, t)
			}
		case OriginCalendar:
			// dropped
		default:
			merged = append(merged, t)
		}
	}

	reorder(merged)
	return merged, e.stamp()
}

// reorder sorts numbered entries among themselves by ascending number while
// entries without a number keep their arrival positions.
func reorder(tasks []*Task) {
	var slots []int
	var numbered []*Task
	for i, t := range tasks {
		if t.Number > 0 {
			slots = append(slots, i)
			numbered = append(numbered, t)
		}
	}
	sort.SliceStable(numbered, func(i, j int) bool {
		return numbered[i].Number < numbered[j].Number
	})
	for k, i := range slots {
		tasks[i] = numbered[k]
	}
}

// stamp returns a version strictly greater than any previously issued.
func (e *Engine) stamp() int64 {
	v := e.Now().UnixMilli()
	if v <= e.lastVersion {
		v = e.lastVersion + 1
	}
	e.lastVersion = v
	return v
}
