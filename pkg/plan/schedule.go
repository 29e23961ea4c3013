package plan

import (
	"time"

	"planist/pkg/util"
)

// Reflow recomputes planned start/finish times in place: undone, unpinned
// tasks with a duration are laid out sequentially from now, separated by at
// least gap. Tasks pinned to an upstream due time, and timed tasks without a
// duration, keep their times and push the cursor past their finish.
// Calendar-derived tasks are not pinned by their event: startTime stays the
// user's plan, and EventStartTimePassed compares it against the event's real
// start to surface drift.
func Reflow(tasks []*Task, now time.Time, gap time.Duration) {
	cursor := now
	for _, t := range tasks {
		if t.Done {
			continue
		}
		if t.StartPinned && t.StartTime != "" {
			cursor = advancePast(cursor, t, now, gap)
			continue
		}
		if t.Duration == 0 {
			if t.StartTime != "" {
				cursor = advancePast(cursor, t, now, gap)
			}
			continue
		}
		t.StartTime = util.ClockFormat(cursor)
		finish := cursor.Add(time.Duration(t.Duration) * time.Minute)
		t.FinishTime = util.ClockFormat(finish)
		cursor = finish.Add(gap)
	}
}

// advancePast moves the cursor beyond a task whose times are kept as-is.
func advancePast(cursor time.Time, t *Task, now time.Time, gap time.Duration) time.Time {
	finish := util.ParseClock(t.FinishTime, now)
	if finish.IsZero() {
		start := util.ParseClock(t.StartTime, now)
		if start.IsZero() {
			return cursor
		}
		finish = start.Add(time.Duration(t.Duration) * time.Minute)
	}
	if after := finish.Add(gap); after.After(cursor) {
		return after
	}
	return cursor
}
