package plan

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"planist/pkg/gcal"
	"planist/pkg/todoist"
)

// ErrUnknownTask is returned when a mutation references a task id that is not
// in the current plan.
var ErrUnknownTask = errors.New("plan: no such task")

// TaskSource is the external task tracker as the planner needs it.
// *todoist.Client satisfies it.
type TaskSource interface {
	ListActionable(ctx context.Context, when string) ([]todoist.Task, error)
	Complete(ctx context.Context, id string) error
	Reopen(ctx context.Context, id string) error
	// Postpone reports false when upstream declined the reschedule (task
	// already completed or due-less) without it being an error.
	Postpone(ctx context.Context, id, dueDate string, known *todoist.Task) (bool, error)
}

// EventSource is the read-only calendar feed. *gcal.Source satisfies it.
type EventSource interface {
	LoadTodayEvents(ctx context.Context) ([]gcal.Event, error)
}

// Planner owns the in-memory plan and runs syncs and user actions against
// it. User mutations are optimistic: the local task changes immediately, the
// upstream call is issued, and on failure the local change is rolled back.
// A result arriving after a newer call for the same task has completed is
// discarded.
type Planner struct {
	mu      sync.Mutex
	engine  *Engine
	source  TaskSource
	events  EventSource // nil when no calendars are configured
	gap     time.Duration
	tasks   []*Task
	version int64
	guard   callGuard
}

// NewPlanner creates a planner around the given engine and sources.
func NewPlanner(engine *Engine, source TaskSource, events EventSource, gap time.Duration) *Planner {
	return &Planner{engine: engine, source: source, events: events, gap: gap}
}

// Restore seeds the plan from a persisted snapshot.
func (p *Planner) Restore(tasks []*Task, version int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = tasks
	p.version = version
}

// Tasks returns the current plan in order.
func (p *Planner) Tasks() []*Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Task, len(p.tasks))
	copy(out, p.tasks)
	return out
}

// Version returns the version stamp of the last merge (or restore).
func (p *Planner) Version() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.version
}

// Sync fetches the tracker and calendar concurrently, then merges both into
// the plan and reflows the schedule. Both fetches must succeed: the merge is
// not valid on partial input.
func (p *Planner) Sync(ctx context.Context, when string) ([]*Task, int64, error) {
	var (
		tasks  []todoist.Task
		events []gcal.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = p.source.ListActionable(gctx, when)
		return err
	})
	if p.events != nil {
		g.Go(func() error {
			var err error
			events, err = p.events.LoadTodayEvents(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	merged, version := p.engine.Merge(p.tasks, tasks, events)
	Reflow(merged, p.engine.Now(), p.gap)
	p.tasks = merged
	p.version = version
	return merged, version, nil
}

// Add appends a manual task to the plan and returns it.
func (p *Planner) Add(title string) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := New(title)
	t.RecentlyChanged = true
	p.tasks = append(p.tasks, t)
	return t
}

// Renumber assigns a manual ordering slot and re-sorts the plan.
func (p *Planner) Renumber(id string, number int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := p.find(id)
	if t == nil {
		return ErrUnknownTask
	}
	t.Number = number
	reorder(p.tasks)
	return nil
}

// Complete marks the task done locally and closes it upstream.
func (p *Planner) Complete(ctx context.Context, id string) error {
	return p.mutate(ctx, id,
		func(t *Task) { t.Done = true },
		func(ctx context.Context, trackerID string) (bool, error) {
			return true, p.source.Complete(ctx, trackerID)
		})
}

// Reopen clears the done flag locally and reopens the task upstream.
func (p *Planner) Reopen(ctx context.Context, id string) error {
	return p.mutate(ctx, id,
		func(t *Task) { t.Done = false },
		func(ctx context.Context, trackerID string) (bool, error) {
			return true, p.source.Reopen(ctx, trackerID)
		})
}

// Postpone reschedules the task to date (yyyy-mm-dd) locally and upstream.
// When upstream declines the reschedule the local edit is undone too.
func (p *Planner) Postpone(ctx context.Context, id, date string) error {
	return p.mutate(ctx, id,
		func(t *Task) { t.Postponed = date },
		func(ctx context.Context, trackerID string) (bool, error) {
			return p.source.Postpone(ctx, trackerID, date, nil)
		})
}

// mutate applies a local change, issues the upstream call for tracker-backed
// tasks, and rolls the change back if the call fails or upstream declines
// it. Results of calls superseded by a newer completed call for the same
// task are ignored.
func (p *Planner) mutate(ctx context.Context, id string, apply func(*Task), upstream func(context.Context, string) (bool, error)) error {
	p.mu.Lock()
	t := p.find(id)
	if t == nil {
		p.mu.Unlock()
		return ErrUnknownTask
	}
	saved := t.Clone()
	apply(t)
	t.RecentlyChanged = true
	trackerID := t.TodoistTaskID
	seq := p.guard.begin(id)
	p.mu.Unlock()

	applied := true
	var err error
	if trackerID != "" {
		applied, err = upstream(ctx, trackerID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.guard.commit(id, seq) {
		// A newer call for this task already completed; this outcome is
		// stale either way.
		return nil
	}
	if err != nil {
		*t = *saved
		return err
	}
	if !applied {
		*t = *saved
	}
	return nil
}

func (p *Planner) find(id string) *Task {
	for _, t := range p.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// callGuard orders in-flight upstream calls per task id so that only the
// newest completed call may apply its outcome. All methods are called with
// the planner's mutex held.
type callGuard struct {
	issued  map[string]uint64
	applied map[string]uint64
}

func (g *callGuard) begin(id string) uint64 {
	if g.issued == nil {
		g.issued = make(map[string]uint64)
		g.applied = make(map[string]uint64)
	}
	g.issued[id]++
	return g.issued[id]
}

func (g *callGuard) commit(id string, seq uint64) bool {
	if g.applied == nil || seq <= g.applied[id] {
		return false
	}
	g.applied[id] = seq
	return true
}
