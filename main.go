package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strconv"
	"time"

	"planist/pkg/auth"
	"planist/pkg/config"
	"planist/pkg/gcal"
	"planist/pkg/plan"
	"planist/pkg/storage"
	"planist/pkg/todoist"
	"planist/pkg/util"
)

const snapshotFile = "snapshot.json"

func main() {
	doAuth := flag.Bool("auth", false, "Re-run Google Calendar authorization")
	when := flag.String("when", "today", "Which day to plan: today or tomorrow")
	completeArg := flag.String("complete", "", "Mark a task done (agenda position or task id)")
	reopenArg := flag.String("reopen", "", "Reopen a completed task (agenda position or task id)")
	postponeArg := flag.String("postpone", "", "Move a task to tomorrow (agenda position or task id)")
	addTitle := flag.String("add", "", "Add a manual task with the given title")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if *doAuth {
		if err := auth.RemoveToken(); err != nil {
			log.Fatalf("Could not remove existing token: %v", err)
		}
		session, err := auth.NewCalendarSession(cfg.GoogleCredentials)
		if err != nil {
			log.Fatalf("Authentication setup failed: %v", err)
		}
		if _, err := session.Token(ctx); err != nil {
			log.Fatalf("Authentication failed: %v", err)
		}
		log.Println("Authentication successful.")
		return
	}

	tracker := todoist.NewClient(cfg.TodoistToken)

	var events plan.EventSource
	if len(cfg.CalendarIDs) > 0 {
		session, err := auth.NewCalendarSession(cfg.GoogleCredentials)
		if err != nil {
			log.Printf("Warning: calendar disabled: %v", err)
		} else if src, err := gcal.NewSource(ctx, session, cfg.CalendarIDs); err != nil {
			log.Printf("Warning: calendar disabled: %v", err)
		} else {
			events = src
		}
	}

	planner := plan.NewPlanner(plan.NewEngine(), tracker, events, cfg.MinGap)

	var store *storage.Client
	var cache *storage.Cache
	if cfg.StorageURL != "" {
		store = storage.NewClient(cfg.StorageURL)
		dir, err := auth.ConfigDir()
		if err != nil {
			log.Fatalf("Could not locate config directory: %v", err)
		}
		cache, err = storage.NewCache(filepath.Join(dir, snapshotFile))
		if err != nil {
			log.Fatalf("Could not open snapshot cache: %v", err)
		}
		if err := restorePlan(ctx, planner, store, cache, cfg.StorageKey); err != nil {
			log.Printf("Warning: could not restore persisted plan: %v", err)
		}
	}

	if *addTitle != "" {
		planner.Add(*addTitle)
	}
	if err := runAction(ctx, planner, *completeArg, *reopenArg, *postponeArg); err != nil {
		log.Fatalf("Action failed: %v", err)
	}

	base := planner.Version()
	tasks, version, err := planner.Sync(ctx, *when)
	if err != nil {
		log.Fatalf("Sync failed: %v", err)
	}

	if store != nil {
		if err := persistPlan(ctx, planner, store, cache, cfg.StorageKey, *when, tasks, version, base); err != nil {
			log.Printf("Warning: could not persist plan: %v", err)
		}
	}

	printAgenda(planner.Tasks())
}

// runAction performs at most one user mutation before the sync.
func runAction(ctx context.Context, planner *plan.Planner, completeArg, reopenArg, postponeArg string) error {
	switch {
	case completeArg != "":
		return planner.Complete(ctx, resolveTaskID(planner, completeArg))
	case reopenArg != "":
		return planner.Reopen(ctx, resolveTaskID(planner, reopenArg))
	case postponeArg != "":
		tomorrow := util.DateFormat(time.Now().Add(24 * time.Hour))
		return planner.Postpone(ctx, resolveTaskID(planner, postponeArg), tomorrow)
	}
	return nil
}

// resolveTaskID accepts either a 1-based agenda position or a task id.
func resolveTaskID(planner *plan.Planner, arg string) string {
	tasks := planner.Tasks()
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(tasks) {
		return tasks[n-1].ID
	}
	return arg
}

// restorePlan seeds the planner from the store, falling back to the local
// snapshot cache when the store reports no change or is unreachable.
func restorePlan(ctx context.Context, planner *plan.Planner, store *storage.Client, cache *storage.Cache, key string) error {
	snap, err := store.Get(ctx, key, cache.Snapshot().Timestamp)
	switch {
	case errors.Is(err, storage.ErrNotModified):
		cached := cache.Snapshot()
		snap = &cached
	case err != nil:
		cached := cache.Snapshot()
		if cached.Timestamp == 0 {
			return err
		}
		log.Printf("Warning: store unreachable, using cached snapshot: %v", err)
		snap = &cached
	default:
		cache.Update(*snap)
		if err := cache.Save(); err != nil {
			log.Printf("Warning: could not save snapshot cache: %v", err)
		}
	}

	if len(snap.Value) == 0 {
		return nil
	}
	var tasks []*plan.Task
	if err := json.Unmarshal(snap.Value, &tasks); err != nil {
		return fmt.Errorf("corrupt persisted plan: %w", err)
	}
	planner.Restore(tasks, snap.Timestamp)
	return nil
}

// persistPlan writes the merged plan. On a timestamp conflict it re-fetches,
// re-merges, and retries once.
func persistPlan(ctx context.Context, planner *plan.Planner, store *storage.Client, cache *storage.Cache, key, when string, tasks []*plan.Task, version, base int64) error {
	err := store.Set(ctx, key, version, base, tasks)
	if errors.Is(err, storage.ErrConflict) {
		log.Println("Plan was updated elsewhere, re-merging...")
		if err := restorePlan(ctx, planner, store, cache, key); err != nil {
			return err
		}
		base = planner.Version()
		tasks, version, err = planner.Sync(ctx, when)
		if err != nil {
			return err
		}
		err = store.Set(ctx, key, version, base, tasks)
	}
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	cache.Update(storage.Snapshot{Timestamp: version, Value: encoded})
	return cache.Save()
}

func printAgenda(tasks []*plan.Task) {
	if len(tasks) == 0 {
		fmt.Println("Nothing planned.")
		return
	}
	for i, t := range tasks {
		marker := " "
		if t.Done {
			marker = "x"
		}
		span := t.StartTime
		if t.FinishTime != "" {
			span += "-" + t.FinishTime
		}
		drift := ""
		if t.EventStartTimePassed() {
			drift = " (event already started)"
		}
		fmt.Printf("%2d. [%s] %-11s %s%s\n", i+1, marker, span, t.Title, drift)
	}
}
