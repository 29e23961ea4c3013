package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultMinGapMinutes = 5

// Config is the environment-provided configuration surface.
type Config struct {
	// TodoistToken authenticates against the task tracker. Required.
	TodoistToken string
	// StorageURL is the base URL of the snapshot store; empty disables
	// persistence.
	StorageURL string
	// StorageKey is the key the plan snapshot is stored under.
	StorageKey string
	// GoogleCredentials is the path to the OAuth client credentials file.
	GoogleCredentials string
	// CalendarIDs lists the calendars to pull events from; empty disables
	// the event source.
	CalendarIDs []string
	// MinGap is the minimum gap scheduled between consecutive tasks.
	MinGap time.Duration
}

// Load reads configuration from PLANIST_* environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		TodoistToken:      os.Getenv("PLANIST_TODOIST_TOKEN"),
		StorageURL:        os.Getenv("PLANIST_STORAGE_URL"),
		StorageKey:        os.Getenv("PLANIST_STORAGE_KEY"),
		GoogleCredentials: os.Getenv("PLANIST_GOOGLE_CREDENTIALS"),
		MinGap:            defaultMinGapMinutes * time.Minute,
	}

	if cfg.TodoistToken == "" {
		return nil, fmt.Errorf("PLANIST_TODOIST_TOKEN is not set")
	}
	if cfg.StorageKey == "" {
		cfg.StorageKey = "plan"
	}
	if cfg.GoogleCredentials == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.GoogleCredentials = filepath.Join(home, ".config", "planist", "credentials.json")
		}
	}

	if ids := os.Getenv("PLANIST_GOOGLE_CALENDAR_IDS"); ids != "" {
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.CalendarIDs = append(cfg.CalendarIDs, id)
			}
		}
	}

	if raw := os.Getenv("PLANIST_MIN_GAP_MINUTES"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			return nil, fmt.Errorf("invalid PLANIST_MIN_GAP_MINUTES %q", raw)
		}
		cfg.MinGap = time.Duration(minutes) * time.Minute
	}

	return cfg, nil
}
