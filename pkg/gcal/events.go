package gcal

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"planist/pkg/auth"
	"planist/pkg/util"
)

// Event is a calendar event normalized for planning: recurring events are
// already expanded to instances and times are in the user's location.
type Event struct {
	ID       string
	Summary  string
	HTMLLink string
	Start    time.Time
	End      time.Time
	AllDay   bool
}

// Source lists today's events from a set of calendars, read-only.
type Source struct {
	srv         *calendar.Service
	calendarIDs []string

	// Now is the clock used to compute the "rest of today" window.
	Now func() time.Time
}

// NewSource builds a Source authenticated through the given session.
func NewSource(ctx context.Context, session *auth.Session, calendarIDs []string) (*Source, error) {
	client, err := session.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcal: failed to get authenticated client: %w", err)
	}
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("gcal: unable to create calendar service: %w", err)
	}
	return &Source{srv: srv, calendarIDs: calendarIDs, Now: time.Now}, nil
}

// LoadTodayEvents lists events between now and end-of-today across all
// configured calendars, sorted ascending by start time. A failing calendar
// contributes no events instead of failing the whole call.
func (s *Source) LoadTodayEvents(ctx context.Context) ([]Event, error) {
	now := s.Now()
	timeMax := util.EndOfDay(now)

	var result []Event
	for _, calendarID := range s.calendarIDs {
		items, err := s.listWindow(ctx, calendarID, now, timeMax)
		if err != nil {
			log.Printf("Warning: could not list events from calendar %s: %v", calendarID, err)
			continue
		}
		for _, item := range items {
			result = append(result, FromAPI(item, now.Location()))
		}
	}
	SortByStart(result)
	return result, nil
}

func (s *Source) listWindow(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	// The RFC 3339 offsets pin the window to the user's local day.
	events, err := s.srv.Events.List(calendarID).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		ShowDeleted(false).
		SingleEvents(true).
		MaxAttendees(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return events.Items, nil
}

// FromAPI projects an API event into the normalized Event.
func FromAPI(item *calendar.Event, loc *time.Location) Event {
	ev := Event{
		ID:       item.Id,
		Summary:  item.Summary,
		HTMLLink: item.HtmlLink,
	}
	ev.Start, ev.AllDay = parseEventTime(item.Start, loc)
	ev.End, _ = parseEventTime(item.End, loc)
	return ev
}

func parseEventTime(edt *calendar.EventDateTime, loc *time.Location) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.In(loc), false
	}
	if edt.Date != "" {
		t, err := time.ParseInLocation("2006-01-02", edt.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// SortByStart orders events ascending by start time; events without a start
// sort first.
func SortByStart(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
}
