package handler

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/hal9000y/workspace-mcp/internal/action"
	"github.com/hal9000y/workspace-mcp/internal/render"
	"github.com/hal9000y/workspace-mcp/internal/schema"
)

// CalendarService is the slice of the remote client the calendar family needs.
type CalendarService interface {
	CreateEvent(ctx context.Context, accountID string, event *calendar.Event) (*calendar.Event, error)
	ListEvents(ctx context.Context, accountID, timeMin, timeMax string, limit int64) ([]*calendar.Event, error)
}

// Calendar implements the calendar.* actions.
type Calendar struct {
	svc CalendarService
	rnd renderer
}

// NewCalendar creates the calendar action family.
func NewCalendar(svc CalendarService, rnd renderer) *Calendar {
	return &Calendar{svc: svc, rnd: rnd}
}

// Descriptors enumerates the calendar.* actions.
func (h *Calendar) Descriptors() []action.Descriptor {
	return []action.Descriptor{
		{Name: "calendar.create", Schema: h.createSchema(), Handler: h.create},
		{Name: "calendar.list", Schema: h.listSchema(), Handler: h.list, Safe: true},
	}
}

func (h *Calendar) createSchema() *schema.Schema {
	return &schema.Schema{
		Action: "calendar.create",
		Doc:    docLink("calendar.create"),
		Fields: []schema.Field{
			{Name: "summary", Type: schema.String, Required: true, MinLen: 1, MaxLen: 512, Doc: "event title", Example: "Planning sync"},
			{Name: "start", Type: schema.Timestamp, Required: true, Doc: "event start", Example: "2026-09-01T10:00:00Z"},
			{Name: "end", Type: schema.Timestamp, Required: true, Doc: "event end", Example: "2026-09-01T11:00:00Z"},
			{Name: "attendees", Type: schema.AddressList, Doc: "attendee address or list"},
			{Name: "location", Type: schema.String, MaxLen: 1024, Doc: "free-text location"},
			{Name: "description", Type: schema.String, Doc: "event description"},
			{Name: "theme", Type: schema.Enum, Values: h.rnd.ThemeNames(), Default: render.DefaultTheme, Doc: "theme for the invite card"},
		},
		Check: func(p schema.Params) []schema.Violation {
			start, end := p.Time("start"), p.Time("end")
			if !end.After(start) {
				return []schema.Violation{{
					Field:    "end",
					Expected: "timestamp after start",
					Got:      end.Format(time.RFC3339),
					Message:  `"end" must be after "start"`,
				}}
			}
			return nil
		},
	}
}

// EventResult reports the created or listed event.
type EventResult struct {
	EventID    string   `json:"event_id"`
	Summary    string   `json:"summary"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Location   string   `json:"location,omitempty"`
	HTMLLink   string   `json:"html_link,omitempty"`
	Attendees  []string `json:"attendees,omitempty"`
	InviteHTML string   `json:"invite_html,omitempty"`
}

func (h *Calendar) create(ctx context.Context, accountID string, p schema.Params) (any, error) {
	start := p.Time("start")
	end := p.Time("end")

	event := &calendar.Event{
		Summary:     p.String("summary"),
		Location:    p.String("location"),
		Description: p.String("description"),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	for _, addr := range p.StringList("attendees") {
		event.Attendees = append(event.Attendees, &calendar.EventAttendee{Email: addr})
	}

	created, err := h.svc.CreateEvent(ctx, accountID, event)
	if err != nil {
		return nil, fmt.Errorf("svc.CreateEvent failed: %w", err)
	}

	result := EventResult{
		EventID:   created.Id,
		Summary:   created.Summary,
		Start:     eventTime(created.Start),
		End:       eventTime(created.End),
		Location:  created.Location,
		HTMLLink:  created.HtmlLink,
		Attendees: p.StringList("attendees"),
	}

	// The invite card is a courtesy rendering; losing it never fails the
	// created event.
	out, err := h.rnd.Render("invite", map[string]any{
		"summary":     p.String("summary"),
		"start":       start.Format(time.RFC3339),
		"end":         end.Format(time.RFC3339),
		"location":    p.String("location"),
		"description": p.String("description"),
	}, p.String("theme"))
	if err != nil {
		log.Println(fmt.Errorf("rnd.Render failed, omitting invite card: %w", err))
	} else {
		result.InviteHTML = out.HTML
	}

	return result, nil
}

func (h *Calendar) listSchema() *schema.Schema {
	return &schema.Schema{
		Action: "calendar.list",
		Doc:    docLink("calendar.list"),
		Fields: []schema.Field{
			{Name: "time_min", Type: schema.Timestamp, Doc: "earliest event start", Example: "2026-09-01T00:00:00Z"},
			{Name: "time_max", Type: schema.Timestamp, Doc: "latest event start"},
			{Name: "limit", Type: schema.Int, Min: 1, Max: maxListLimit, Default: int64(defaultListLimit), Doc: "maximum events to return"},
		},
		Check: func(p schema.Params) []schema.Violation {
			timeMin, timeMax := p.Time("time_min"), p.Time("time_max")
			if !timeMin.IsZero() && !timeMax.IsZero() && !timeMax.After(timeMin) {
				return []schema.Violation{{
					Field:    "time_max",
					Expected: "timestamp after time_min",
					Got:      timeMax.Format(time.RFC3339),
					Message:  `"time_max" must be after "time_min"`,
				}}
			}
			return nil
		},
	}
}

// EventListResult is the calendar.list response.
type EventListResult struct {
	Events       []EventResult `json:"events"`
	TotalResults int           `json:"total_results"`
}

func (h *Calendar) list(ctx context.Context, accountID string, p schema.Params) (any, error) {
	timeMin, timeMax := "", ""
	if t := p.Time("time_min"); !t.IsZero() {
		timeMin = t.Format(time.RFC3339)
	}
	if t := p.Time("time_max"); !t.IsZero() {
		timeMax = t.Format(time.RFC3339)
	}

	events, err := h.svc.ListEvents(ctx, accountID, timeMin, timeMax, p.Int("limit"))
	if err != nil {
		return nil, fmt.Errorf("svc.ListEvents failed: %w", err)
	}

	out := make([]EventResult, 0, len(events))
	for _, ev := range events {
		result := EventResult{
			EventID:  ev.Id,
			Summary:  ev.Summary,
			Start:    eventTime(ev.Start),
			End:      eventTime(ev.End),
			Location: ev.Location,
			HTMLLink: ev.HtmlLink,
		}
		for _, att := range ev.Attendees {
			result.Attendees = append(result.Attendees, att.Email)
		}
		out = append(out, result)
	}

	return EventListResult{Events: out, TotalResults: len(out)}, nil
}

func eventTime(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.DateTime != "" {
		return dt.DateTime
	}
	return dt.Date
}
