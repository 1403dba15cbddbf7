package gclient

import (
	"context"
	"fmt"

	"google.golang.org/api/calendar/v3"
)

const primaryCalendarID = "primary"

func (c *Client) newCalendar(ctx context.Context, accountID string) (*calendar.Service, error) {
	svc, err := calendar.NewService(ctx, c.apiOptions(ctx, accountID)...)
	if err != nil {
		return nil, fmt.Errorf("calendar.NewService failed: %w", err)
	}
	return svc, nil
}

// CreateEvent inserts an event into the primary calendar.
func (c *Client) CreateEvent(ctx context.Context, accountID string, event *calendar.Event) (*calendar.Event, error) {
	return call(ctx, c.policy, "calendar.create", func(ctx context.Context) (*calendar.Event, error) {
		svc, err := c.newCalendar(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Events.Insert(primaryCalendarID, event).SendUpdates("all").Context(ctx).Do()
	})
}

// ListEvents lists upcoming events in [timeMin, timeMax], expanded to
// single instances and ordered by start time, following pagination until
// limit events are collected.
func (c *Client) ListEvents(ctx context.Context, accountID, timeMin, timeMax string, limit int64) ([]*calendar.Event, error) {
	var events []*calendar.Event
	pageToken := ""

	for {
		remaining := limit - int64(len(events))
		if remaining <= 0 {
			return events, nil
		}

		result, err := call(ctx, c.policy, "calendar.list", func(ctx context.Context) (*calendar.Events, error) {
			svc, err := c.newCalendar(ctx, accountID)
			if err != nil {
				return nil, err
			}
			req := svc.Events.List(primaryCalendarID).
				SingleEvents(true).
				OrderBy("startTime").
				MaxResults(remaining).
				PageToken(pageToken).
				Context(ctx)
			if timeMin != "" {
				req = req.TimeMin(timeMin)
			}
			if timeMax != "" {
				req = req.TimeMax(timeMax)
			}
			return req.Do()
		})
		if err != nil {
			return nil, err
		}

		events = append(events, result.Items...)
		pageToken = result.NextPageToken
		if pageToken == "" {
			return events, nil
		}
	}
}
