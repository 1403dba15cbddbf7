package gclient

import (
	"context"
	"fmt"

	"google.golang.org/api/people/v1"
)

func (c *Client) newPeople(ctx context.Context, accountID string) (*people.Service, error) {
	svc, err := people.NewService(ctx, c.apiOptions(ctx, accountID)...)
	if err != nil {
		return nil, fmt.Errorf("people.NewService failed: %w", err)
	}
	return svc, nil
}

// SearchDirectory searches the domain directory for people matching query.
func (c *Client) SearchDirectory(ctx context.Context, accountID, query string, limit int64) ([]*people.Person, error) {
	result, err := call(ctx, c.policy, "directory.search", func(ctx context.Context) (*people.SearchDirectoryPeopleResponse, error) {
		svc, err := c.newPeople(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.People.SearchDirectoryPeople().
			Query(query).
			ReadMask("names,emailAddresses,organizations").
			Sources("DIRECTORY_SOURCE_TYPE_DOMAIN_PROFILE").
			PageSize(int64ToPageSize(limit)).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, err
	}
	return result.People, nil
}

func int64ToPageSize(limit int64) int64 {
	// The directory endpoint caps page size at 500.
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
