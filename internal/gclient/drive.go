package gclient

import (
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
)

const driveFileFields = "id, name, mimeType, size, modifiedTime, webViewLink, owners(emailAddress)"

func (c *Client) newDrive(ctx context.Context, accountID string) (*drive.Service, error) {
	svc, err := drive.NewService(ctx, c.apiOptions(ctx, accountID)...)
	if err != nil {
		return nil, fmt.Errorf("drive.NewService failed: %w", err)
	}
	return svc, nil
}

// ListFiles queries Drive with the given search expression, following
// pagination until limit files are collected.
func (c *Client) ListFiles(ctx context.Context, accountID, query string, limit int64) ([]*drive.File, string, error) {
	var files []*drive.File
	pageToken := ""

	for {
		remaining := limit - int64(len(files))
		if remaining <= 0 {
			return files, pageToken, nil
		}

		result, err := call(ctx, c.policy, "drive.list", func(ctx context.Context) (*drive.FileList, error) {
			svc, err := c.newDrive(ctx, accountID)
			if err != nil {
				return nil, err
			}
			req := svc.Files.List().
				PageSize(remaining).
				PageToken(pageToken).
				Fields("nextPageToken", "files("+driveFileFields+")").
				Context(ctx)
			if query != "" {
				req = req.Q(query)
			}
			return req.Do()
		})
		if err != nil {
			return nil, "", err
		}

		files = append(files, result.Files...)
		pageToken = result.NextPageToken
		if pageToken == "" {
			return files, "", nil
		}
	}
}

// GetFile fetches metadata for one file.
func (c *Client) GetFile(ctx context.Context, accountID, fileID string) (*drive.File, error) {
	return call(ctx, c.policy, "drive.get", func(ctx context.Context) (*drive.File, error) {
		svc, err := c.newDrive(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return svc.Files.Get(fileID).Fields(driveFileFields).Context(ctx).Do()
	})
}
