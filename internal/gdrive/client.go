// Package gdrive is a thin wrapper over the Drive v3 API covering what the
// record store needs: folder resolution, listing, download and upsert by
// file name.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vbonduro/marketlabel/internal/domain"
)

const (
	FolderMimeType = "application/vnd.google-apps.folder"

	listFields = "nextPageToken, files(id, name, mimeType, modifiedTime)"
)

type Client struct {
	files *drive.FilesService
}

// New builds a client from service-account credentials. credentialsJSON takes
// precedence over credentialsFile. Extra options are appended last, so tests
// can pass option.WithHTTPClient and option.WithoutAuthentication.
func New(ctx context.Context, credentialsFile, credentialsJSON string, opts ...option.ClientOption) (*Client, error) {
	var clientOpts []option.ClientOption

	data := []byte(credentialsJSON)
	if len(data) == 0 && credentialsFile != "" {
		var err error
		data, err = os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("gdrive: failed to read credentials file: %w", err)
		}
	}
	if len(data) > 0 {
		creds, err := google.CredentialsFromJSON(ctx, data, drive.DriveScope)
		if err != nil {
			return nil, fmt.Errorf("gdrive: failed to parse credentials: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentials(creds))
	}
	clientOpts = append(clientOpts, opts...)

	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("gdrive: failed to create service: %w", err)
	}
	return &Client{files: svc.Files}, nil
}

// FindFolder returns the id of the first folder named name. parentID may be
// empty to search the whole drive.
func (c *Client) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	q := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false", FolderMimeType, escape(name))
	if parentID != "" {
		q += fmt.Sprintf(" and '%s' in parents", escape(parentID))
	}
	files, err := c.list(ctx, q, true)
	if err != nil {
		return "", false, err
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[0].Id, true, nil
}

// ListFolders returns the direct sub-folders of parentID.
func (c *Client) ListFolders(ctx context.Context, parentID string) ([]*drive.File, error) {
	q := fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", escape(parentID), FolderMimeType)
	return c.list(ctx, q, false)
}

// FindFile returns the first non-folder file named name in folderID, or nil.
func (c *Client) FindFile(ctx context.Context, name, folderID string) (*drive.File, error) {
	q := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false", escape(name), escape(folderID))
	files, err := c.list(ctx, q, true)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.MimeType != FolderMimeType {
			return f, nil
		}
	}
	return nil, nil
}

// Download opens the content of fileID. The caller must close the reader.
func (c *Client) Download(ctx context.Context, fileID string) (io.ReadCloser, string, error) {
	resp, err := c.files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, "", wrapErr("download "+fileID, err)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// Upsert uploads body as name inside folderID, updating the first existing
// file with that name or creating one. The existence check and the write are
// two requests, so concurrent upserts of a new name can create duplicates.
func (c *Client) Upsert(ctx context.Context, name, folderID, mimeType string, body io.Reader) (string, error) {
	existing, err := c.FindFile(ctx, name, folderID)
	if err != nil {
		return "", err
	}

	if existing != nil {
		f, err := c.files.Update(existing.Id, &drive.File{}).
			Media(body, googleapi.ContentType(mimeType)).
			SupportsAllDrives(true).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", wrapErr("update "+name, err)
		}
		return f.Id, nil
	}

	f, err := c.files.Create(&drive.File{Name: name, Parents: []string{folderID}}).
		Media(body, googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapErr("create "+name, err)
	}
	return f.Id, nil
}

func (c *Client) list(ctx context.Context, q string, firstPageOnly bool) ([]*drive.File, error) {
	var out []*drive.File
	pageToken := ""
	for {
		call := c.files.List().
			Q(q).
			Spaces("drive").
			Fields(listFields).
			SupportsAllDrives(true).
			IncludeItemsFromAllDrives(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		res, err := call.Do()
		if err != nil {
			return nil, wrapErr("list files", err)
		}
		out = append(out, res.Files...)
		if firstPageOnly || res.NextPageToken == "" {
			return out, nil
		}
		pageToken = res.NextPageToken
	}
}

// escape quotes a value for use inside a single-quoted Drive query literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// wrapErr maps 404 responses to ErrNotFound and everything else to
// ErrRemoteUnavailable.
func wrapErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("gdrive: %s: %w: %w", op, domain.ErrNotFound, err)
	}
	return fmt.Errorf("gdrive: %s: %w: %w", op, domain.ErrRemoteUnavailable, err)
}
