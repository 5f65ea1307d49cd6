package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Timeout configuration for file operations
const (
	listRequestTimeout = 15 * time.Second
	transferTimeout    = 5 * time.Minute
)

// File is one stored object as returned by the list endpoint.
type File struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	FileKey      string `json:"fileKey"`
	PresignedURL string `json:"presignedUrl"`
	ContentPath  string `json:"contentPath"`
	Size         int64  `json:"size"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
}

// ListFiles fetches the metadata of every stored file.
func (c *Client) ListFiles(ctx context.Context) ([]File, error) {
	reqCtx, cancel := context.WithTimeout(ctx, listRequestTimeout)
	defer cancel()

	var files []File
	if err := c.doJSON(reqCtx, request{
		method: http.MethodGet,
		url:    c.endpoint("/content/bucket/list"),
		auth:   true,
	}, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// Upload sends one file as a multipart form into the user's bucket. The
// form is buffered up front so the request can be replayed after a token
// refresh.
func (c *Client) Upload(ctx context.Context, userID, name string, contents io.Reader) error {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("files", name)
	if err != nil {
		return fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return fmt.Errorf("failed to read upload contents: %w", err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload form: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	return c.doJSON(reqCtx, request{
		method:      http.MethodPost,
		url:         c.endpoint("/content/" + userID),
		body:        buf.Bytes(),
		contentType: form.FormDataContentType(),
		auth:        true,
	}, nil)
}

// Download fetches a file by id into dir, naming it from the server's
// Content-Disposition header when present. Returns the written path.
func (c *Client) Download(ctx context.Context, id int64, dir string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	resp, err := c.do(reqCtx, request{
		method: http.MethodGet,
		url:    fmt.Sprintf("%s/content/download/%d", c.baseURL, id),
		auth:   true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, err := readBody(resp)
		if err != nil {
			return "", err
		}
		return "", &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	name := downloadFilename(resp.Header.Get("Content-Disposition"), id)
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// downloadFilename extracts the filename from a Content-Disposition header,
// falling back to file_{id} as the dashboard did.
func downloadFilename(disposition string, id int64) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return filepath.Base(name)
			}
		}
	}
	return fmt.Sprintf("file_%d", id)
}

// DeleteFile removes a stored file by id and drops its cached blob.
func (c *Client) DeleteFile(ctx context.Context, f File) error {
	reqCtx, cancel := context.WithTimeout(ctx, listRequestTimeout)
	defer cancel()

	if err := c.doJSON(reqCtx, request{
		method: http.MethodDelete,
		url:    fmt.Sprintf("%s/content/%d", c.baseURL, f.ID),
		auth:   true,
	}, nil); err != nil {
		return err
	}
	c.blobs.Remove(f.FileKey)
	return nil
}

// Blob returns a local path for the file's binary content, fetching it at
// most once per content key: an unchanged fileKey is served from the cache
// without touching the network.
func (c *Client) Blob(ctx context.Context, f File) (string, error) {
	if path, ok := c.blobs.Get(f.FileKey); ok {
		return path, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	resp, err := c.do(reqCtx, request{
		method: http.MethodGet,
		url:    f.PresignedURL,
		auth:   true,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	return c.blobs.Put(f.FileKey, data)
}
