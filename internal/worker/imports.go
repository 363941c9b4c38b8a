package worker

import (
	"context"
	"fmt"
	"net/url"

	"captiondesk/internal/domain"
)

// Source is the origin metadata of a remote import.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	ID    string `json:"id"`
}

// ImportStatus is the start/poll reply of URL downloads and platform imports.
type ImportStatus struct {
	DownloadID         string                 `json:"download_id"`
	Status             string                 `json:"status"`
	Progress           *float64               `json:"progress"`
	Message            string                 `json:"message"`
	Error              string                 `json:"error"`
	File               *domain.FileDescriptor `json:"file"`
	Source             *Source                `json:"source"`
	ThumbnailURL       string                 `json:"thumbnail_url"`
	DurationSec        *float64               `json:"duration_sec"`
	DownloadDir        string                 `json:"download_dir"`
	DownloadedBytes    *int64                 `json:"downloaded_bytes"`
	TotalBytes         *int64                 `json:"total_bytes"`
	TotalBytesEstimate *int64                 `json:"total_bytes_estimate"`
	FragmentIndex      *int                   `json:"fragment_index"`
	FragmentCount      *int                   `json:"fragment_count"`
}

// TaskStatus classifies the reply.
func (s ImportStatus) TaskStatus() domain.TaskStatus {
	return domain.ParseTaskStatus(s.Status)
}

// Title returns the source title, if the worker resolved one.
func (s ImportStatus) Title() string {
	if s.Source == nil {
		return ""
	}
	return s.Source.Title
}

// ImportDefaults carries worker-side defaults for URL downloads.
type ImportDefaults struct {
	DownloadDir string `json:"download_dir"`
}

// ImportAPI is the start/poll/cancel triad of one import kind.
type ImportAPI struct {
	c    *Client
	base string
}

// URLDownloads returns the triad for direct URL downloads.
func (c *Client) URLDownloads() *ImportAPI {
	return &ImportAPI{c: c, base: "/import/url"}
}

// YoutubeImports returns the triad for platform video imports.
func (c *Client) YoutubeImports() *ImportAPI {
	return &ImportAPI{c: c, base: "/import/youtube"}
}

// Defaults fetches the default download directory.
func (a *ImportAPI) Defaults(ctx context.Context) (ImportDefaults, error) {
	var out ImportDefaults
	if err := a.c.getJSON(ctx, a.base+"/defaults", nil, &out); err != nil {
		return ImportDefaults{}, fmt.Errorf("import defaults: %w", err)
	}
	return out, nil
}

// Start begins an import of rawURL. downloadDir may be empty.
func (a *ImportAPI) Start(ctx context.Context, rawURL, downloadDir string) (ImportStatus, error) {
	body := map[string]string{"url": rawURL}
	if downloadDir != "" {
		body["download_dir"] = downloadDir
	}
	var out ImportStatus
	if err := a.c.postJSON(ctx, a.base+"/start", body, &out); err != nil {
		return ImportStatus{}, err
	}
	return out, nil
}

// Get polls the status of an import.
func (a *ImportAPI) Get(ctx context.Context, id string) (ImportStatus, error) {
	var out ImportStatus
	if err := a.c.getJSON(ctx, a.base+"/"+url.PathEscape(id), nil, &out); err != nil {
		return ImportStatus{}, err
	}
	return out, nil
}

// Cancel asks the worker to stop an import.
func (a *ImportAPI) Cancel(ctx context.Context, id string) (ImportStatus, error) {
	var out ImportStatus
	if err := a.c.postJSON(ctx, a.base+"/"+url.PathEscape(id)+"/cancel", nil, &out); err != nil {
		return ImportStatus{}, err
	}
	return out, nil
}
