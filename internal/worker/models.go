package worker

import (
	"context"
	"net/url"

	"captiondesk/internal/domain"
)

// ModelStatus reports whether the speech model is on disk.
type ModelStatus struct {
	Ready        bool   `json:"ready"`
	ExpectedPath string `json:"expected_path"`
	DownloadURL  string `json:"download_url"`
}

// ModelDownload is the start/poll reply of a model download.
type ModelDownload struct {
	DownloadID      string   `json:"download_id"`
	Status          string   `json:"status"`
	Progress        *float64 `json:"progress"`
	ExpectedPath    string   `json:"expected_path"`
	DownloadURL     string   `json:"download_url"`
	DownloadedBytes *int64   `json:"downloaded_bytes"`
	TotalBytes      *int64   `json:"total_bytes"`
	Error           string   `json:"error"`
}

// TaskStatus classifies the reply. The worker reports an already present
// model as "ready".
func (d ModelDownload) TaskStatus() domain.TaskStatus {
	if d.Status == "ready" {
		return domain.TaskStatusCompleted
	}
	return domain.ParseTaskStatus(d.Status)
}

// ModelStatus queries model readiness.
func (c *Client) ModelStatus(ctx context.Context) (ModelStatus, error) {
	var out ModelStatus
	if err := c.getJSON(ctx, "/models/whisper/status", nil, &out); err != nil {
		return ModelStatus{}, err
	}
	return out, nil
}

// StartModelDownload begins downloading the model.
func (c *Client) StartModelDownload(ctx context.Context) (ModelDownload, error) {
	var out ModelDownload
	if err := c.postJSON(ctx, "/models/whisper/download", nil, &out); err != nil {
		return ModelDownload{}, err
	}
	return out, nil
}

// ModelDownload polls a model download.
func (c *Client) ModelDownload(ctx context.Context, id string) (ModelDownload, error) {
	var out ModelDownload
	if err := c.getJSON(ctx, "/models/whisper/download/"+url.PathEscape(id), nil, &out); err != nil {
		return ModelDownload{}, err
	}
	return out, nil
}
