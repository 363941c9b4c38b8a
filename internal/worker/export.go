package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"captiondesk/internal/domain"
)

// ExportFormat selects the rendering the worker produces.
type ExportFormat string

const (
	ExportSRT        ExportFormat = "srt"
	ExportTranscript ExportFormat = "transcript"
)

// exportSegment is the wire form of a segment in export requests.
type exportSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Export renders segments to text in the requested format.
func (c *Client) Export(ctx context.Context, format ExportFormat, segments []domain.Segment, language string) (string, error) {
	body := struct {
		Segments       []exportSegment `json:"segments"`
		ExportLanguage string          `json:"export_language"`
	}{
		Segments:       make([]exportSegment, 0, len(segments)),
		ExportLanguage: language,
	}
	for _, s := range segments {
		body.Segments = append(body.Segments, exportSegment{ID: s.ID, Start: s.Start, End: s.End, Text: s.Text})
	}

	var out struct {
		ackResponse
		Content string `json:"content"`
	}
	if err := c.postJSON(ctx, "/export/"+string(format), body, &out); err != nil {
		return "", fmt.Errorf("export %s: %w", format, err)
	}
	if err := out.ackResponse.err("export " + string(format)); err != nil {
		return "", err
	}
	return out.Content, nil
}

// CachedUpdate reads the last stored update payload for project.
func (c *Client) CachedUpdate(ctx context.Context, project string) (json.RawMessage, error) {
	var out struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := c.getJSON(ctx, "/api/update/cache", url.Values{"project": {project}}, &out); err != nil {
		return nil, err
	}
	return out.Payload, nil
}

// StoreUpdate caches payload for project.
func (c *Client) StoreUpdate(ctx context.Context, project string, payload json.RawMessage) error {
	body := struct {
		Project string          `json:"project"`
		Payload json.RawMessage `json:"payload"`
	}{Project: project, Payload: payload}
	return c.postJSON(ctx, "/api/update/cache", body, nil)
}

// FetchUpdate retrieves target through the worker proxy.
func (c *Client) FetchUpdate(ctx context.Context, target string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.getJSON(ctx, "/api/update/fetch", url.Values{"url": {target}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
