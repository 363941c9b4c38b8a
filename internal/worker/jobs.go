package worker

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"

	"captiondesk/internal/domain"
)

// TranscribeRequest submits one media file for transcription.
type TranscribeRequest struct {
	JobID         string
	FilePath      string
	Filename      string
	DisplayName   string
	MediaKind     domain.MediaKind
	Model         string
	Language      string
	Device        string
	ChineseStyle  string
	ChineseScript string
}

// TranscribeResponse acknowledges a submission.
type TranscribeResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// JobPoll is the incremental status of a transcription job.
type JobPoll struct {
	JobID         string                   `json:"job_id"`
	Status        string                   `json:"status"`
	Progress      *float64                 `json:"progress"`
	Message       string                   `json:"message"`
	Error         string                   `json:"error"`
	CurrentStage  string                   `json:"current_stage"`
	Result        *domain.TranscriptResult `json:"result"`
	PartialResult *domain.TranscriptResult `json:"partial_result"`
}

// TaskStatus classifies the reply.
func (p JobPoll) TaskStatus() domain.TaskStatus {
	return domain.ParseTaskStatus(p.Status)
}

// JobRecord is the worker's durable copy of a job.
type JobRecord struct {
	JobID          string                   `json:"job_id"`
	Filename       string                   `json:"filename,omitempty"`
	DisplayName    string                   `json:"display_name,omitempty"`
	MediaPath      string                   `json:"media_path,omitempty"`
	MediaKind      string                   `json:"media_kind,omitempty"`
	Status         string                   `json:"status,omitempty"`
	Language       string                   `json:"language,omitempty"`
	TranscriptJSON *domain.TranscriptResult `json:"transcript_json,omitempty"`
	TranscriptText string                   `json:"transcript_text"`
	SegmentCount   int                      `json:"segment_count"`
	Duration       float64                  `json:"duration,omitempty"`
	UpdatedAt      string                   `json:"updated_at,omitempty"`
}

// ackResponse is the generic {success, error} reply.
type ackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// err converts a negative acknowledgement into an error.
func (a ackResponse) err(op string) error {
	if a.Success {
		return nil
	}
	if a.Error == "" {
		return fmt.Errorf("%s: worker did not confirm", op)
	}
	return fmt.Errorf("%s: %w", op, &APIError{StatusCode: http.StatusOK, Message: a.Error})
}

// Transcribe submits a local media file for transcription.
func (c *Client) Transcribe(ctx context.Context, in TranscribeRequest) (TranscribeResponse, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	device := in.Device
	if device == "" {
		device = "auto"
	}
	fields := [][2]string{
		{"job_id", in.JobID},
		{"file_path", in.FilePath},
		{"filename", in.Filename},
		{"display_name", in.DisplayName},
		{"media_kind", string(in.MediaKind)},
		{"model", in.Model},
		{"language", in.Language},
		{"device", device},
		{"chinese_style", in.ChineseStyle},
		{"chinese_script", in.ChineseScript},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := form.WriteField(f[0], f[1]); err != nil {
			return TranscribeResponse{}, fmt.Errorf("encode %s: %w", f[0], err)
		}
	}
	if err := form.Close(); err != nil {
		return TranscribeResponse{}, fmt.Errorf("encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", &body)
	if err != nil {
		return TranscribeResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var out TranscribeResponse
	if err := c.do(req, &out); err != nil {
		return TranscribeResponse{}, err
	}
	return out, nil
}

// PollJob fetches the status of a transcription job.
func (c *Client) PollJob(ctx context.Context, jobID string) (JobPoll, error) {
	var out JobPoll
	if err := c.getJSON(ctx, "/job/"+url.PathEscape(jobID)+"/poll", nil, &out); err != nil {
		return JobPoll{}, err
	}
	return out, nil
}

// CancelJob asks the worker to stop a transcription job.
func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.postJSON(ctx, "/job/"+url.PathEscape(jobID)+"/cancel", nil, nil)
}

// DeleteRecord removes a job and its persisted record.
func (c *Client) DeleteRecord(ctx context.Context, jobID string) error {
	return c.deleteJSON(ctx, "/job/"+url.PathEscape(jobID), nil)
}

// UpsertRecord writes the durable copy of a job.
func (c *Client) UpsertRecord(ctx context.Context, rec JobRecord) error {
	var out ackResponse
	if err := c.postJSON(ctx, "/api/job/record", rec, &out); err != nil {
		return fmt.Errorf("upsert record %s: %w", rec.JobID, err)
	}
	return out.err("upsert record " + rec.JobID)
}

// GetRecord reads the durable copy of a job.
func (c *Client) GetRecord(ctx context.Context, jobID string) (JobRecord, error) {
	var out struct {
		ackResponse
		Record *JobRecord `json:"record"`
	}
	if err := c.getJSON(ctx, "/api/job/record/"+url.PathEscape(jobID), nil, &out); err != nil {
		return JobRecord{}, err
	}
	if out.Record == nil {
		return JobRecord{}, out.ackResponse.err("get record " + jobID)
	}
	return *out.Record, nil
}

// History lists every job the worker knows about.
func (c *Client) History(ctx context.Context) ([]JobRecord, error) {
	var out struct {
		Jobs []JobRecord `json:"jobs"`
	}
	if err := c.getJSON(ctx, "/history", nil, &out); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return out.Jobs, nil
}
