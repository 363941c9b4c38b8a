package domain

import "time"

// JobStatus tracks a transcription job as seen by the editor.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusImported   JobStatus = "imported"
)

// IsActive reports whether the worker is still producing output for the job.
func (s JobStatus) IsActive() bool {
	return s == JobStatusQueued || s == JobStatusProcessing
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	Language      string `json:"language"`
	Model         string `json:"model"`
	ChineseStyle  string `json:"chineseStyle,omitempty"`
	ChineseScript string `json:"chineseScript,omitempty"`
	DownloadDir   string `json:"downloadDir"`
	ExportDir     string `json:"exportDir"`
}

// Segment is one caption cue inside a job transcript.
type Segment struct {
	ID           int     `json:"id"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	Text         string  `json:"text"`
	OriginalText string  `json:"originalText,omitempty"`
}

// AudioFile describes the media a job was produced from.
type AudioFile struct {
	Name string `json:"name"`
	Size *int64 `json:"size,omitempty"`
	Path string `json:"path,omitempty"`
}

// TranscriptResult is the full transcript payload returned by the worker.
type TranscriptResult struct {
	JobID    string    `json:"job_id"`
	Text     string    `json:"text"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Segments []Segment `json:"segments"`
}

// Job is one transcription unit owned by the registry.
type Job struct {
	ID            string            `json:"id"`
	Filename      string            `json:"filename"`
	DisplayName   string            `json:"displayName"`
	Status        JobStatus         `json:"status"`
	Progress      *int              `json:"progress,omitempty"`
	Message       string            `json:"message,omitempty"`
	Language      string            `json:"language,omitempty"`
	MediaPath     string            `json:"mediaPath,omitempty"`
	MediaKind     MediaKind         `json:"mediaKind,omitempty"`
	StartTime     time.Time         `json:"startTime"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	AudioFile     AudioFile         `json:"audioFile"`
	Result        *TranscriptResult `json:"result,omitempty"`
	PartialResult *TranscriptResult `json:"partialResult,omitempty"`
	Error         string            `json:"error,omitempty"`
	Segments      []Segment         `json:"segments"`
}

// MediaKind separates audio-only from video sources.
type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
)

// FileDescriptor is the produced-file payload of a finished download.
type FileDescriptor struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Size *int64 `json:"size,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// Valid reports whether the descriptor names a usable file.
func (f *FileDescriptor) Valid() bool {
	return f != nil && f.Path != "" && f.Name != ""
}

// ExternalSource records where imported media originally came from.
type ExternalSource struct {
	Type         string `json:"type"`
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	ID           string `json:"id,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// MediaItem is an entry in the local media library.
type MediaItem struct {
	ID                string          `json:"id"`
	Path              string          `json:"path"`
	Name              string          `json:"name"`
	Size              *int64          `json:"size,omitempty"`
	Mime              string          `json:"mime,omitempty"`
	DisplayName       string          `json:"displayName,omitempty"`
	DurationSec       *float64        `json:"durationSec,omitempty"`
	Kind              MediaKind       `json:"kind"`
	TranscriptionKind MediaKind       `json:"transcriptionKind,omitempty"`
	ExternalSource    *ExternalSource `json:"externalSource,omitempty"`
	AddedAt           time.Time       `json:"addedAt"`
}
