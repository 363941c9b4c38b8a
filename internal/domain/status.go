package domain

// TaskStatus is the worker-side lifecycle of any background operation.
type TaskStatus string

const (
	TaskStatusIdle       TaskStatus = "idle"
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no further progress can follow.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a task id must be in flight for this status.
func (s TaskStatus) IsActive() bool {
	return s == TaskStatusQueued || s == TaskStatusProcessing
}

// ParseTaskStatus maps a worker status string onto the shared vocabulary.
// Unknown non-empty values count as processing so polling continues.
func ParseTaskStatus(raw string) TaskStatus {
	switch TaskStatus(raw) {
	case TaskStatusIdle, TaskStatusQueued, TaskStatusProcessing,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return TaskStatus(raw)
	case "":
		return TaskStatusIdle
	default:
		return TaskStatusProcessing
	}
}

// ModelStatus is the model-asset variant of TaskStatus.
type ModelStatus string

const (
	ModelStatusIdle        ModelStatus = "idle"
	ModelStatusChecking    ModelStatus = "checking"
	ModelStatusDownloading ModelStatus = "downloading"
	ModelStatusError       ModelStatus = "error"
)

// IsBusy reports whether a readiness check is in progress.
func (s ModelStatus) IsBusy() bool {
	return s == ModelStatusChecking || s == ModelStatusDownloading
}

// RoundProgress converts a worker percentage into the stored integer form.
func RoundProgress(p *float64) *int {
	if p == nil {
		return nil
	}
	v := int(*p + 0.5)
	if *p < 0 {
		v = 0
	}
	return &v
}

// DisplayProgress bounds a progress value for presentation. Non-terminal
// work never shows 100; indeterminate is true when no estimate exists.
func DisplayProgress(status TaskStatus, progress *int) (value int, indeterminate bool) {
	if status == TaskStatusCompleted {
		return 100, false
	}
	if progress == nil {
		return 0, true
	}
	value = *progress
	if value < 0 {
		value = 0
	}
	if value > 99 {
		value = 99
	}
	return value, false
}
