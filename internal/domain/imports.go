package domain

// ImportKind names one remote-media import region.
type ImportKind string

const (
	ImportKindYoutube     ImportKind = "youtube"
	ImportKindURLDownload ImportKind = "urlDownload"
)

// Modal is the single visible import dialog, if any.
type Modal string

const (
	ModalNone        Modal = "none"
	ModalOpen        Modal = "open"
	ModalYoutube     Modal = "youtube"
	ModalURLDownload Modal = "urlDownload"
	ModalImport      Modal = "import"
)

// ModalFor returns the dialog that belongs to an import kind.
func ModalFor(kind ImportKind) Modal {
	if kind == ImportKindYoutube {
		return ModalYoutube
	}
	return ModalURLDownload
}

// ImportState is the task status of one import kind plus its staged input.
type ImportState struct {
	URL                string     `json:"url"`
	SavePath           string     `json:"savePath,omitempty"`
	Importing          bool       `json:"importing"`
	Status             TaskStatus `json:"status"`
	Progress           *int       `json:"progress"`
	ProgressValue      int        `json:"progressValue"`
	Indeterminate      bool       `json:"indeterminate"`
	TaskID             string     `json:"taskId,omitempty"`
	Error              string     `json:"error,omitempty"`
	Title              string     `json:"title,omitempty"`
	DownloadedBytes    *int64     `json:"downloadedBytes,omitempty"`
	TotalBytes         *int64     `json:"totalBytes,omitempty"`
	TotalBytesEstimate *int64     `json:"totalBytesEstimate,omitempty"`
	FragmentIndex      *int       `json:"fragmentIndex,omitempty"`
	FragmentCount      *int       `json:"fragmentCount,omitempty"`
}

// DisplayProgress returns the bounded progress shown for this import.
// Only queued or processing work can be indeterminate.
func (s ImportState) DisplayProgress() (int, bool) {
	value, indeterminate := DisplayProgress(s.Status, s.Progress)
	return value, indeterminate && s.Status.IsActive()
}

// ImportPatch is a shallow partial update of an ImportState.
type ImportPatch struct {
	URL                Opt[string]
	SavePath           Opt[string]
	Importing          Opt[bool]
	Status             Opt[TaskStatus]
	Progress           Opt[*int]
	TaskID             Opt[string]
	Error              Opt[string]
	Title              Opt[string]
	DownloadedBytes    Opt[*int64]
	TotalBytes         Opt[*int64]
	TotalBytesEstimate Opt[*int64]
	FragmentIndex      Opt[*int]
	FragmentCount      Opt[*int]
}

// ApplyTo merges the set fields of p into s.
func (p ImportPatch) ApplyTo(s *ImportState) {
	p.URL.Apply(&s.URL)
	p.SavePath.Apply(&s.SavePath)
	p.Importing.Apply(&s.Importing)
	p.Status.Apply(&s.Status)
	p.Progress.Apply(&s.Progress)
	p.TaskID.Apply(&s.TaskID)
	p.Error.Apply(&s.Error)
	p.Title.Apply(&s.Title)
	p.DownloadedBytes.Apply(&s.DownloadedBytes)
	p.TotalBytes.Apply(&s.TotalBytes)
	p.TotalBytesEstimate.Apply(&s.TotalBytesEstimate)
	p.FragmentIndex.Apply(&s.FragmentIndex)
	p.FragmentCount.Apply(&s.FragmentCount)
	s.ProgressValue, s.Indeterminate = s.DisplayProgress()
}

// ClearRuntime returns a patch that drops every in-flight field while
// keeping the staged URL and save path.
func ClearRuntime() ImportPatch {
	return ImportPatch{
		Importing:          Set(false),
		Status:             Set(TaskStatusIdle),
		Progress:           Set[*int](nil),
		TaskID:             Set(""),
		Title:              Set(""),
		DownloadedBytes:    Set[*int64](nil),
		TotalBytes:         Set[*int64](nil),
		TotalBytesEstimate: Set[*int64](nil),
		FragmentIndex:      Set[*int](nil),
		FragmentCount:      Set[*int](nil),
	}
}

// ModelDownloadState tracks the model readiness gate.
type ModelDownloadState struct {
	Status          ModelStatus `json:"status"`
	Progress        *int        `json:"progress"`
	ProgressValue   int         `json:"progressValue"`
	Indeterminate   bool        `json:"indeterminate"`
	Message         string      `json:"message"`
	Detail          string      `json:"detail,omitempty"`
	ExpectedPath    string      `json:"expectedPath,omitempty"`
	DownloadURL     string      `json:"downloadUrl,omitempty"`
	TaskID          string      `json:"downloadId,omitempty"`
	DownloadedBytes *int64      `json:"downloadedBytes,omitempty"`
	TotalBytes      *int64      `json:"totalBytes,omitempty"`
}

// DisplayProgress returns the bounded progress shown for the model gate.
// A download without an estimate is indeterminate.
func (s ModelDownloadState) DisplayProgress() (int, bool) {
	status := TaskStatusIdle
	if s.Status.IsBusy() {
		status = TaskStatusProcessing
	}
	value, indeterminate := DisplayProgress(status, s.Progress)
	return value, indeterminate && s.Status.IsBusy()
}

// ModelPatch is a shallow partial update of a ModelDownloadState.
type ModelPatch struct {
	Status          Opt[ModelStatus]
	Progress        Opt[*int]
	Message         Opt[string]
	Detail          Opt[string]
	ExpectedPath    Opt[string]
	DownloadURL     Opt[string]
	TaskID          Opt[string]
	DownloadedBytes Opt[*int64]
	TotalBytes      Opt[*int64]
}

// ApplyTo merges the set fields of p into s.
func (p ModelPatch) ApplyTo(s *ModelDownloadState) {
	p.Status.Apply(&s.Status)
	p.Progress.Apply(&s.Progress)
	p.Message.Apply(&s.Message)
	p.Detail.Apply(&s.Detail)
	p.ExpectedPath.Apply(&s.ExpectedPath)
	p.DownloadURL.Apply(&s.DownloadURL)
	p.TaskID.Apply(&s.TaskID)
	p.DownloadedBytes.Apply(&s.DownloadedBytes)
	p.TotalBytes.Apply(&s.TotalBytes)
	s.ProgressValue, s.Indeterminate = s.DisplayProgress()
}
