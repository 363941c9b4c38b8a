package updates

import (
	"encoding/json"
	"strings"
)

// Info describes an update worth showing to the user.
type Info struct {
	Project             string `json:"project"`
	CurrentVersion      string `json:"currentVersion,omitempty"`
	LatestVersion       string `json:"latestVersion"`
	UpdateAvailable     *bool  `json:"updateAvailable,omitempty"`
	ForceUpdate         bool   `json:"forceUpdate"`
	MinSupportedVersion string `json:"minSupportedVersion,omitempty"`
	DownloadURL         string `json:"downloadUrl,omitempty"`
	ReleaseNotes        string `json:"releaseNotes,omitempty"`
	PublishedAt         string `json:"publishedAt,omitempty"`
}

// BuildInfo interprets a release feed payload. It returns nil when the
// payload has no version or when nothing newer is available and the update
// is not forced.
func BuildInfo(payload json.RawMessage, currentVersion, defaultProject string) *Info {
	var record map[string]any
	if len(payload) == 0 || json.Unmarshal(payload, &record) != nil || record == nil {
		return nil
	}

	latest := pickString(record, "latestVersion", "latest_version", "latest", "version")
	if latest == "" {
		return nil
	}
	current := strings.TrimSpace(currentVersion)
	if current == "" {
		current = pickString(record, "currentVersion", "current_version")
	}
	minSupported := pickString(record, "minSupportedVersion", "min_supported", "minimum_supported")

	var available *bool
	if current != "" {
		newer := CompareVersions(latest, current) > 0
		available = &newer
	} else if flag, ok := record["updateAvailable"].(bool); ok {
		available = &flag
	}

	force := pickBool(record, "forceUpdate", "force_update")
	if current != "" && minSupported != "" && CompareVersions(current, minSupported) < 0 {
		force = true
	}
	if !force && (available == nil || !*available) {
		return nil
	}

	project := pickString(record, "project")
	if project == "" {
		project = defaultProject
	}
	return &Info{
		Project:             project,
		CurrentVersion:      current,
		LatestVersion:       latest,
		UpdateAvailable:     available,
		ForceUpdate:         force,
		MinSupportedVersion: minSupported,
		DownloadURL:         pickString(record, "downloadUrl", "url", "link", "download_url"),
		ReleaseNotes:        pickString(record, "releaseNotes", "notes"),
		PublishedAt:         pickString(record, "publishedAt", "released_at"),
	}
}

func pickString(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := record[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func pickBool(record map[string]any, keys ...string) bool {
	for _, key := range keys {
		if b, ok := record[key].(bool); ok {
			return b
		}
	}
	return false
}
