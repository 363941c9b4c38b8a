// Package captions reads and writes SubRip caption files.
package captions

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"captiondesk/internal/domain"
)

// ErrNotSRT is returned for files without the .srt extension.
var ErrNotSRT = errors.New("only SRT caption files are supported")

var timingPattern = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)

// IsSRT reports whether name carries the .srt extension.
func IsSRT(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".srt")
}

// ParseFile reads and parses an SRT file from disk.
func ParseFile(path string) ([]domain.Segment, error) {
	if !IsSRT(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotSRT, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open captions: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads SRT cues into segments numbered from 1 in file order. Cue
// numbers in the file are ignored; blocks without a timing line are skipped.
func Parse(r io.Reader) ([]domain.Segment, error) {
	var (
		segments []domain.Segment
		current  domain.Segment
		text     []string
		inCue    bool
	)

	flush := func() {
		if inCue && len(text) > 0 {
			current.ID = len(segments) + 1
			current.Text = strings.Join(text, "\n")
			segments = append(segments, current)
		}
		current = domain.Segment{}
		text = nil
		inCue = false
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if line == "" {
			flush()
			continue
		}
		if !inCue {
			start, end, ok := parseTiming(line)
			if !ok {
				// cue number or stray text before the timing line
				continue
			}
			current.Start = start
			current.End = end
			inCue = true
			continue
		}
		text = append(text, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read captions: %w", err)
	}
	flush()
	return segments, nil
}

// Format renders segments as SRT text.
func Format(segments []domain.Segment) string {
	var buf bytes.Buffer
	for i, s := range segments {
		fmt.Fprintf(&buf, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(s.Start), formatTimestamp(s.End), s.Text)
	}
	return buf.String()
}

// parseTiming parses "00:02:16,612 --> 00:02:19,376" into seconds.
func parseTiming(line string) (float64, float64, bool) {
	m := timingPattern.FindStringSubmatch(line)
	if len(m) != 9 {
		return 0, 0, false
	}
	return toSeconds(m[1], m[2], m[3], m[4]), toSeconds(m[5], m[6], m[7], m[8]), true
}

func toSeconds(h, m, s, ms string) float64 {
	hours, _ := strconv.Atoi(h)
	minutes, _ := strconv.Atoi(m)
	seconds, _ := strconv.Atoi(s)
	// "5" after the comma means 500ms
	for len(ms) < 3 {
		ms += "0"
	}
	millis, _ := strconv.Atoi(ms)
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000
}

// formatTimestamp formats seconds as HH:MM:SS,mmm.
func formatTimestamp(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	total := int64(sec*1000 + 0.5)
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
