package captions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"captiondesk/internal/domain"
)

const sample = "\ufeff1\n00:00:01,000 --> 00:00:02,500\nHello there\n\n" +
	"7\n00:00:03,000 --> 00:00:04,250\nSecond line\ncontinued\n\n" +
	"not a cue\n\n" +
	"3\n00:01:00.5 --> 00:01:02,000\nLast"

func TestParseReadsCuesInOrder(t *testing.T) {
	segs, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, segs, 3)

	assert.Equal(t, domain.Segment{ID: 1, Start: 1, End: 2.5, Text: "Hello there"}, segs[0])
	assert.Equal(t, 2, segs[1].ID)
	assert.Equal(t, "Second line\ncontinued", segs[1].Text)
	assert.InDelta(t, 60.5, segs[2].Start, 1e-9)
	assert.InDelta(t, 62.0, segs[2].End, 1e-9)
	assert.Equal(t, "Last", segs[2].Text)
}

func TestParseEmptyInput(t *testing.T) {
	segs, err := Parse(strings.NewReader("\n\n  \n"))
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestParseFileRejectsOtherExtensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.vtt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	_, err := ParseFile(path)
	assert.ErrorIs(t, err, ErrNotSRT)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Captions.SRT")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	segs, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, segs, 3)
}

func TestFormatRoundTripsTimings(t *testing.T) {
	in := []domain.Segment{
		{ID: 4, Start: 0, End: 1.2, Text: "one"},
		{ID: 9, Start: 3661.007, End: 3662, Text: "two"},
	}
	out := Format(in)
	assert.Contains(t, out, "1\n00:00:00,000 --> 00:00:01,200\none\n\n")
	assert.Contains(t, out, "2\n01:01:01,007 --> 01:01:02,000\ntwo\n\n")

	back, err := Parse(strings.NewReader(out))
	require.NoError(t, err)
	require.Len(t, back, 2)
	assert.InDelta(t, 3661.007, back[1].Start, 1e-9)
}

func TestDetectLanguageMajority(t *testing.T) {
	segs := []domain.Segment{
		{Text: "Bonjour tout le monde, comment allez-vous aujourd'hui ?"},
		{Text: "Je suis très content de vous voir ici ce soir."},
		{Text: "This sentence is written in plain English for the test."},
		{Text: "   "},
	}
	assert.Equal(t, language.French, DetectLanguage(segs))
	assert.Equal(t, "fr", LanguageCode(segs))
}

func TestDetectLanguageUnknown(t *testing.T) {
	assert.Equal(t, language.Und, DetectLanguage(nil))
	assert.Equal(t, "", LanguageCode(nil))
}
