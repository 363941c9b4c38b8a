package captions

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"

	"captiondesk/internal/domain"
)

// DetectLanguage returns the majority language of the segment texts, or
// language.Und when nothing can be detected.
func DetectLanguage(segments []domain.Segment) language.Tag {
	counts := make(map[string]int)
	for _, s := range segments {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		if code := whatlanggo.DetectLang(s.Text).Iso6391(); code != "" {
			counts[code]++
		}
	}

	var top string
	var topCount int
	for code, n := range counts {
		if n > topCount || (n == topCount && code < top) {
			top = code
			topCount = n
		}
	}
	if top == "" {
		return language.Und
	}
	tag, err := language.Parse(top)
	if err != nil {
		return language.Und
	}
	return tag
}

// LanguageCode is DetectLanguage as a base language code, "" when unknown.
func LanguageCode(segments []domain.Segment) string {
	tag := DetectLanguage(segments)
	if tag == language.Und {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
