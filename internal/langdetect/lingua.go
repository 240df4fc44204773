package langdetect

import (
	"strings"
	"sync"
	"unicode"

	lingua "github.com/pemistahl/lingua-go"
)

// LanguageUndetermined matches the events.language column default.
const LanguageUndetermined = "und"

var (
	detectorOnce sync.Once
	detector     lingua.LanguageDetector
)

// Detect returns the ISO 639-1 code of the document language, or "und" when
// the sample is too short or ambiguous.
func Detect(text string) string {
	sample := strings.TrimSpace(text)
	if sample == "" {
		return LanguageUndetermined
	}

	letterCount := 0
	for _, r := range sample {
		if unicode.IsLetter(r) {
			letterCount++
		}
	}
	if letterCount < 6 {
		return LanguageUndetermined
	}

	language, exists := getDetector().DetectLanguageOf(sample)
	if !exists {
		return LanguageUndetermined
	}

	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return LanguageUndetermined
	}
	return code
}

func getDetector() lingua.LanguageDetector {
	detectorOnce.Do(func() {
		detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			WithPreloadedLanguageModels().
			Build()
	})
	return detector
}
