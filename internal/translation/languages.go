package translation

import (
	"sort"
	"strings"

	"horse.fit/verso/internal/language"
)

type LanguageOption struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var translationLanguageLabels = map[string]string{
	"ar": "Arabic",
	"de": "German",
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"pl": "Polish",
	"pt": "Portuguese",
	"ru": "Russian",
	"th": "Thai",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"zh": "Chinese",
}

func SupportedLanguageCodes() []string {
	codes := make([]string, 0, len(translationLanguageLabels))
	for code := range translationLanguageLabels {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// LanguageOptions returns the selectable target languages, normalized and
// sorted by code.
func LanguageOptions() []LanguageOption {
	codes := SupportedLanguageCodes()
	options := make([]LanguageOption, 0, len(codes))
	for _, code := range codes {
		normalized := language.NormalizeCode(code)
		if normalized == "" {
			continue
		}
		label, ok := translationLanguageLabels[normalized]
		if !ok {
			label = strings.ToUpper(normalized)
		}
		options = append(options, LanguageOption{
			Code:  normalized,
			Label: label,
		})
	}
	return options
}
