package translate

import "strings"

var languageNames = map[string]string{
	"zh-cn": "Simplified Chinese",
	"zh":    "Chinese",
	"zh-tw": "Traditional Chinese",
	"en":    "English",
	"en-us": "English",
	"en-gb": "English",
	"fr":    "French",
	"fr-fr": "French",
	"de":    "German",
	"es":    "Spanish",
	"it":    "Italian",
	"pt":    "Portuguese",
	"ru":    "Russian",
	"ja":    "Japanese",
	"ko":    "Korean",
	"ar":    "Arabic",
	"nl":    "Dutch",
}

// LanguageName maps a language code to the full name used in prompts.
// Unknown codes are returned unchanged.
func LanguageName(code string) string {
	if name, ok := languageNames[strings.ToLower(strings.TrimSpace(code))]; ok {
		return name
	}
	return code
}
