package i18n

import (
	"html/template"
)

// Supported languages
const (
	LangEN = "en"
	LangTR = "tr"
	LangDA = "da"
)

// DefaultLanguage is the fallback language
const DefaultLanguage = LangEN

// LanguageNames maps language codes to their display names
var LanguageNames = map[string]string{
	LangEN: "English",
	LangTR: "Türkçe",
	LangDA: "Dansk",
}

// SpeechLanguages maps UI language codes to the language names the speech gateway understands.
var SpeechLanguages = map[string]string{
	LangEN: "English",
	LangTR: "Turkce",
	LangDA: "Dansk",
}

// Translations holds all translations
type Translations map[string]map[string]string

// Get returns a translation for a given language and key
func Get(lang, key string) string {
	if trans, ok := translations[lang]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	// Fallback to English
	if trans, ok := translations[DefaultLanguage]; ok {
		if val, ok := trans[key]; ok {
			return val
		}
	}
	return key
}

// T returns a template function for translations
func T(lang string) func(string) template.HTML {
	return func(key string) template.HTML {
		return template.HTML(Get(lang, key))
	}
}

// Valid reports whether lang is a supported language code.
func Valid(lang string) bool {
	_, ok := LanguageNames[lang]
	return ok
}

var translations = Translations{
	LangEN: {
		"app_name":       "Story Chat",
		"topic":          "Topic",
		"no_topic":       "Pick or create a topic to start chatting.",
		"no_messages":    "No messages yet.",
		"you":            "You",
		"assistant":      "Assistant",
		"thinking":       "Thinking…",
		"error":          "Error",
		"retry":          "Retry",
		"listen":         "Listen",
		"stop":           "Stop",
		"download":       "Download MP3",
		"delete_message": "Delete this message",
		"suggestions":    "Try asking",
		"exported":       "Exported",
	},
	LangTR: {
		"app_name":       "Hikaye Sohbeti",
		"topic":          "Konu",
		"no_topic":       "Sohbete başlamak için bir konu seçin veya oluşturun.",
		"no_messages":    "Henüz mesaj yok.",
		"you":            "Sen",
		"assistant":      "Asistan",
		"thinking":       "Düşünüyor…",
		"error":          "Hata",
		"retry":          "Tekrar dene",
		"listen":         "Dinle",
		"stop":           "Durdur",
		"download":       "MP3 indir",
		"delete_message": "Bu mesajı sil",
		"suggestions":    "Şunu sorabilirsin",
		"exported":       "Dışa aktarıldı",
	},
	LangDA: {
		"app_name":       "Historiechat",
		"topic":          "Emne",
		"no_topic":       "Vælg eller opret et emne for at begynde.",
		"no_messages":    "Ingen beskeder endnu.",
		"you":            "Dig",
		"assistant":      "Assistent",
		"thinking":       "Tænker…",
		"error":          "Fejl",
		"retry":          "Prøv igen",
		"listen":         "Lyt",
		"stop":           "Stop",
		"download":       "Hent MP3",
		"delete_message": "Slet denne besked",
		"suggestions":    "Prøv at spørge",
		"exported":       "Eksporteret",
	},
}
