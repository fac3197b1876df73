package models

import "strings"

// Supported request locales.
const (
	LocaleDefault = "en"
	LocaleArabic  = "ar"
)

// LocalizedText holds the same content in the default language and Arabic.
// Embed it with an embeddedPrefix so each pair maps to two columns.
type LocalizedText struct {
	Default string `gorm:"column:default;type:text" json:"default"`
	Ar      string `gorm:"column:ar;type:text" json:"ar"`
}

// NewText is shorthand for building a LocalizedText.
func NewText(def, ar string) LocalizedText {
	return LocalizedText{Default: def, Ar: ar}
}

// Resolve returns the text for locale, falling back to the other language when empty.
func (t LocalizedText) Resolve(locale string) string {
	if NormalizeLocale(locale) == LocaleArabic {
		if t.Ar != "" {
			return t.Ar
		}
		return t.Default
	}
	if t.Default != "" {
		return t.Default
	}
	return t.Ar
}

// IsZero reports whether both variants are blank.
func (t LocalizedText) IsZero() bool {
	return strings.TrimSpace(t.Default) == "" && strings.TrimSpace(t.Ar) == ""
}

// NormalizeLocale maps a language tag or Accept-Language value onto a supported locale.
func NormalizeLocale(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return LocaleDefault
	}
	// Accept-Language: take the first tag, drop the quality and region.
	if i := strings.IndexAny(value, ",;"); i >= 0 {
		value = value[:i]
	}
	if i := strings.IndexAny(value, "-_"); i >= 0 {
		value = value[:i]
	}
	if value == LocaleArabic {
		return LocaleArabic
	}
	return LocaleDefault
}
