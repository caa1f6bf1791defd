package model

import (
	"strings"
	"time"
)

// Language is one of the two supported site languages.
type Language string

const (
	LangEN Language = "en"
	LangAR Language = "ar"
)

// SupportedLanguages lists the languages in menu order.
var SupportedLanguages = []Language{LangEN, LangAR}

// ParseLanguage normalizes s and reports whether it names a supported language.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LangEN:
		return LangEN, true
	case LangAR:
		return LangAR, true
	}
	return "", false
}

// IsRTL reports whether the language is written right to left.
func (l Language) IsRTL() bool {
	return l == LangAR
}

// Dir returns the value for the HTML dir attribute.
func (l Language) Dir() string {
	if l.IsRTL() {
		return "rtl"
	}
	return "ltr"
}

// Locale returns the Open Graph locale.
func (l Language) Locale() string {
	if l == LangAR {
		return "ar_EG"
	}
	return "en_US"
}

// Theme is the colour scheme a visitor picked.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func ParseTheme(s string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	}
	return "", false
}

// Toggle returns the opposite theme.
func (t Theme) Toggle() Theme {
	if t == ThemeLight {
		return ThemeDark
	}
	return ThemeLight
}

// Preferences is what we remember about a visitor between requests.
type Preferences struct {
	VisitorID string    `json:"visitor_id"`
	Language  Language  `json:"language"`
	Theme     Theme     `json:"theme"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AppContext is the explicit per-request application context handed to
// handlers and templates in place of ambient UI state.
type AppContext struct {
	VisitorID string
	Lang      Language
	Theme     Theme
}

// Dir is a template helper.
func (c AppContext) Dir() string {
	return c.Lang.Dir()
}
