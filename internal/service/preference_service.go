package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/internal/storage"
)

// PreferenceService loads visitor preferences with defaults and saves
// them only when they change.
type PreferenceService struct {
	store        storage.Storage
	defaultLang  model.Language
	defaultTheme model.Theme
	now          func() time.Time
}

func NewPreferenceService(store storage.Storage, lang model.Language, theme model.Theme) *PreferenceService {
	if _, ok := model.ParseLanguage(string(lang)); !ok {
		lang = model.LangEN
	}
	if _, ok := model.ParseTheme(string(theme)); !ok {
		theme = model.ThemeDark
	}
	return &PreferenceService{
		store:        store,
		defaultLang:  lang,
		defaultTheme: theme,
		now:          time.Now,
	}
}

func (s *PreferenceService) defaults(visitorID string) *model.Preferences {
	return &model.Preferences{
		VisitorID: visitorID,
		Language:  s.defaultLang,
		Theme:     s.defaultTheme,
	}
}

// Load returns the stored preferences of visitorID. Unknown visitors get
// the defaults without an error; a storage failure returns the defaults
// together with the error.
func (s *PreferenceService) Load(ctx context.Context, visitorID string) (*model.Preferences, error) {
	if !storage.ValidID(visitorID) {
		return s.defaults(visitorID), fmt.Errorf("%w: visitor id", ErrInvalidPreference)
	}

	p, err := s.store.GetPreferences(ctx, visitorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.defaults(visitorID), nil
		}
		return s.defaults(visitorID), fmt.Errorf("failed to load preferences: %w", err)
	}

	if _, ok := model.ParseLanguage(string(p.Language)); !ok {
		p.Language = s.defaultLang
	}
	if _, ok := model.ParseTheme(string(p.Theme)); !ok {
		p.Theme = s.defaultTheme
	}
	return p, nil
}

// Update applies the non-empty fields and saves when something changed.
func (s *PreferenceService) Update(ctx context.Context, visitorID, lang, theme string) (*model.Preferences, error) {
	p, err := s.Load(ctx, visitorID)
	if err != nil && errors.Is(err, ErrInvalidPreference) {
		return nil, err
	}

	changed := false
	if lang != "" {
		l, ok := model.ParseLanguage(lang)
		if !ok {
			return nil, fmt.Errorf("%w: language %q", ErrInvalidPreference, lang)
		}
		if l != p.Language {
			p.Language = l
			changed = true
		}
	}
	if theme != "" {
		t, ok := model.ParseTheme(theme)
		if !ok {
			return nil, fmt.Errorf("%w: theme %q", ErrInvalidPreference, theme)
		}
		if t != p.Theme {
			p.Theme = t
			changed = true
		}
	}
	if !changed {
		return p, nil
	}

	p.UpdatedAt = s.now()
	if err := s.store.SavePreferences(ctx, p); err != nil {
		return p, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}
