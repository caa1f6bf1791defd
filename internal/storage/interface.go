package storage

import (
	"context"
	"regexp"

	"vexl-backend/internal/model"
)

type Storage interface {
	// Visitor preferences
	GetPreferences(ctx context.Context, visitorID string) (*model.Preferences, error)
	SavePreferences(ctx context.Context, prefs *model.Preferences) error
	DeletePreferences(ctx context.Context, visitorID string) error

	// Assistant transcripts
	GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error)
	SaveTranscript(ctx context.Context, transcript *model.Transcript) error
	DeleteTranscript(ctx context.Context, sessionID string) error
	// ListTranscripts returns transcript headers without messages, most
	// recently updated first.
	ListTranscripts(ctx context.Context) ([]*model.Transcript, error)

	Init() error
	Close() error
	Backup() error
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidID reports whether id is safe to use as a key or file name.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

func header(t *model.Transcript) *model.Transcript {
	h := *t
	h.Messages = nil
	return &h
}

func copyTranscript(t *model.Transcript) *model.Transcript {
	c := *t
	c.Messages = append([]model.Message(nil), t.Messages...)
	return &c
}
