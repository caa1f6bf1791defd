package storage

import (
	"context"
	"sort"
	"sync"

	"vexl-backend/internal/model"
)

type MemoryStorage struct {
	prefs       map[string]model.Preferences
	transcripts map[string]*model.Transcript
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		prefs:       make(map[string]model.Preferences),
		transcripts: make(map[string]*model.Transcript),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) Backup() error {
	return nil
}

func (m *MemoryStorage) GetPreferences(ctx context.Context, visitorID string) (*model.Preferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.prefs[visitorID]
	if !exists {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStorage) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	if prefs == nil || !ValidID(prefs.VisitorID) {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prefs[prefs.VisitorID] = *prefs
	return nil
}

func (m *MemoryStorage) DeletePreferences(ctx context.Context, visitorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.prefs[visitorID]; !exists {
		return ErrNotFound
	}
	delete(m.prefs, visitorID)
	return nil
}

func (m *MemoryStorage) GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.transcripts[sessionID]
	if !exists {
		return nil, ErrNotFound
	}
	return copyTranscript(t), nil
}

func (m *MemoryStorage) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	if transcript == nil || !ValidID(transcript.SessionID) {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.transcripts[transcript.SessionID] = copyTranscript(transcript)
	return nil
}

func (m *MemoryStorage) DeleteTranscript(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transcripts[sessionID]; !exists {
		return ErrNotFound
	}
	delete(m.transcripts, sessionID)
	return nil
}

func (m *MemoryStorage) ListTranscripts(ctx context.Context) ([]*model.Transcript, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*model.Transcript, 0, len(m.transcripts))
	for _, t := range m.transcripts {
		list = append(list, header(t))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}
