package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"
)

const (
	preferencesDir = "preferences"
	transcriptsDir = "transcripts"
	backupDir      = "backup"
	indexFile      = "transcripts.json"
)

// DiskStorage keeps one JSON file per record under dataDir. Transcripts
// are indexed in transcripts.json and the most recently updated ones are
// cached in memory.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Transcript
	cacheSize int
}

type TranscriptIndex struct {
	SessionID string         `json:"session_id"`
	VisitorID string         `json:"visitor_id,omitempty"`
	Language  model.Language `json:"language"`
	Count     int            `json:"count"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Transcript),
		cacheSize: cacheSize,
	}
}

func (d *DiskStorage) Init() error {
	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.warmCache(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Info("Disk storage initialized successfully")
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, preferencesDir),
		filepath.Join(d.dataDir, transcriptsDir),
		filepath.Join(d.dataDir, backupDir),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) warmCache() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	indexPath := filepath.Join(d.dataDir, indexFile)
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return d.rebuildIndex()
	}

	indexes, err := d.readIndex()
	if err != nil {
		return err
	}

	for _, index := range indexes {
		if len(d.cache) >= d.cacheSize {
			break
		}

		t, err := d.readTranscript(index.SessionID)
		if err != nil {
			logger.Errorf("Failed to load transcript %s: %v", index.SessionID, err)
			continue
		}
		d.cache[index.SessionID] = t
	}

	return nil
}

func (d *DiskStorage) preferencesPath(visitorID string) string {
	return filepath.Join(d.dataDir, preferencesDir, visitorID+".json")
}

func (d *DiskStorage) transcriptPath(sessionID string) string {
	return filepath.Join(d.dataDir, transcriptsDir, sessionID+".json")
}

// writeJSON writes through a temp file and a rename so readers never see
// a partial document.
func writeJSON(path string, v interface{}) error {
	tempPath := path + ".tmp"

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return nil
}

func (d *DiskStorage) GetPreferences(ctx context.Context, visitorID string) (*model.Preferences, error) {
	if !ValidID(visitorID) {
		return nil, ErrNotFound
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var prefs model.Preferences
	if err := readJSON(d.preferencesPath(visitorID), &prefs); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return &prefs, nil
}

func (d *DiskStorage) SavePreferences(ctx context.Context, prefs *model.Preferences) error {
	if prefs == nil || !ValidID(prefs.VisitorID) {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeJSON(d.preferencesPath(prefs.VisitorID), prefs); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) DeletePreferences(ctx context.Context, visitorID string) error {
	if !ValidID(visitorID) {
		return ErrNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.preferencesPath(visitorID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) readTranscript(sessionID string) (*model.Transcript, error) {
	var t model.Transcript
	if err := readJSON(d.transcriptPath(sessionID), &t); err != nil {
		return nil, err
	}
	if t.Messages == nil {
		t.Messages = []model.Message{}
	}
	return &t, nil
}

func (d *DiskStorage) GetTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	if !ValidID(sessionID) {
		return nil, ErrNotFound
	}

	d.mu.RLock()
	if t, exists := d.cache[sessionID]; exists {
		d.mu.RUnlock()
		return copyTranscript(t), nil
	}
	d.mu.RUnlock()

	t, err := d.readTranscript(sessionID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[sessionID] = t
	d.evictCache()
	d.mu.Unlock()

	return copyTranscript(t), nil
}

func (d *DiskStorage) SaveTranscript(ctx context.Context, transcript *model.Transcript) error {
	if transcript == nil || !ValidID(transcript.SessionID) {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t := copyTranscript(transcript)
	if err := writeJSON(d.transcriptPath(t.SessionID), t); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[t.SessionID] = t
	d.evictCache()

	if err := d.rebuildIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) DeleteTranscript(ctx context.Context, sessionID string) error {
	if !ValidID(sessionID) {
		return ErrNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.transcriptPath(sessionID)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, sessionID)
	return d.rebuildIndex()
}

func (d *DiskStorage) ListTranscripts(ctx context.Context) ([]*model.Transcript, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexes, err := d.readIndex()
	if err != nil {
		return nil, err
	}

	list := make([]*model.Transcript, 0, len(indexes))
	for _, index := range indexes {
		list = append(list, &model.Transcript{
			SessionID: index.SessionID,
			VisitorID: index.VisitorID,
			Language:  index.Language,
			CreatedAt: index.CreatedAt,
			UpdatedAt: index.UpdatedAt,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})

	return list, nil
}

func (d *DiskStorage) readIndex() ([]*TranscriptIndex, error) {
	var indexes []*TranscriptIndex
	if err := readJSON(filepath.Join(d.dataDir, indexFile), &indexes); err != nil {
		if os.IsNotExist(err) {
			return []*TranscriptIndex{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return indexes, nil
}

// rebuildIndex rescans the transcripts directory. Callers hold d.mu.
func (d *DiskStorage) rebuildIndex() error {
	files, err := os.ReadDir(filepath.Join(d.dataDir, transcriptsDir))
	if err != nil {
		return err
	}

	indexes := []*TranscriptIndex{}
	for _, file := range files {
		if filepath.Ext(file.Name()) != ".json" {
			continue
		}

		sessionID := file.Name()[:len(file.Name())-5]
		t, err := d.readTranscript(sessionID)
		if err != nil {
			logger.Errorf("Failed to load transcript %s for index update: %v", sessionID, err)
			continue
		}

		indexes = append(indexes, &TranscriptIndex{
			SessionID: t.SessionID,
			VisitorID: t.VisitorID,
			Language:  t.Language,
			Count:     len(t.Messages),
			CreatedAt: t.CreatedAt,
			UpdatedAt: t.UpdatedAt,
		})
	}

	sort.Slice(indexes, func(i, j int) bool {
		return indexes[i].UpdatedAt.After(indexes[j].UpdatedAt)
	})

	return writeJSON(filepath.Join(d.dataDir, indexFile), indexes)
}

// evictCache drops the least recently updated transcripts. Callers hold d.mu.
func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, t := range d.cache {
		entries = append(entries, cacheEntry{id: id, updatedAt: t.UpdatedAt})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) cached() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.cache)
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Transcript)
	return nil
}

// Backup copies every record and the index into backup/backup_<unix>.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dst := filepath.Join(d.dataDir, backupDir, fmt.Sprintf("backup_%d", time.Now().UnixNano()))

	if err := os.MkdirAll(dst, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	for _, dir := range []string{preferencesDir, transcriptsDir} {
		dstDir := filepath.Join(dst, dir)
		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		if err := copyDir(filepath.Join(d.dataDir, dir), dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	indexSrc := filepath.Join(d.dataDir, indexFile)
	if _, err := os.Stat(indexSrc); err == nil {
		if err := copyFile(indexSrc, filepath.Join(dst, indexFile)); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("Backup completed: %s", dst)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}
