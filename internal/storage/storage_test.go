package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vexl-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcript(id string, updated time.Time, texts ...string) *model.Transcript {
	t := &model.Transcript{
		SessionID: id,
		VisitorID: "visitor-1",
		Language:  model.LangEN,
		CreatedAt: updated.Add(-time.Minute),
		UpdatedAt: updated,
	}
	for i, text := range texts {
		sender := model.SenderAssistant
		if i%2 == 1 {
			sender = model.SenderUser
		}
		t.Messages = append(t.Messages, model.Message{ID: id + "-" + text, Sender: sender, Text: text})
	}
	return t
}

func runConformance(t *testing.T, s Storage) {
	ctx := context.Background()

	t.Run("preferences", func(t *testing.T) {
		_, err := s.GetPreferences(ctx, "v-1")
		assert.ErrorIs(t, err, ErrNotFound)

		prefs := &model.Preferences{VisitorID: "v-1", Language: model.LangAR, Theme: model.ThemeLight}
		require.NoError(t, s.SavePreferences(ctx, prefs))

		got, err := s.GetPreferences(ctx, "v-1")
		require.NoError(t, err)
		assert.Equal(t, model.LangAR, got.Language)
		assert.Equal(t, model.ThemeLight, got.Theme)

		require.NoError(t, s.DeletePreferences(ctx, "v-1"))
		assert.ErrorIs(t, s.DeletePreferences(ctx, "v-1"), ErrNotFound)
	})

	t.Run("invalid ids", func(t *testing.T) {
		assert.ErrorIs(t, s.SavePreferences(ctx, &model.Preferences{VisitorID: "../etc"}), ErrInvalidData)
		assert.ErrorIs(t, s.SaveTranscript(ctx, &model.Transcript{SessionID: ""}), ErrInvalidData)
		assert.ErrorIs(t, s.SavePreferences(ctx, nil), ErrInvalidData)
	})

	t.Run("transcripts", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Second)
		older := transcript("s-old", now.Add(-time.Hour), "hello")
		newer := transcript("s-new", now, "hello", "Who are you?", "We are...")

		require.NoError(t, s.SaveTranscript(ctx, older))
		require.NoError(t, s.SaveTranscript(ctx, newer))

		got, err := s.GetTranscript(ctx, "s-new")
		require.NoError(t, err)
		require.Len(t, got.Messages, 3)
		assert.Equal(t, "Who are you?", got.Messages[1].Text)

		// Returned values are copies.
		got.Messages[0].Text = "mutated"
		again, err := s.GetTranscript(ctx, "s-new")
		require.NoError(t, err)
		assert.Equal(t, "hello", again.Messages[0].Text)

		list, err := s.ListTranscripts(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "s-new", list[0].SessionID)
		assert.Empty(t, list[0].Messages)

		require.NoError(t, s.DeleteTranscript(ctx, "s-old"))
		require.NoError(t, s.DeleteTranscript(ctx, "s-new"))
		_, err = s.GetTranscript(ctx, "s-new")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.DeleteTranscript(ctx, "s-new"), ErrNotFound)
	})
}

func TestMemoryStorage(t *testing.T) {
	s := NewMemoryStorage()
	require.NoError(t, s.Init())
	defer s.Close()
	runConformance(t, s)
}

func TestDiskStorage(t *testing.T) {
	s := NewDiskStorage(t.TempDir(), 10)
	require.NoError(t, s.Init())
	defer s.Close()
	runConformance(t, s)
}

func TestRedisStorage(t *testing.T) {
	url := os.Getenv("VEXL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VEXL_TEST_REDIS_URL not set")
	}
	s, err := NewRedisStorage(RedisOptions{
		URL:           url,
		KeyPrefix:     "vexl-test:" + time.Now().Format("150405.000000") + ":",
		TranscriptTTL: time.Minute,
	})
	require.NoError(t, err)
	require.NoError(t, s.Init())
	defer s.Close()
	runConformance(t, s)
}

func TestRedisKeysAndURL(t *testing.T) {
	_, err := NewRedisStorage(RedisOptions{URL: "not a url"})
	assert.ErrorIs(t, err, ErrStorageInit)

	s, err := NewRedisStorage(RedisOptions{URL: "redis://localhost:6379/2", KeyPrefix: "vexl:"})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "vexl:prefs:abc", s.preferencesKey("abc"))
	assert.Equal(t, "vexl:transcript:abc", s.transcriptKey("abc"))
}

func TestDiskStorageSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := NewDiskStorage(dir, 10)
	require.NoError(t, s.Init())
	require.NoError(t, s.SaveTranscript(ctx, transcript("s-1", time.Now(), "hello")))
	require.NoError(t, s.SavePreferences(ctx, &model.Preferences{VisitorID: "v-1", Language: model.LangAR}))
	require.NoError(t, s.Close())

	reopened := NewDiskStorage(dir, 10)
	require.NoError(t, reopened.Init())
	assert.Equal(t, 1, reopened.cached())

	got, err := reopened.GetTranscript(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Messages[0].Text)

	prefs, err := reopened.GetPreferences(ctx, "v-1")
	require.NoError(t, err)
	assert.Equal(t, model.LangAR, prefs.Language)
}

func TestDiskStorageEvictsOldest(t *testing.T) {
	s := NewDiskStorage(t.TempDir(), 2)
	require.NoError(t, s.Init())
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveTranscript(ctx, transcript(id, base.Add(time.Duration(i)*time.Second), "x")))
	}
	assert.Equal(t, 2, s.cached())

	// Evicted records are still on disk.
	got, err := s.GetTranscript(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.SessionID)
	assert.Equal(t, 2, s.cached())
}

func TestDiskStorageBackup(t *testing.T) {
	dir := t.TempDir()
	s := NewDiskStorage(dir, 10)
	require.NoError(t, s.Init())
	ctx := context.Background()

	require.NoError(t, s.SaveTranscript(ctx, transcript("s-1", time.Now(), "hello")))
	require.NoError(t, s.SavePreferences(ctx, &model.Preferences{VisitorID: "v-1"}))
	require.NoError(t, s.Backup())

	backups, err := os.ReadDir(filepath.Join(dir, backupDir))
	require.NoError(t, err)
	require.Len(t, backups, 1)

	root := filepath.Join(dir, backupDir, backups[0].Name())
	assert.FileExists(t, filepath.Join(root, transcriptsDir, "s-1.json"))
	assert.FileExists(t, filepath.Join(root, preferencesDir, "v-1.json"))
	assert.FileExists(t, filepath.Join(root, indexFile))
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("3f2b8c1e-5a7d-4e8f-9b0a-1c2d3e4f5a6b"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID(".."))
}
