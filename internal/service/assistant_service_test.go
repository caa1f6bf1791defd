package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"vexl-backend/internal/assistant"
	"vexl-backend/internal/content"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"
	"vexl-backend/internal/navigation"
	"vexl-backend/internal/storage"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Add(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type assistantFixture struct {
	svc     *AssistantService
	store   *storage.MemoryStorage
	sched   *assistant.ManualScheduler
	clock   *testClock
	metrics *monitoring.Metrics
}

func newAssistantFixture(t *testing.T, cfg AssistantConfig) *assistantFixture {
	t.Helper()

	dict, err := content.Load()
	require.NoError(t, err)
	router, err := navigation.NewRouter(nil)
	require.NoError(t, err)

	f := &assistantFixture{
		store:   storage.NewMemoryStorage(),
		sched:   assistant.NewManualScheduler(),
		clock:   newTestClock(),
		metrics: monitoring.NewMetrics(),
	}
	require.NoError(t, f.store.Init())

	f.svc = NewAssistantService(dict, router, f.store, NewEventHub(64), cfg,
		WithScheduler(f.sched),
		WithMetrics(f.metrics),
		WithClock(f.clock.Now),
	)
	t.Cleanup(f.svc.Shutdown)
	return f
}

func (f *assistantFixture) storedMessages(t *testing.T, id string) func() int {
	return func() int {
		tr, err := f.store.GetTranscript(context.Background(), id)
		if err != nil {
			return -1
		}
		return len(tr.Messages)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestStartSessionSeedsAndPersistsGreeting(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	snap, err := f.svc.StartSession(ctx, "", "visitor-1", model.LangEN)
	require.NoError(t, err)
	require.NotEmpty(t, snap.SessionID)
	assert.False(t, snap.IsOpen)
	assert.Equal(t, "closed", snap.State)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, model.SenderAssistant, snap.Messages[0].Sender)

	waitFor(t, func() bool { return f.storedMessages(t, snap.SessionID)() == 1 })

	tr, err := f.store.GetTranscript(ctx, snap.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "visitor-1", tr.VisitorID)
	assert.Equal(t, model.LangEN, tr.Language)

	again, err := f.svc.StartSession(ctx, snap.SessionID, "visitor-1", model.LangEN)
	require.NoError(t, err)
	assert.Equal(t, snap.Messages, again.Messages, "a live session is reused")
	assert.Equal(t, 1, f.svc.ActiveSessions())
}

func TestStartSessionRestoresTranscript(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	history := []model.Message{
		{ID: "m1", Sender: model.SenderAssistant, Text: "أهلاً"},
		{ID: "m2", Sender: model.SenderUser, Text: "من أنتم؟"},
		{ID: "m3", Sender: model.SenderAssistant, Text: "نحن VEXL"},
	}
	require.NoError(t, f.store.SaveTranscript(ctx, &model.Transcript{
		SessionID: "restored-1",
		VisitorID: "v9",
		Language:  model.LangAR,
		Messages:  history,
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}))

	snap, err := f.svc.StartSession(ctx, "restored-1", "", "")
	require.NoError(t, err)
	assert.Equal(t, history, snap.Messages, "no second greeting")
	assert.Equal(t, model.LangAR, snap.Language)
	assert.Equal(t, "rtl", snap.Dir)
}

func TestStartSessionRejectsBadInput(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{MaxSessions: 1})
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, "../etc", "", model.LangEN)
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	_, err = f.svc.StartSession(ctx, "", "", "fr")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	_, err = f.svc.StartSession(ctx, "one", "", model.LangEN)
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, "two", "", model.LangEN)
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestUnknownSession(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})

	_, err := f.svc.Open("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Snapshot("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = f.svc.Subscribe("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.EndSession(context.Background(), "missing"), ErrSessionNotFound)
}

func nextEvent(t *testing.T, ch <-chan model.AssistantEvent, typ string) model.AssistantEvent {
	t.Helper()
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "stream closed before %s event", typ)
			if ev.Type == typ {
				return ev
			}
		case <-time.After(time.Second):
			t.Fatalf("no %s event", typ)
		}
	}
}

func TestAcademyFlowPublishesAction(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	snap, err := f.svc.StartSession(ctx, "flow-1", "", model.LangEN)
	require.NoError(t, err)

	events, cancel, err := f.svc.Subscribe("flow-1")
	require.NoError(t, err)
	defer cancel()
	first := nextEvent(t, events, model.EventState)
	assert.Equal(t, snap.Version, first.Snapshot.Version)

	_, err = f.svc.Select("flow-1", "academy")
	assert.ErrorIs(t, err, assistant.ErrClosed)

	_, err = f.svc.Open("flow-1")
	require.NoError(t, err)

	snap, err = f.svc.Select("flow-1", "academy")
	require.NoError(t, err)
	assert.True(t, snap.IsAssistantTyping)
	assert.Empty(t, snap.Options)

	_, err = f.svc.Select("flow-1", "identity")
	assert.ErrorIs(t, err, assistant.ErrBusy)

	f.sched.Advance(1200 * time.Millisecond)
	f.sched.Advance(2000 * time.Millisecond)

	ev := nextEvent(t, events, model.EventAction)
	require.NotNil(t, ev.Action)
	assert.Equal(t, model.Action{Key: "academy", Kind: model.ActionNavigate, Target: "/academy"}, *ev.Action)

	f.sched.Advance(500 * time.Millisecond)
	snap, err = f.svc.Snapshot("flow-1")
	require.NoError(t, err)
	assert.False(t, snap.IsOpen)
	assert.True(t, snap.OptionsVisible)
	assert.Len(t, snap.Messages, 3)

	waitFor(t, func() bool { return f.storedMessages(t, "flow-1")() == 3 })

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssistantSelections.WithLabelValues("academy", "en")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssistantActions.WithLabelValues("academy", "navigate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssistantRejections.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssistantRejections.WithLabelValues("busy")))
}

func TestChangeLanguage(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	_, err := f.svc.StartSession(context.Background(), "lang-1", "", model.LangEN)
	require.NoError(t, err)

	_, err = f.svc.ChangeLanguage("lang-1", "de")
	assert.ErrorIs(t, err, ErrInvalidLanguage)

	snap, err := f.svc.ChangeLanguage("lang-1", "AR")
	require.NoError(t, err)
	assert.Equal(t, model.LangAR, snap.Language)
	assert.Len(t, snap.Messages, 1, "history is kept across a language switch")
}

func TestLanguageSwitchIsPersisted(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{TTL: time.Minute})
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, "lang-2", "v1", model.LangEN)
	require.NoError(t, err)
	waitFor(t, func() bool { return f.storedMessages(t, "lang-2")() == 1 })

	_, err = f.svc.ChangeLanguage("lang-2", "ar")
	require.NoError(t, err)
	waitFor(t, func() bool {
		tr, err := f.store.GetTranscript(ctx, "lang-2")
		return err == nil && tr.Language == model.LangAR
	})

	f.clock.Add(2 * time.Minute)
	require.Equal(t, 1, f.svc.CleanupIdle())

	snap, err := f.svc.StartSession(ctx, "lang-2", "v1", "")
	require.NoError(t, err)
	assert.Equal(t, model.LangAR, snap.Language)
}

func TestStartSessionKeepsVisitorsApart(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	require.NoError(t, f.store.SaveTranscript(ctx, &model.Transcript{
		SessionID: "owned-1",
		VisitorID: "alice",
		Language:  model.LangEN,
		Messages:  []model.Message{{ID: "m1", Sender: model.SenderUser, Text: "private"}},
		CreatedAt: f.clock.Now(),
		UpdatedAt: f.clock.Now(),
	}))

	snap, err := f.svc.StartSession(ctx, "owned-1", "mallory", model.LangEN)
	require.NoError(t, err)
	assert.NotEqual(t, "owned-1", snap.SessionID)
	require.Len(t, snap.Messages, 1)
	assert.NotEqual(t, "private", snap.Messages[0].Text)

	snap, err = f.svc.StartSession(ctx, "owned-1", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "owned-1", snap.SessionID)
	assert.Equal(t, "private", snap.Messages[0].Text)

	// a live session is not shared either
	snap, err = f.svc.StartSession(ctx, "owned-1", "mallory", "")
	require.NoError(t, err)
	assert.NotEqual(t, "owned-1", snap.SessionID)

	tr, err := f.store.GetTranscript(ctx, "owned-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", tr.VisitorID)
}

func TestStartAndEndSessionConcurrently(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.svc.StartSession(ctx, "racy", "", model.LangEN)
		}()
		go func() {
			defer wg.Done()
			_ = f.svc.EndSession(ctx, "racy")
		}()
	}
	wg.Wait()

	_ = f.svc.EndSession(ctx, "racy")
	assert.Equal(t, 0, f.svc.ActiveSessions())
}

func TestCleanupIdle(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{TTL: 10 * time.Minute})
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, "idle", "", model.LangEN)
	require.NoError(t, err)
	_, err = f.svc.StartSession(ctx, "busy", "", model.LangEN)
	require.NoError(t, err)

	events, cancel, err := f.svc.Subscribe("idle")
	require.NoError(t, err)
	defer cancel()

	f.clock.Add(6 * time.Minute)
	_, err = f.svc.Open("busy")
	require.NoError(t, err)
	f.clock.Add(6 * time.Minute)

	assert.Equal(t, 1, f.svc.CleanupIdle())
	assert.Equal(t, 1, f.svc.ActiveSessions())

	_, err = f.svc.Snapshot("idle")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	nextEvent(t, events, model.EventClosed)

	assert.Equal(t, 1, f.storedMessages(t, "idle")(), "transcript survives the cleanup")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AssistantExpired))
}

func TestEndSessionDeletesTranscript(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{})
	ctx := context.Background()

	_, err := f.svc.StartSession(ctx, "bye", "", model.LangEN)
	require.NoError(t, err)
	waitFor(t, func() bool { return f.storedMessages(t, "bye")() == 1 })

	require.NoError(t, f.svc.EndSession(ctx, "bye"))
	assert.Equal(t, -1, f.storedMessages(t, "bye")())
	assert.Equal(t, 0, f.svc.ActiveSessions())

	assert.ErrorIs(t, f.svc.EndSession(ctx, "bye"), ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.EndSession(ctx, "bad id!"), ErrInvalidSessionID)
}

func TestPruneTranscripts(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{Retention: 24 * time.Hour})
	ctx := context.Background()

	old := f.clock.Now().Add(-48 * time.Hour)
	for _, id := range []string{"old-a", "old-live"} {
		require.NoError(t, f.store.SaveTranscript(ctx, &model.Transcript{
			SessionID: id,
			Language:  model.LangEN,
			Messages:  []model.Message{{ID: "1", Sender: model.SenderAssistant, Text: "hi"}},
			CreatedAt: old,
			UpdatedAt: old,
		}))
	}
	_, err := f.svc.StartSession(ctx, "old-live", "", model.LangEN)
	require.NoError(t, err)

	assert.Equal(t, 1, f.svc.PruneTranscripts(ctx))
	assert.Equal(t, -1, f.storedMessages(t, "old-a")())
	assert.Equal(t, 1, f.storedMessages(t, "old-live")(), "live sessions are kept")
}

func TestRunStopsWithContext(t *testing.T) {
	f := newAssistantFixture(t, AssistantConfig{CleanupInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}
