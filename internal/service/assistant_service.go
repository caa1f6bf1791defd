package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vexl-backend/internal/assistant"
	"vexl-backend/internal/content"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"
	"vexl-backend/internal/navigation"
	"vexl-backend/internal/storage"
	"vexl-backend/pkg/logger"

	"github.com/google/uuid"
)

type AssistantConfig struct {
	Timings  assistant.Timings
	StayOpen bool
	// TTL is how long an untouched session stays live.
	TTL             time.Duration
	CleanupInterval time.Duration
	// Retention is how long stored transcripts are kept. Zero keeps them.
	Retention   time.Duration
	MaxSessions int
}

type AssistantOption func(*AssistantService)

// WithScheduler replaces the wall clock scheduler of new widgets.
func WithScheduler(s assistant.Scheduler) AssistantOption {
	return func(svc *AssistantService) { svc.scheduler = s }
}

func WithMetrics(m *monitoring.Metrics) AssistantOption {
	return func(svc *AssistantService) { svc.metrics = m }
}

func WithClock(now func() time.Time) AssistantOption {
	return func(svc *AssistantService) { svc.now = now }
}

type session struct {
	id         string
	visitorID  string
	createdAt  time.Time
	widget     *assistant.Widget
	lastActive atomic.Int64

	// saved is the message count of the last persisted transcript and
	// savedLang its language.
	saved     atomic.Int64
	savedLang atomic.Value
	dirty chan struct{}
	done  chan struct{}
	wg    sync.WaitGroup
}

func (s *session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *session) lang() model.Language {
	l, _ := s.savedLang.Load().(model.Language)
	return l
}

// stale reports whether the stored transcript lags behind the widget.
func (s *session) stale(messages int, lang model.Language) bool {
	return int64(messages) != s.saved.Load() || lang != s.lang()
}

// owns reports whether visitorID may resume a session owned by owner.
// Sessions without a recorded owner are open to anyone.
func owns(owner, visitorID string) bool {
	return owner == "" || visitorID == "" || owner == visitorID
}

// AssistantService owns the live assistant sessions.
type AssistantService struct {
	dict      *content.Dictionary
	router    *navigation.Router
	store     storage.Storage
	hub       *EventHub
	cfg       AssistantConfig
	scheduler assistant.Scheduler
	metrics   *monitoring.Metrics
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewAssistantService(dict *content.Dictionary, router *navigation.Router, store storage.Storage, hub *EventHub, cfg AssistantConfig, opts ...AssistantOption) *AssistantService {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.Timings == (assistant.Timings{}) {
		cfg.Timings = assistant.DefaultTimings()
	}

	s := &AssistantService{
		dict:     dict,
		router:   router,
		store:    store,
		hub:      hub,
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = assistant.NewScheduler()
	}
	return s
}

// StartSession returns the live session sessionID, restores it from a
// stored transcript, or creates a new one when sessionID is empty or
// unknown. A restored history never gets a second greeting. A session
// that belongs to another visitor is never handed out; the caller gets a
// new session id instead.
func (s *AssistantService) StartSession(ctx context.Context, sessionID, visitorID string, lang model.Language) (*model.Snapshot, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !storage.ValidID(sessionID) {
		return nil, ErrInvalidSessionID
	}
	if lang != "" {
		if _, ok := model.ParseLanguage(string(lang)); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
		}
	}

	if sess, err := s.get(sessionID); err == nil {
		if owns(sess.visitorID, visitorID) {
			snap := sess.widget.Snapshot()
			return &snap, nil
		}
		sessionID = s.foreignSession(sessionID, visitorID)
	}

	var history []model.Message
	var storedLang model.Language
	createdAt := s.now()
	t, err := s.store.GetTranscript(ctx, sessionID)
	switch {
	case err == nil && !owns(t.VisitorID, visitorID):
		sessionID = s.foreignSession(sessionID, visitorID)
	case err == nil:
		storedLang = t.Language
		history = t.Messages
		createdAt = t.CreatedAt
		if lang == "" {
			lang = t.Language
		}
		if visitorID == "" {
			visitorID = t.VisitorID
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		logger.WithFields(logger.Fields{
			"session_id": sessionID,
			"error":      err,
		}).Warn("Failed to restore assistant transcript, starting fresh")
	}
	if lang == "" {
		lang = model.LangEN
	}

	sess := &session{
		id:        sessionID,
		visitorID: visitorID,
		createdAt: createdAt,
		dirty:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	sess.saved.Store(int64(len(history)))
	sess.savedLang.Store(storedLang)
	sess.touch(s.now())

	w, err := assistant.New(assistant.Config{
		SessionID:  sessionID,
		Language:   lang,
		Scripts:    s.dict,
		Dispatcher: s.router.Dispatcher(sessionID, navigation.PublisherFunc(s.publishAction)),
		Scheduler:  s.scheduler,
		Timings:    s.cfg.Timings,
		Observer:   s.observe(sess),
		History:    history,
		StayOpen:   s.cfg.StayOpen,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	sess.widget = w

	// the persist loop is counted before the session becomes visible to stop
	sess.wg.Add(1)
	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok && owns(existing.visitorID, visitorID) {
		s.mu.Unlock()
		sess.wg.Done()
		w.Shutdown()
		snap := existing.widget.Snapshot()
		return &snap, nil
	} else if ok {
		s.mu.Unlock()
		sess.wg.Done()
		w.Shutdown()
		return nil, ErrSessionNotFound
	}
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		sess.wg.Done()
		w.Shutdown()
		return nil, ErrTooManySessions
	}
	s.sessions[sessionID] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	go s.persistLoop(sess)
	if sess.stale(len(w.Messages()), w.Language()) {
		s.markDirty(sess)
	}
	s.metrics.SetAssistantSessions(count)

	logger.WithFields(logger.Fields{
		"session_id": sessionID,
		"visitor_id": visitorID,
		"lang":       lang,
		"restored":   len(history) > 0,
	}).Info("Assistant session started")

	snap := w.Snapshot()
	return &snap, nil
}

func (s *AssistantService) Open(sessionID string) (*model.Snapshot, error) {
	return s.apply(sessionID, "open", func(w *assistant.Widget) error { return w.Open() })
}

func (s *AssistantService) Close(sessionID string) (*model.Snapshot, error) {
	return s.apply(sessionID, "close", func(w *assistant.Widget) error { return w.Close() })
}

func (s *AssistantService) Toggle(sessionID string) (*model.Snapshot, error) {
	return s.apply(sessionID, "toggle", func(w *assistant.Widget) error { return w.Toggle() })
}

func (s *AssistantService) Select(sessionID, actionKey string) (*model.Snapshot, error) {
	snap, err := s.apply(sessionID, "select", func(w *assistant.Widget) error { return w.Select(actionKey) })
	if err == nil {
		s.metrics.RecordSelection(actionKey, string(snap.Language))
	}
	return snap, err
}

func (s *AssistantService) ChangeLanguage(sessionID, lang string) (*model.Snapshot, error) {
	l, ok := model.ParseLanguage(lang)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	return s.apply(sessionID, "language", func(w *assistant.Widget) error { return w.ChangeLanguage(l) })
}

func (s *AssistantService) Snapshot(sessionID string) (*model.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now())
	snap := sess.widget.Snapshot()
	return &snap, nil
}

// Subscribe streams the events of a live session. The first event is the
// current state.
func (s *AssistantService) Subscribe(sessionID string) (<-chan model.AssistantEvent, func(), error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, nil, err
	}
	sess.touch(s.now())

	ch, cancel := s.hub.Subscribe(sessionID)
	s.hub.PublishState(sess.widget.Snapshot())
	return ch, cancel, nil
}

// Touch keeps a session alive while a stream is open.
func (s *AssistantService) Touch(sessionID string) {
	if sess, err := s.get(sessionID); err == nil {
		sess.touch(s.now())
	}
}

// EndSession stops a session and deletes its transcript.
func (s *AssistantService) EndSession(ctx context.Context, sessionID string) error {
	if !storage.ValidID(sessionID) {
		return ErrInvalidSessionID
	}

	sess := s.remove(sessionID)
	if sess != nil {
		s.stop(sess, false)
	}

	err := s.store.DeleteTranscript(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		if sess == nil {
			return ErrSessionNotFound
		}
	default:
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	logger.WithFields(logger.Fields{"session_id": sessionID}).Info("Assistant session ended")
	return nil
}

// ActiveSessions returns the number of live sessions.
func (s *AssistantService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run removes idle sessions and expired transcripts until ctx is done.
func (s *AssistantService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupIdle()
			s.PruneTranscripts(ctx)
		}
	}
}

// CleanupIdle stops the sessions untouched for longer than the TTL. Their
// transcripts are flushed and kept.
func (s *AssistantService) CleanupIdle() int {
	cutoff := s.now().Add(-s.cfg.TTL).UnixNano()

	s.mu.Lock()
	var expired []*session
	for id, sess := range s.sessions {
		if sess.lastActive.Load() < cutoff {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		s.stop(sess, true)
		logger.Infof("Cleaned up idle assistant session: %s", sess.id)
	}
	if len(expired) > 0 {
		s.metrics.IncExpired(len(expired))
		s.metrics.SetAssistantSessions(count)
	}
	return len(expired)
}

// PruneTranscripts deletes stored transcripts older than the retention of
// sessions that are not live.
func (s *AssistantService) PruneTranscripts(ctx context.Context) int {
	if s.cfg.Retention <= 0 {
		return 0
	}

	headers, err := s.store.ListTranscripts(ctx)
	if err != nil {
		logger.Errorf("Failed to list transcripts for cleanup: %v", err)
		return 0
	}

	cutoff := s.now().Add(-s.cfg.Retention)
	pruned := 0
	for _, h := range headers {
		if !h.UpdatedAt.Before(cutoff) {
			continue
		}
		if _, err := s.get(h.SessionID); err == nil {
			continue
		}
		if err := s.store.DeleteTranscript(ctx, h.SessionID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Errorf("Failed to delete expired transcript %s: %v", h.SessionID, err)
			continue
		}
		pruned++
	}
	return pruned
}

// Shutdown stops every session and flushes its transcript.
func (s *AssistantService) Shutdown() {
	s.mu.Lock()
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		s.stop(sess, true)
	}
	s.metrics.SetAssistantSessions(0)
}

func (s *AssistantService) apply(sessionID, op string, fn func(*assistant.Widget) error) (*model.Snapshot, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.touch(s.now())

	if err := fn(sess.widget); err != nil {
		s.metrics.RecordRejection(rejectionReason(err))
		logger.WithFields(logger.Fields{
			"session_id": sessionID,
			"op":         op,
			"error":      err,
		}).Debug("Assistant command rejected")
		return nil, err
	}
	snap := sess.widget.Snapshot()
	return &snap, nil
}

func (s *AssistantService) get(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *AssistantService) remove(sessionID string) *session {
	s.mu.Lock()
	sess := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()

	if sess != nil {
		s.metrics.SetAssistantSessions(count)
	}
	return sess
}

// stop shuts the widget down, ends its streams and waits for the persist
// loop. With flush the final transcript is written first.
func (s *AssistantService) stop(sess *session, flush bool) {
	sess.widget.Shutdown()
	s.hub.CloseSession(sess.id)
	if !flush {
		sess.saved.Store(-1)
	}
	close(sess.done)
	sess.wg.Wait()
}

// observe publishes every snapshot and marks the transcript dirty when
// the history or the language changed. It runs under the widget lock.
func (s *AssistantService) observe(sess *session) assistant.Observer {
	return func(snap model.Snapshot) {
		s.hub.PublishState(snap)
		if sess.stale(len(snap.Messages), snap.Language) {
			s.markDirty(sess)
		}
	}
}

func (s *AssistantService) markDirty(sess *session) {
	select {
	case sess.dirty <- struct{}{}:
	default:
	}
}

func (s *AssistantService) publishAction(sessionID string, action model.Action) {
	s.metrics.RecordAction(action.Key, string(action.Kind))
	s.hub.PublishAction(sessionID, action)
}

func (s *AssistantService) persistLoop(sess *session) {
	defer sess.wg.Done()

	for {
		select {
		case <-sess.dirty:
			s.persist(sess)
		case <-sess.done:
			// saved is -1 when the transcript is being deleted
			if sess.saved.Load() >= 0 {
				s.persist(sess)
			}
			return
		}
	}
}

func (s *AssistantService) persist(sess *session) {
	messages := sess.widget.Messages()
	lang := sess.widget.Language()
	if !sess.stale(len(messages), lang) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t := &model.Transcript{
		SessionID: sess.id,
		VisitorID: sess.visitorID,
		Language:  lang,
		Messages:  messages,
		CreatedAt: sess.createdAt,
		UpdatedAt: s.now(),
	}
	if err := s.store.SaveTranscript(ctx, t); err != nil {
		logger.WithFields(logger.Fields{
			"session_id": sess.id,
			"error":      err,
		}).Error("Failed to save assistant transcript")
		return
	}
	sess.saved.Store(int64(len(messages)))
	sess.savedLang.Store(lang)
}

// foreignSession logs a resume attempt on another visitor's session and
// returns a fresh id to start under.
func (s *AssistantService) foreignSession(sessionID, visitorID string) string {
	fresh := uuid.NewString()
	logger.WithFields(logger.Fields{
		"session_id": sessionID,
		"visitor_id": visitorID,
		"new_id":     fresh,
	}).Warn("Assistant session belongs to another visitor, starting fresh")
	return fresh
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, assistant.ErrClosed):
		return "closed"
	case errors.Is(err, assistant.ErrBusy):
		return "busy"
	case errors.Is(err, assistant.ErrUnknownOption):
		return "unknown_option"
	case errors.Is(err, assistant.ErrShutdown):
		return "shutdown"
	default:
		return "other"
	}
}
