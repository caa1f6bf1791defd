package assistant

import (
	"errors"
	"sync"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"

	"github.com/google/uuid"
)

// Dispatcher carries out a terminal action. Calls are fire-and-forget.
type Dispatcher interface {
	PerformAction(actionKey string)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(actionKey string)

func (f DispatcherFunc) PerformAction(actionKey string) { f(actionKey) }

// ScriptSource returns the assistant script for a language. It is consulted
// on every read so a language switch never shows stale text.
type ScriptSource interface {
	Script(lang model.Language) *model.AssistantScript
}

// Observer receives a snapshot after every mutation. It runs while the
// widget lock is held and must not call back into the widget.
type Observer func(model.Snapshot)

// Timings are the delays of the response chain.
type Timings struct {
	Typing    time.Duration
	Reveal    time.Duration
	Read      time.Duration
	Reset     time.Duration
	AutoClose time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Typing:    1200 * time.Millisecond,
		Reveal:    600 * time.Millisecond,
		Read:      2000 * time.Millisecond,
		Reset:     1000 * time.Millisecond,
		AutoClose: 500 * time.Millisecond,
	}
}

type Config struct {
	SessionID  string
	Language   model.Language
	Scripts    ScriptSource
	Dispatcher Dispatcher
	Scheduler  Scheduler
	Timings    Timings
	Observer   Observer
	// History restores an earlier transcript. The greeting is only seeded
	// when History is empty.
	History     []model.Message
	IDGenerator func() string
	// StayOpen keeps the widget visible after a terminal action.
	StayOpen bool
}

// Widget is one visitor's guided assistant session.
type Widget struct {
	mu sync.Mutex

	sessionID  string
	lang       model.Language
	scripts    ScriptSource
	dispatcher Dispatcher
	scheduler  Scheduler
	timings    Timings
	observer   Observer
	newID      func() string
	stayOpen   bool

	state          State
	messages       []model.Message
	options        []model.Option
	optionsVisible bool
	typing         bool

	// epoch is bumped on every cancellation; a callback scheduled under an
	// older epoch is a no-op.
	epoch    uint64
	timers   []Timer
	version  uint64
	disposed bool
}

// New builds a closed widget with the greeting seeded into an empty history.
func New(cfg Config) (*Widget, error) {
	if cfg.Scripts == nil {
		return nil, errors.New("assistant: script source is required")
	}
	if _, ok := model.ParseLanguage(string(cfg.Language)); !ok {
		cfg.Language = model.LangEN
	}
	if cfg.Dispatcher == nil {
		cfg.Dispatcher = DispatcherFunc(func(string) {})
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = NewScheduler()
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = uuid.NewString
	}

	w := &Widget{
		sessionID:  cfg.SessionID,
		lang:       cfg.Language,
		scripts:    cfg.Scripts,
		dispatcher: cfg.Dispatcher,
		scheduler:  cfg.Scheduler,
		timings:    cfg.Timings,
		observer:   cfg.Observer,
		newID:      cfg.IDGenerator,
		stayOpen:   cfg.StayOpen,
		state:      StateClosed,
		messages:   append([]model.Message(nil), cfg.History...),
	}

	script := w.script()
	if script == nil {
		return nil, errors.New("assistant: no script for " + string(w.lang))
	}
	w.seedGreeting(script)
	w.options = script.MainMenu()
	w.optionsVisible = true
	return w, nil
}

// Open shows the widget. Opening an open widget is a no-op.
func (w *Widget) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrShutdown
	}
	if w.state != StateClosed {
		return nil
	}
	if !w.transition(EventOpen) {
		return nil
	}
	w.notify()
	return nil
}

// Close hides the widget, cancels any pending response and settles on
// the main menu. Messages are kept.
func (w *Widget) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrShutdown
	}
	if w.state == StateClosed {
		return nil
	}
	w.closeLocked()
	return nil
}

func (w *Widget) Toggle() error {
	w.mu.Lock()
	open := w.state != StateClosed
	w.mu.Unlock()

	if open {
		return w.Close()
	}
	return w.Open()
}

// SelectOption selects opt by its action key.
func (w *Widget) SelectOption(opt model.Option) error {
	return w.Select(opt.ActionKey)
}

// Select echoes the chosen option and starts the response chain.
func (w *Widget) Select(actionKey string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case w.disposed:
		return ErrShutdown
	case w.state == StateClosed:
		return ErrClosed
	case !w.state.Steady() || !w.optionsVisible:
		return ErrBusy
	}

	opt, ok := w.findOption(actionKey)
	if !ok {
		return ErrUnknownOption
	}
	if !w.transition(EventSelect) {
		return ErrBusy
	}

	w.appendMessage(model.SenderUser, opt.Label)
	w.optionsVisible = false
	w.typing = true
	w.notify()

	key := opt.ActionKey
	w.schedule(w.timings.Typing, func() { w.respond(key) })
	return nil
}

// ChangeLanguage switches the script, cancels any pending response and
// returns to the main menu wherever the flow was.
func (w *Widget) ChangeLanguage(lang model.Language) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return ErrShutdown
	}
	if _, ok := model.ParseLanguage(string(lang)); !ok {
		return errors.New("assistant: unsupported language " + string(lang))
	}

	w.cancelPending()
	w.lang = lang
	script := w.script()
	if script == nil {
		return errors.New("assistant: no script for " + string(lang))
	}
	w.seedGreeting(script)
	w.options = script.MainMenu()
	w.optionsVisible = true
	w.typing = false
	w.transition(EventLanguage)
	w.notify()
	return nil
}

// Snapshot returns a copy of the current session state.
func (w *Widget) Snapshot() model.Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Messages returns a copy of the history.
func (w *Widget) Messages() []model.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.Message(nil), w.messages...)
}

func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Widget) Language() model.Language {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lang
}

// Shutdown cancels pending timers and rejects further mutations.
// Calling it more than once is safe.
func (w *Widget) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return
	}
	w.cancelPending()
	w.disposed = true
}

func (w *Widget) respond(actionKey string) {
	script := w.script()
	text, ok := script.Response(actionKey)
	if !ok {
		logger.Warnf("assistant: no response for action %q in %s", actionKey, w.lang)
	}

	intermediate := model.IsIntermediate(actionKey)
	ev := EventRespondTerminal
	if intermediate {
		ev = EventRespondIntermediate
	}
	if !w.transition(ev) {
		return
	}

	w.typing = false
	w.appendMessage(model.SenderAssistant, text)

	if intermediate {
		w.options = script.SubMenu()
		w.notify()
		w.schedule(w.timings.Reveal, w.reveal)
		return
	}
	w.notify()
	w.schedule(w.timings.Read, func() { w.dispatch(actionKey) })
}

func (w *Widget) reveal() {
	if !w.transition(EventReveal) {
		return
	}
	w.optionsVisible = true
	w.timers = nil
	w.notify()
}

func (w *Widget) dispatch(actionKey string) {
	if !w.transition(EventDispatch) {
		return
	}
	w.dispatcher.PerformAction(actionKey)
	w.notify()

	w.schedule(w.timings.Reset, w.reset)
	if !w.stayOpen {
		w.schedule(w.timings.AutoClose, w.closeLocked)
	}
}

// reset returns to the main menu. An auto-close still pending at this
// point is dropped so it cannot fire into the next selection.
func (w *Widget) reset() {
	if !w.transition(EventReset) {
		return
	}
	w.cancelPending()
	w.options = w.script().MainMenu()
	w.optionsVisible = true
	w.notify()
}

// closeLocked is shared by Close and the auto-close after a dispatch.
func (w *Widget) closeLocked() {
	w.cancelPending()
	if !w.transition(EventClose) {
		return
	}
	w.typing = false
	w.options = w.script().MainMenu()
	w.optionsVisible = true
	w.notify()
}

// schedule runs f under the widget lock after d, unless the widget has
// been cancelled or shut down since.
func (w *Widget) schedule(d time.Duration, f func()) {
	epoch := w.epoch
	t := w.scheduler.AfterFunc(d, func() {
		w.mu.Lock()
		defer w.mu.Unlock()

		if w.disposed || w.epoch != epoch {
			return
		}
		f()
	})
	w.timers = append(w.timers, t)
}

func (w *Widget) cancelPending() {
	w.epoch++
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
}

func (w *Widget) transition(ev Event) bool {
	next, err := Next(w.state, ev)
	if err != nil {
		logger.WithFields(logger.Fields{
			"session_id": w.sessionID,
			"state":      w.state.String(),
			"event":      ev.String(),
		}).Warn("assistant: dropped event")
		return false
	}
	w.state = next
	return true
}

func (w *Widget) script() *model.AssistantScript {
	return w.scripts.Script(w.lang)
}

func (w *Widget) seedGreeting(script *model.AssistantScript) {
	if len(w.messages) > 0 {
		return
	}
	w.appendMessage(model.SenderAssistant, script.Greeting)
}

func (w *Widget) appendMessage(sender model.Sender, text string) {
	w.messages = append(w.messages, model.Message{
		ID:        w.newID(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	})
}

func (w *Widget) findOption(actionKey string) (model.Option, bool) {
	for _, opt := range w.options {
		if opt.ActionKey == actionKey {
			return opt, true
		}
	}
	return model.Option{}, false
}

func (w *Widget) notify() {
	w.version++
	if w.observer != nil {
		w.observer(w.snapshotLocked())
	}
}

func (w *Widget) snapshotLocked() model.Snapshot {
	snap := model.Snapshot{
		SessionID:         w.sessionID,
		Version:           w.version,
		State:             w.state.String(),
		Language:          w.lang,
		Dir:               w.lang.Dir(),
		IsOpen:            w.state != StateClosed,
		IsAssistantTyping: w.typing,
		OptionsVisible:    w.optionsVisible,
		Messages:          append([]model.Message(nil), w.messages...),
	}
	if script := w.script(); script != nil {
		snap.TypingLabel = script.Typing
	}
	if w.optionsVisible {
		snap.Options = append([]model.Option(nil), w.options...)
	} else {
		snap.Options = []model.Option{}
	}
	return snap
}
