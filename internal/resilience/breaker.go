package resilience

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

type Settings struct {
	// FailureThreshold consecutive failures open the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open before a probe is allowed.
	Cooldown time.Duration
	// HalfOpenProbes successful probes close the breaker again.
	HalfOpenProbes uint32
	// IsFailure decides whether an error counts against the breaker. Errors
	// the caller caused, such as a rejected payload, should not.
	IsFailure     func(err error) bool
	OnStateChange func(name string, from, to State)
	// Now is used by tests.
	Now func() time.Time
}

// Breaker stops calling a dependency that keeps failing.
type Breaker struct {
	name     string
	settings Settings

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	inFlight  uint32
	openedAt  time.Time
}

func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = 30 * time.Second
	}
	if settings.HalfOpenProbes == 0 {
		settings.HalfOpenProbes = 1
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	return &Breaker{name: name, settings: settings}
}

func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Execute runs fn unless the breaker is open. While half-open only
// HalfOpenProbes calls run at a time.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	var err error
	defer func() {
		if r := recover(); r != nil {
			b.after(errors.New("panic"))
			panic(r)
		}
		b.after(err)
	}()

	err = fn()
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.inFlight >= b.settings.HalfOpenProbes {
			return ErrCircuitOpen
		}
	}
	b.inFlight++
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.inFlight > 0 {
		b.inFlight--
	}
	state := b.current()

	if err != nil && b.settings.IsFailure(err) {
		b.failures++
		b.successes = 0
		if state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
			b.setState(StateOpen)
		}
		return
	}

	b.failures = 0
	if state == StateHalfOpen {
		b.successes++
		if b.successes >= b.settings.HalfOpenProbes {
			b.setState(StateClosed)
		}
	}
}

// current moves an open breaker to half-open once the cooldown is over.
func (b *Breaker) current() State {
	if b.state == StateOpen && b.settings.Now().Sub(b.openedAt) >= b.settings.Cooldown {
		b.setState(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) setState(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if to == StateOpen {
		b.openedAt = b.settings.Now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
