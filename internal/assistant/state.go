package assistant

import "fmt"

// State is the position of a widget session in the guided flow.
type State int

const (
	StateClosed State = iota
	// StateMainMenu and StateSubMenu are the only steady states in which a
	// selection is accepted.
	StateMainMenu
	StateSubMenu
	// StateTyping is the simulated thinking delay.
	StateTyping
	// StateRevealing waits to show the sub-menu after the handoff prompt.
	StateRevealing
	// StateReading leaves the terminal response on screen before dispatch.
	StateReading
	// StateResetting waits to restore the main menu after dispatch.
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateMainMenu:
		return "main_menu"
	case StateSubMenu:
		return "sub_menu"
	case StateTyping:
		return "typing"
	case StateRevealing:
		return "revealing"
	case StateReading:
		return "reading"
	case StateResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Steady reports whether the option set is on screen and selectable.
func (s State) Steady() bool {
	return s == StateMainMenu || s == StateSubMenu
}

// Event drives a transition.
type Event int

const (
	EventOpen Event = iota
	EventClose
	EventSelect
	EventRespondIntermediate
	EventRespondTerminal
	EventReveal
	EventDispatch
	EventReset
	EventLanguage
)

func (e Event) String() string {
	switch e {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventSelect:
		return "select"
	case EventRespondIntermediate:
		return "respond_intermediate"
	case EventRespondTerminal:
		return "respond_terminal"
	case EventReveal:
		return "reveal"
	case EventDispatch:
		return "dispatch"
	case EventReset:
		return "reset"
	case EventLanguage:
		return "language"
	default:
		return "unknown"
	}
}

var transitions = map[State]map[Event]State{
	StateClosed: {
		EventOpen:     StateMainMenu,
		EventLanguage: StateClosed,
	},
	StateMainMenu: {
		EventSelect:   StateTyping,
		EventClose:    StateClosed,
		EventLanguage: StateMainMenu,
	},
	StateSubMenu: {
		EventSelect:   StateTyping,
		EventClose:    StateClosed,
		EventLanguage: StateMainMenu,
	},
	StateTyping: {
		EventRespondIntermediate: StateRevealing,
		EventRespondTerminal:     StateReading,
		EventClose:               StateClosed,
		EventLanguage:            StateMainMenu,
	},
	StateRevealing: {
		EventReveal:   StateSubMenu,
		EventClose:    StateClosed,
		EventLanguage: StateMainMenu,
	},
	StateReading: {
		EventDispatch: StateResetting,
		EventClose:    StateClosed,
		EventLanguage: StateMainMenu,
	},
	StateResetting: {
		EventReset:    StateMainMenu,
		EventClose:    StateClosed,
		EventLanguage: StateMainMenu,
	},
}

// Next looks up the transition table.
func Next(from State, ev Event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, ev)
}
