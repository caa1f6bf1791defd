package assistant

import "errors"

var (
	// ErrClosed is returned when a selection is made while the widget is hidden.
	ErrClosed = errors.New("assistant: widget is closed")
	// ErrBusy is returned when a selection arrives outside a steady menu state.
	ErrBusy = errors.New("assistant: response in progress")
	// ErrUnknownOption is returned for an action key not in the visible option set.
	ErrUnknownOption = errors.New("assistant: unknown option")
	// ErrShutdown is returned by every mutation after Shutdown.
	ErrShutdown = errors.New("assistant: widget shut down")

	ErrInvalidTransition = errors.New("assistant: invalid transition")
)
