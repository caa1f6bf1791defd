package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		from State
		ev   Event
		want State
	}{
		{"open", StateClosed, EventOpen, StateMainMenu},
		{"select from main menu", StateMainMenu, EventSelect, StateTyping},
		{"select from sub menu", StateSubMenu, EventSelect, StateTyping},
		{"terminal response", StateTyping, EventRespondTerminal, StateReading},
		{"intermediate response", StateTyping, EventRespondIntermediate, StateRevealing},
		{"reveal", StateRevealing, EventReveal, StateSubMenu},
		{"dispatch", StateReading, EventDispatch, StateResetting},
		{"reset", StateResetting, EventReset, StateMainMenu},
		{"close while typing", StateTyping, EventClose, StateClosed},
		{"language from sub menu", StateSubMenu, EventLanguage, StateMainMenu},
		{"language while closed", StateClosed, EventLanguage, StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextRejectsInvalid(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
	}{
		{StateClosed, EventSelect},
		{StateClosed, EventClose},
		{StateMainMenu, EventOpen},
		{StateTyping, EventSelect},
		{StateReading, EventReset},
		{StateResetting, EventSelect},
		{StateRevealing, EventDispatch},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.ev.String(), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, got)
		})
	}
}

func TestSteady(t *testing.T) {
	assert.True(t, StateMainMenu.Steady())
	assert.True(t, StateSubMenu.Steady())
	for _, s := range []State{StateClosed, StateTyping, StateRevealing, StateReading, StateResetting} {
		assert.False(t, s.Steady(), s.String())
	}
}
