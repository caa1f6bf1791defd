package navigation

import (
	"vexl-backend/internal/model"
	"vexl-backend/pkg/logger"
)

// Publisher delivers a resolved action to the visitor's browser.
type Publisher interface {
	PublishAction(sessionID string, action model.Action)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(sessionID string, action model.Action)

func (f PublisherFunc) PublishAction(sessionID string, action model.Action) { f(sessionID, action) }

// Dispatcher performs assistant actions for one session. It never blocks
// and never fails; unknown keys are logged and dropped.
type Dispatcher struct {
	router    *Router
	sessionID string
	pub       Publisher
}

func (r *Router) Dispatcher(sessionID string, pub Publisher) *Dispatcher {
	return &Dispatcher{router: r, sessionID: sessionID, pub: pub}
}

func (d *Dispatcher) PerformAction(actionKey string) {
	action, ok := d.router.Resolve(actionKey)
	if !ok {
		logger.WithFields(logger.Fields{
			"session_id": d.sessionID,
			"action":     actionKey,
		}).Warn("No route for assistant action")
		return
	}

	logger.WithFields(logger.Fields{
		"session_id": d.sessionID,
		"action":     action.Key,
		"kind":       action.Kind,
		"target":     action.Target,
	}).Debug("Dispatching assistant action")

	if d.pub != nil {
		d.pub.PublishAction(d.sessionID, action)
	}
}
