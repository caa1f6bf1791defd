package navigation

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"vexl-backend/internal/model"
)

var ErrInvalidTarget = errors.New("invalid action target")

// DefaultTargets maps every terminal action key to where it leads.
var DefaultTargets = map[string]string{
	"identity": "/vision",
	"student":  "/studio",
	"academy":  "/academy",
	"whatsapp": "https://wa.me/201279298987",
	"email":    "mailto:vexl.gis@gmail.com",
}

// Router resolves action keys to actions.
type Router struct {
	actions map[string]model.Action
}

// NewRouter starts from DefaultTargets and applies overrides on top.
func NewRouter(overrides map[string]string) (*Router, error) {
	r := &Router{actions: make(map[string]model.Action, len(DefaultTargets))}
	for key, target := range DefaultTargets {
		if err := r.set(key, target); err != nil {
			return nil, err
		}
	}
	for key, target := range overrides {
		if err := r.set(key, target); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Router) set(key, target string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: empty action key", ErrInvalidTarget)
	}
	if model.IsIntermediate(key) {
		return fmt.Errorf("%w: %q opens a sub-menu and cannot be routed", ErrInvalidTarget, key)
	}
	kind, err := KindOf(target)
	if err != nil {
		return fmt.Errorf("action %q: %w", key, err)
	}
	r.actions[key] = model.Action{Key: key, Kind: kind, Target: target}
	return nil
}

// Resolve returns the action bound to key.
func (r *Router) Resolve(key string) (model.Action, bool) {
	a, ok := r.actions[key]
	return a, ok
}

// Keys returns the routed action keys, sorted.
func (r *Router) Keys() []string {
	keys := make([]string, 0, len(r.actions))
	for k := range r.actions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KindOf classifies a target: an absolute path navigates in-site, http(s)
// opens a new tab and mailto hands off to the mail client.
func KindOf(target string) (model.ActionKind, error) {
	switch {
	case strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//"):
		return model.ActionNavigate, nil
	case strings.HasPrefix(target, "mailto:"):
		if len(target) == len("mailto:") {
			return "", fmt.Errorf("%w: %q has no address", ErrInvalidTarget, target)
		}
		return model.ActionMail, nil
	}

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return model.ActionExternal, nil
}
