package middleware

import (
	"context"
	"net/http"
	"time"

	"vexl-backend/internal/model"
	"vexl-backend/internal/storage"
	"vexl-backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const appContextKey = "vexl.app"

// Preferences loads and saves visitor preferences.
type Preferences interface {
	// Load never returns nil; on error it returns the defaults.
	Load(ctx context.Context, visitorID string) (*model.Preferences, error)
	Update(ctx context.Context, visitorID, lang, theme string) (*model.Preferences, error)
}

type VisitorConfig struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	Domain     string
}

func DefaultVisitorConfig() VisitorConfig {
	return VisitorConfig{
		CookieName: "vexl_vid",
		MaxAge:     365 * 24 * time.Hour,
	}
}

// Visitor identifies the visitor by cookie, loads their preferences,
// applies ?lang= and ?theme= overrides and stores the resulting
// model.AppContext on the request.
func Visitor(prefs Preferences, cfg VisitorConfig) gin.HandlerFunc {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultVisitorConfig().CookieName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultVisitorConfig().MaxAge
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		visitorID, err := c.Cookie(cfg.CookieName)
		if err != nil || !storage.ValidID(visitorID) {
			visitorID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, visitorID, int(cfg.MaxAge.Seconds()), "/", cfg.Domain, cfg.Secure, true)
		}

		p, err := prefs.Load(ctx, visitorID)
		if err != nil {
			logger.WithFields(logger.Fields{
				"visitor_id": visitorID,
				"error":      err,
			}).Warn("Failed to load visitor preferences, using defaults")
		}

		if q := overrides(c, p); q.lang != "" || q.theme != "" {
			updated, err := prefs.Update(ctx, visitorID, q.lang, q.theme)
			if err != nil {
				logger.WithFields(logger.Fields{
					"visitor_id": visitorID,
					"error":      err,
				}).Warn("Failed to save visitor preferences")
			}
			if updated != nil {
				p = updated
			}
		}

		c.Set(appContextKey, model.AppContext{
			VisitorID: visitorID,
			Lang:      p.Language,
			Theme:     p.Theme,
		})
		c.Next()
	}
}

type override struct {
	lang  string
	theme string
}

// overrides returns the query values that are valid and differ from p.
func overrides(c *gin.Context, p *model.Preferences) override {
	var o override
	if lang, ok := model.ParseLanguage(c.Query("lang")); ok && lang != p.Language {
		o.lang = string(lang)
	}
	if theme, ok := model.ParseTheme(c.Query("theme")); ok && theme != p.Theme {
		o.theme = string(theme)
	}
	return o
}

// AppContext returns the context set by Visitor, or English/dark when the
// middleware did not run.
func AppContext(c *gin.Context) model.AppContext {
	if v, ok := c.Get(appContextKey); ok {
		if app, ok := v.(model.AppContext); ok {
			return app
		}
	}
	return model.AppContext{Lang: model.LangEN, Theme: model.ThemeDark}
}

// SetAppContext replaces the request's context, used after a preference
// change within the same request.
func SetAppContext(c *gin.Context, app model.AppContext) {
	c.Set(appContextKey, app)
}
