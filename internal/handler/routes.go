package handler

import (
	"vexl-backend/internal/web"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Pages       *PageHandler
	Assistant   *AssistantHandler
	Leads       *LeadHandler
	Preferences *PreferenceHandler
	// LeadLimit guards the lead form endpoints; nil disables it.
	LeadLimit gin.HandlerFunc
}

// Register mounts the pages and the JSON API on r.
func Register(r *gin.Engine, h Handlers) {
	r.GET("/", h.Pages.Page(web.PageHome))
	r.GET("/vision", h.Pages.Page(web.PageVision))
	r.GET("/studio", h.Pages.Page(web.PageStudio))
	r.GET("/academy", h.Pages.Page(web.PageAcademy))
	r.GET("/network", h.Pages.Page(web.PageNetwork))
	r.GET("/contact", h.Pages.Page(web.PageContact))
	r.GET("/privacy", h.Pages.Page(web.PagePrivacy))
	r.GET("/terms", h.Pages.Page(web.PageTerms))
	r.NoRoute(h.Pages.NotFound)

	api := r.Group("/api")
	{
		a := api.Group("/assistant")
		{
			a.POST("/session", h.Assistant.StartSession)
			a.GET("/:id", h.Assistant.GetSession)
			a.DELETE("/:id", h.Assistant.EndSession)
			a.POST("/:id/open", h.Assistant.Open)
			a.POST("/:id/close", h.Assistant.Close)
			a.POST("/:id/toggle", h.Assistant.Toggle)
			a.POST("/:id/select", h.Assistant.Select)
			a.PUT("/:id/language", h.Assistant.ChangeLanguage)
			a.GET("/:id/events", h.Assistant.Events)
			a.GET("/:id/ws", h.Assistant.Socket)
		}

		leads := api.Group("/leads")
		if h.LeadLimit != nil {
			leads.Use(h.LeadLimit)
		}
		{
			leads.POST("/contact", h.Leads.Contact)
			leads.POST("/vetting", h.Leads.Vetting)
		}

		api.GET("/preferences", h.Preferences.Get)
		api.PUT("/preferences", h.Preferences.Update)
	}
}
