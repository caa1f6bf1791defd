package handler

import (
	"net/http"

	"vexl-backend/internal/middleware"
	"vexl-backend/internal/model"
	"vexl-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	svc *service.PreferenceService
}

func NewPreferenceHandler(svc *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{svc: svc}
}

func (h *PreferenceHandler) Get(c *gin.Context) {
	p, err := h.svc.Load(c.Request.Context(), middleware.AppContext(c).VisitorID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toPreferencesResponse(p))
}

func (h *PreferenceHandler) Update(c *gin.Context) {
	var req model.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	app := middleware.AppContext(c)
	p, err := h.svc.Update(c.Request.Context(), app.VisitorID, req.Lang, req.Theme)
	if err != nil {
		fail(c, err)
		return
	}

	app.Lang, app.Theme = p.Language, p.Theme
	middleware.SetAppContext(c, app)
	c.JSON(http.StatusOK, toPreferencesResponse(p))
}

func toPreferencesResponse(p *model.Preferences) model.PreferencesResponse {
	return model.PreferencesResponse{
		VisitorID: p.VisitorID,
		Lang:      p.Language,
		Dir:       p.Language.Dir(),
		Theme:     p.Theme,
		UpdatedAt: p.UpdatedAt,
	}
}
