package handler

import (
	"net/http"
	"strings"
	"time"

	"vexl-backend/internal/content"
	"vexl-backend/internal/middleware"
	"vexl-backend/internal/model"
	"vexl-backend/internal/web"

	"github.com/gin-gonic/gin"
)

// PageData is what every page template receives.
type PageData struct {
	App        model.AppContext
	C          *content.Content
	Script     *model.AssistantScript
	Meta       content.Meta
	Page       string
	Path       string
	BaseURL    string
	OtherLang  model.Language
	OtherTheme model.Theme
	Year       int
}

type PageHandler struct {
	dict    *content.Dictionary
	baseURL string
}

func NewPageHandler(dict *content.Dictionary, baseURL string) *PageHandler {
	return &PageHandler{
		dict:    dict,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Page renders the named page template.
func (h *PageHandler) Page(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.render(c, http.StatusOK, name)
	}
}

// NotFound renders the 404 page, or a JSON error under /api.
func (h *PageHandler) NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found", Code: "not_found"})
		return
	}
	h.render(c, http.StatusNotFound, web.PageNotFound)
}

func (h *PageHandler) render(c *gin.Context, status int, page string) {
	app := middleware.AppContext(c)
	cnt := h.dict.Content(app.Lang)

	other := model.LangAR
	if app.Lang == model.LangAR {
		other = model.LangEN
	}

	c.Header("Content-Language", string(app.Lang))
	c.HTML(status, page, PageData{
		App:        app,
		C:          cnt,
		Script:     cnt.Assistant,
		Meta:       cnt.Meta(page),
		Page:       page,
		Path:       c.Request.URL.Path,
		BaseURL:    h.baseURL,
		OtherLang:  other,
		OtherTheme: app.Theme.Toggle(),
		Year:       time.Now().Year(),
	})
}
