package handler

import (
	"errors"
	"net/http"

	"vexl-backend/internal/middleware"
	"vexl-backend/internal/model"
	"vexl-backend/internal/service"

	"github.com/gin-gonic/gin"
)

type LeadHandler struct {
	svc *service.LeadService
}

func NewLeadHandler(svc *service.LeadService) *LeadHandler {
	return &LeadHandler{svc: svc}
}

func (h *LeadHandler) Contact(c *gin.Context) {
	var req model.ContactRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Lang == "" {
		req.Lang = string(middleware.AppContext(c).Lang)
	}

	resp, err := h.svc.SubmitContact(c.Request.Context(), &req)
	h.respond(c, resp, err)
}

func (h *LeadHandler) Vetting(c *gin.Context) {
	var req model.VettingRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Lang == "" {
		req.Lang = string(middleware.AppContext(c).Lang)
	}

	resp, err := h.svc.SubmitVetting(c.Request.Context(), &req)
	h.respond(c, resp, err)
}

// respond sends the lead response. A relay failure still carries the
// error status body so the page can show it and schedule the reset.
func (h *LeadHandler) respond(c *gin.Context, resp *model.LeadResponse, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case resp == nil || errors.Is(err, service.ErrInvalidLead):
		fail(c, err)
	default:
		_ = c.Error(err)
		c.JSON(classify(err).status, resp)
	}
}
