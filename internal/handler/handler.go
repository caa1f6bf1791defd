package handler

import (
	"errors"
	"net/http"

	"vexl-backend/internal/assistant"
	"vexl-backend/internal/mailer"
	"vexl-backend/internal/model"
	"vexl-backend/internal/service"
	"vexl-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

type apiError struct {
	status int
	code   string
}

// errorTable maps service sentinels to HTTP responses. Order matters only
// for wrapped chains, which never combine two of these.
var errorTable = []struct {
	err error
	apiError
}{
	{service.ErrSessionNotFound, apiError{http.StatusNotFound, "session_not_found"}},
	{service.ErrInvalidSessionID, apiError{http.StatusBadRequest, "invalid_session_id"}},
	{service.ErrInvalidLanguage, apiError{http.StatusBadRequest, "invalid_language"}},
	{service.ErrInvalidPreference, apiError{http.StatusBadRequest, "invalid_preference"}},
	{service.ErrInvalidLead, apiError{http.StatusBadRequest, "invalid_lead"}},
	{service.ErrTooManySessions, apiError{http.StatusServiceUnavailable, "too_many_sessions"}},
	{assistant.ErrClosed, apiError{http.StatusConflict, "assistant_closed"}},
	{assistant.ErrBusy, apiError{http.StatusConflict, "assistant_busy"}},
	{assistant.ErrUnknownOption, apiError{http.StatusUnprocessableEntity, "unknown_option"}},
	{assistant.ErrShutdown, apiError{http.StatusGone, "session_ended"}},
	{mailer.ErrNotConfigured, apiError{http.StatusServiceUnavailable, "relay_not_configured"}},
	{mailer.ErrRelayRejected, apiError{http.StatusBadGateway, "relay_rejected"}},
	{mailer.ErrRelayUnavailable, apiError{http.StatusServiceUnavailable, "relay_unavailable"}},
}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "internal"}
}

// fail writes the JSON error for err and aborts the request.
func fail(c *gin.Context, err error) {
	ae := classify(err)
	if ae.status >= http.StatusInternalServerError {
		logger.WithFields(logger.Fields{
			"path":  c.FullPath(),
			"error": err,
		}).Error("Request failed")
	}
	msg := err.Error()
	if ae.status == http.StatusInternalServerError {
		msg = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ae.status, model.ErrorResponse{Error: msg, Code: ae.code})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error(), Code: "invalid_request"})
}
