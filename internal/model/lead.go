package model

import "time"

// FormStatus mirrors the submit button state of a lead form.
type FormStatus string

const (
	FormIdle    FormStatus = "idle"
	FormLoading FormStatus = "loading"
	FormSuccess FormStatus = "success"
	FormError   FormStatus = "error"
)

// Lead form kinds, used for templates and metrics.
const (
	FormContact = "contact"
	FormVetting = "vetting"
)

// LeadResponse tells the page which status to show and when to fall back
// to idle. A zero ResetAfterMs keeps the status until the visitor leaves.
type LeadResponse struct {
	Form         string     `json:"form"`
	Status       FormStatus `json:"status"`
	Message      string     `json:"message,omitempty"`
	ResetAfterMs int64      `json:"reset_after_ms"`
}

// NewLeadResponse builds a response with the reset delay in milliseconds.
func NewLeadResponse(form string, status FormStatus, message string, resetAfter time.Duration) *LeadResponse {
	return &LeadResponse{
		Form:         form,
		Status:       status,
		Message:      message,
		ResetAfterMs: resetAfter.Milliseconds(),
	}
}
