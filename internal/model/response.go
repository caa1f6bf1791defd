package model

import "time"

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type PreferencesResponse struct {
	VisitorID string    `json:"visitor_id"`
	Lang      Language  `json:"lang"`
	Dir       string    `json:"dir"`
	Theme     Theme     `json:"theme"`
	UpdatedAt time.Time `json:"updated_at"`
}
