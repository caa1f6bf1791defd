package model

type StartSessionRequest struct {
	SessionID string `json:"session_id"`
	Lang      string `json:"lang"`
}

type SelectOptionRequest struct {
	ActionKey string `json:"action_key" binding:"required"`
}

type ChangeLanguageRequest struct {
	Lang string `json:"lang" binding:"required"`
}

type PreferencesRequest struct {
	Lang  string `json:"lang"`
	Theme string `json:"theme"`
}

// ContactRequest is the payload of the contact page form.
type ContactRequest struct {
	Name    string `json:"name" form:"name" binding:"required,max=120"`
	Email   string `json:"email" form:"email" binding:"required,email,max=254"`
	Org     string `json:"org" form:"org" binding:"max=160"`
	Message string `json:"message" form:"message" binding:"required,max=5000"`
	Lang    string `json:"lang" form:"lang"`
}

// VettingRequest is the academy application dossier.
type VettingRequest struct {
	Name       string `json:"name" form:"name" binding:"required,max=120"`
	Email      string `json:"email" form:"email" binding:"required,email,max=254"`
	University string `json:"university" form:"university" binding:"required,max=160"`
	Project    string `json:"project" form:"project" binding:"required,max=500"`
	Why        string `json:"why" form:"why" binding:"required,max=5000"`
	Skill      string `json:"skill" form:"skill" binding:"required,max=60"`
	Lang       string `json:"lang" form:"lang"`
}

// WSCommand is a client frame on the assistant WebSocket.
type WSCommand struct {
	Type      string `json:"type"`
	ActionKey string `json:"action_key,omitempty"`
	Lang      string `json:"lang,omitempty"`
}
