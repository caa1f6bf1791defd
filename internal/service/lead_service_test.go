package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"vexl-backend/internal/content"
	"vexl-backend/internal/mailer"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	templateID string
	params     map[string]string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, templateID string, params map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{templateID: templateID, params: params})
	return f.err
}

func newLeadFixture(t *testing.T, sender *fakeSender) (*LeadService, *monitoring.Metrics) {
	t.Helper()
	dict, err := content.Load()
	require.NoError(t, err)
	m := monitoring.NewMetrics()
	svc := NewLeadService(sender, dict, LeadConfig{
		ContactTemplateID: "tpl_contact",
		VettingTemplateID: "tpl_vetting",
	}, m)
	return svc, m
}

func validContact() *model.ContactRequest {
	return &model.ContactRequest{
		Name:    "Nour",
		Email:   "nour@example.com",
		Org:     "Cairo University",
		Message: "We need a site selection study.",
		Lang:    "en",
	}
}

func validVetting() *model.VettingRequest {
	return &model.VettingRequest{
		Name:       "Omar",
		Email:      "omar@example.com",
		University: "Ain Shams",
		Project:    "https://github.com/omar/gis",
		Why:        "I want to build spatial models.",
		Skill:      "Intermediate",
		Lang:       "en",
	}
}

func TestSubmitContact(t *testing.T) {
	sender := &fakeSender{}
	svc, m := newLeadFixture(t, sender)

	req := validContact()
	req.Message = "<script>alert(1)</script>Hello <b>team</b>"
	resp, err := svc.SubmitContact(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, model.FormContact, resp.Form)
	assert.Equal(t, model.FormSuccess, resp.Status)
	assert.Equal(t, int64(5000), resp.ResetAfterMs)
	assert.NotEmpty(t, resp.Message)

	require.Len(t, sender.sent, 1)
	mail := sender.sent[0]
	assert.Equal(t, "tpl_contact", mail.templateID)
	assert.Equal(t, "Nour", mail.params["user_name"])
	assert.Equal(t, "nour@example.com", mail.params["user_email"])
	assert.Equal(t, "Cairo University", mail.params["organization"])
	assert.Equal(t, "Hello team", mail.params["message"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeadSubmissions.WithLabelValues("contact", "success")))
}

func TestSubmitContactRelayFailure(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("boom: %w", mailer.ErrRelayUnavailable)}
	svc, m := newLeadFixture(t, sender)

	req := validContact()
	req.Lang = "ar"
	resp, err := svc.SubmitContact(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, mailer.ErrRelayUnavailable)

	require.NotNil(t, resp)
	assert.Equal(t, model.FormError, resp.Status)
	assert.Equal(t, int64(3000), resp.ResetAfterMs)
	assert.Len(t, sender.sent, 1, "no automatic retry")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeadSubmissions.WithLabelValues("contact", "unavailable")))
}

func TestSubmitContactValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ContactRequest)
	}{
		{"missing name", func(r *model.ContactRequest) { r.Name = "" }},
		{"bad email", func(r *model.ContactRequest) { r.Email = "not-an-email" }},
		{"missing message", func(r *model.ContactRequest) { r.Message = "" }},
		{"markup only", func(r *model.ContactRequest) { r.Message = "<img src=x onerror=alert(1)>" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			svc, _ := newLeadFixture(t, sender)

			req := validContact()
			tt.mutate(req)
			resp, err := svc.SubmitContact(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidLead)
			assert.Nil(t, resp)
			assert.Empty(t, sender.sent)
		})
	}
}

func TestSubmitVetting(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newLeadFixture(t, sender)

	resp, err := svc.SubmitVetting(context.Background(), validVetting())
	require.NoError(t, err)
	assert.Equal(t, model.FormSuccess, resp.Status)
	assert.Equal(t, int64(0), resp.ResetAfterMs, "success stays on screen")

	require.Len(t, sender.sent, 1)
	p := sender.sent[0].params
	assert.Equal(t, "tpl_vetting", sender.sent[0].templateID)
	assert.Equal(t, "Ain Shams", p["university"])
	assert.Equal(t, "https://github.com/omar/gis", p["project_link"])
	assert.Equal(t, "I want to build spatial models.", p["mission_statement"])
	assert.Equal(t, "Intermediate", p["skill_level"])
}

func TestLeadParamsKeepPlainText(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newLeadFixture(t, sender)

	contact := validContact()
	contact.Name = "Sean O'Brien"
	contact.Org = "Smith & Sons"
	contact.Message = "Budget < 5000 USD & timeline 3 months <i>max</i>"
	_, err := svc.SubmitContact(context.Background(), contact)
	require.NoError(t, err)

	vetting := validVetting()
	vetting.Project = "https://example.com/a?x=1&y=2"
	_, err = svc.SubmitVetting(context.Background(), vetting)
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	p := sender.sent[0].params
	assert.Equal(t, "Sean O'Brien", p["user_name"])
	assert.Equal(t, "Smith & Sons", p["organization"])
	assert.Equal(t, "Budget < 5000 USD & timeline 3 months max", p["message"])
	assert.Equal(t, "https://example.com/a?x=1&y=2", sender.sent[1].params["project_link"])
}

func TestSubmitVettingSkill(t *testing.T) {
	sender := &fakeSender{}
	svc, _ := newLeadFixture(t, sender)

	req := validVetting()
	req.Skill = "نخبة"
	_, err := svc.SubmitVetting(context.Background(), req)
	assert.NoError(t, err, "arabic skill labels are accepted")

	req.Skill = "Grandmaster"
	_, err = svc.SubmitVetting(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidLead)
	assert.Len(t, sender.sent, 1)
}

func TestSubmitVettingRelayFailure(t *testing.T) {
	sender := &fakeSender{err: mailer.ErrRelayRejected}
	svc, _ := newLeadFixture(t, sender)

	resp, err := svc.SubmitVetting(context.Background(), validVetting())
	assert.ErrorIs(t, err, mailer.ErrRelayRejected)
	require.NotNil(t, resp)
	assert.Equal(t, model.FormError, resp.Status)
	assert.Equal(t, (4 * time.Second).Milliseconds(), resp.ResetAfterMs)
}
