package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"vexl-backend/internal/content"
	"vexl-backend/internal/mailer"
	"vexl-backend/internal/model"
	"vexl-backend/internal/monitoring"
	"vexl-backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

// Sender relays a templated message. *mailer.Client implements it.
type Sender interface {
	Send(ctx context.Context, templateID string, params map[string]string) error
}

// LeadTimings are the delays after which the page returns a form to idle.
// Zero keeps the status on screen.
type LeadTimings struct {
	ContactSuccess time.Duration
	ContactError   time.Duration
	VettingSuccess time.Duration
	VettingError   time.Duration
}

func DefaultLeadTimings() LeadTimings {
	return LeadTimings{
		ContactSuccess: 5 * time.Second,
		ContactError:   3 * time.Second,
		VettingError:   4 * time.Second,
	}
}

type LeadConfig struct {
	ContactTemplateID string
	VettingTemplateID string
	// SendTimeout bounds one relay call.
	SendTimeout time.Duration
	Timings     LeadTimings
}

// LeadService validates lead form submissions and relays them by email.
// A failed send is reported once and never retried.
type LeadService struct {
	sender   Sender
	dict     *content.Dictionary
	cfg      LeadConfig
	policy   *bluemonday.Policy
	validate *validator.Validate
	metrics  *monitoring.Metrics
}

func NewLeadService(sender Sender, dict *content.Dictionary, cfg LeadConfig, metrics *monitoring.Metrics) *LeadService {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.Timings == (LeadTimings{}) {
		cfg.Timings = DefaultLeadTimings()
	}

	v := validator.New()
	v.SetTagName("binding")

	return &LeadService{
		sender:   sender,
		dict:     dict,
		cfg:      cfg,
		policy:   bluemonday.StrictPolicy(),
		validate: v,
		metrics:  metrics,
	}
}

// SubmitContact relays the contact form. Validation problems return
// ErrInvalidLead and no response; a relay failure returns an error status
// response together with the cause.
func (s *LeadService) SubmitContact(ctx context.Context, req *model.ContactRequest) (*model.LeadResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		s.metrics.RecordLead(model.FormContact, "invalid", 0)
		return nil, fmt.Errorf("%w: %v", ErrInvalidLead, err)
	}

	params := map[string]string{
		"user_name":    s.clean(req.Name),
		"user_email":   strings.TrimSpace(req.Email),
		"organization": s.clean(req.Org),
		"message":      s.clean(req.Message),
	}
	if params["user_name"] == "" || params["message"] == "" {
		s.metrics.RecordLead(model.FormContact, "invalid", 0)
		return nil, fmt.Errorf("%w: empty after sanitizing", ErrInvalidLead)
	}

	text := s.dict.Content(langOf(req.Lang)).Contact
	if err := s.send(ctx, model.FormContact, s.cfg.ContactTemplateID, params); err != nil {
		return model.NewLeadResponse(model.FormContact, model.FormError, text.ErrorDesc, s.cfg.Timings.ContactError), err
	}
	return model.NewLeadResponse(model.FormContact, model.FormSuccess, text.SuccessDesc, s.cfg.Timings.ContactSuccess), nil
}

// SubmitVetting relays an academy application. The skill level must be one
// of the offered options in any language.
func (s *LeadService) SubmitVetting(ctx context.Context, req *model.VettingRequest) (*model.LeadResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		s.metrics.RecordLead(model.FormVetting, "invalid", 0)
		return nil, fmt.Errorf("%w: %v", ErrInvalidLead, err)
	}
	skill := strings.TrimSpace(req.Skill)
	if !s.knownSkill(skill) {
		s.metrics.RecordLead(model.FormVetting, "invalid", 0)
		return nil, fmt.Errorf("%w: unknown skill level %q", ErrInvalidLead, skill)
	}

	params := map[string]string{
		"user_name":         s.clean(req.Name),
		"user_email":        strings.TrimSpace(req.Email),
		"university":        s.clean(req.University),
		"project_link":      s.clean(req.Project),
		"mission_statement": s.clean(req.Why),
		"skill_level":       skill,
	}
	for _, k := range []string{"user_name", "university", "project_link", "mission_statement"} {
		if params[k] == "" {
			s.metrics.RecordLead(model.FormVetting, "invalid", 0)
			return nil, fmt.Errorf("%w: %s empty after sanitizing", ErrInvalidLead, k)
		}
	}

	text := s.dict.Content(langOf(req.Lang)).Vetting
	if err := s.send(ctx, model.FormVetting, s.cfg.VettingTemplateID, params); err != nil {
		return model.NewLeadResponse(model.FormVetting, model.FormError, text.ErrorDesc, s.cfg.Timings.VettingError), err
	}
	return model.NewLeadResponse(model.FormVetting, model.FormSuccess, text.SuccessDesc, s.cfg.Timings.VettingSuccess), nil
}

func (s *LeadService) send(ctx context.Context, form, templateID string, params map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	start := time.Now()
	err := s.sender.Send(ctx, templateID, params)
	elapsed := time.Since(start)

	fields := logger.Fields{
		"form":    form,
		"latency": elapsed.String(),
	}
	if err != nil {
		fields["error"] = err
		logger.WithFields(fields).Error("Lead relay failed")
		s.metrics.RecordLead(form, leadFailure(err), elapsed)
		return fmt.Errorf("failed to send %s lead: %w", form, err)
	}
	logger.WithFields(fields).Info("Lead relayed")
	s.metrics.RecordLead(form, string(model.FormSuccess), elapsed)
	return nil
}

// clean strips markup. The relay gets plain text, so the entities the
// policy emits are decoded again.
func (s *LeadService) clean(v string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(strings.TrimSpace(v))))
}

func (s *LeadService) knownSkill(skill string) bool {
	for _, lang := range s.dict.Languages() {
		if s.dict.Content(lang).Vetting.HasSkill(skill) {
			return true
		}
	}
	return false
}

func leadFailure(err error) string {
	switch {
	case errors.Is(err, mailer.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, mailer.ErrRelayRejected):
		return "rejected"
	default:
		return "unavailable"
	}
}

func langOf(s string) model.Language {
	if lang, ok := model.ParseLanguage(s); ok {
		return lang
	}
	return model.LangEN
}
