// Package notification delivers booking confirmations and reminders through
// pluggable senders with template rendering. Failures never propagate into
// the booking flow; callers log and move on.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      "appointment-confirmation",
			Name:    "Appointment Confirmation",
			Subject: "Appointment {{code}} confirmed",
			Body:    "Dear {{patient_name}}, your appointment {{code}} with {{doctor_name}} at {{clinic_name}} is confirmed for the {{shift}} shift on {{date}}.",
		},
		{
			ID:      "appointment-reminder",
			Name:    "Appointment Reminder",
			Subject: "Reminder: appointment {{code}} today",
			Body:    "Dear {{patient_name}}, this is a reminder of your appointment {{code}} today ({{date}}, {{shift}} shift) with {{doctor_name}} at {{clinic_name}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// AppointmentInfo is the resolved data a notification needs: the appointment
// plus the names the directory holds for its participants.
type AppointmentInfo struct {
	Code         string
	Date         string
	Shift        string
	PatientName  string
	PatientEmail string
	DoctorName   string
	ClinicName   string
}

// Notifier is what the booking engine calls. Both methods are fire-and-forget
// from the engine's perspective.
type Notifier interface {
	SendConfirmation(ctx context.Context, info AppointmentInfo) error
	SendReminder(ctx context.Context, info AppointmentInfo) error
}

// Mailer implements Notifier over an EmailSender and the template engine.
type Mailer struct {
	sender    EmailSender
	templates *TemplateEngine
}

// NewMailer constructs a Mailer.
func NewMailer(sender EmailSender, templates *TemplateEngine) *Mailer {
	return &Mailer{sender: sender, templates: templates}
}

func (m *Mailer) send(ctx context.Context, templateID string, info AppointmentInfo) error {
	if info.PatientEmail == "" {
		return fmt.Errorf("no contact address for appointment %s", info.Code)
	}
	subject, body, err := m.templates.Render(templateID, map[string]string{
		"code":         info.Code,
		"date":         info.Date,
		"shift":        info.Shift,
		"patient_name": info.PatientName,
		"doctor_name":  info.DoctorName,
		"clinic_name":  info.ClinicName,
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	return m.sender.SendEmail(ctx, info.PatientEmail, subject, body)
}

// SendConfirmation emails a booking confirmation to the patient.
func (m *Mailer) SendConfirmation(ctx context.Context, info AppointmentInfo) error {
	return m.send(ctx, "appointment-confirmation", info)
}

// SendReminder emails a same-day reminder to the patient.
func (m *Mailer) SendReminder(ctx context.Context, info AppointmentInfo) error {
	return m.send(ctx, "appointment-reminder", info)
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
