// Package notify implements workflow.Notifier (spec §6.2) by routing
// each notification to one or more channels, generalizing the teacher's
// escalation-route dispatcher (internal/notification/dispatch.go in the
// teacher repo) from a decision-point/JSON-route-file model to the
// catalog service's simpler user-id + priority model.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/steveyegge/catalogmatch/internal/workflow"
)

// Payload is what a channel actually sends; built once per Send call and
// reused across every configured channel.
type Payload struct {
	Type       string             `json:"type"`
	UserID     string             `json:"user_id"`
	NotifyType string             `json:"notify_type"`
	Priority   workflow.Priority  `json:"priority"`
	Title      string             `json:"title"`
	Message    string             `json:"message"`
	ActionURL  string             `json:"action_url,omitempty"`
	VariableID string             `json:"variable_id,omitempty"`
	SentAt     time.Time          `json:"sent_at"`
}

// Contacts resolves a user id to the address a channel needs (email,
// webhook URL). A nil Contacts falls back to logging only.
type Contacts interface {
	EmailFor(userID string) (string, bool)
}

// Dispatcher sends notifications over one or more channels. Send is
// best-effort: it logs every channel failure but never returns an error,
// matching spec §4.9 ("notification emission... must not abort the
// transition; failures are logged").
type Dispatcher struct {
	log        *zap.Logger
	contacts   Contacts
	webhookURL string
	httpClient *http.Client
	mailer     func(to, subject, body string) error
}

// NewDispatcher builds a Dispatcher. webhookURL may be empty to disable
// the webhook channel.
func NewDispatcher(log *zap.Logger, contacts Contacts, webhookURL string) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		log:        log,
		contacts:   contacts,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		mailer:     sendViaMailCommand,
	}
}

var _ workflow.Notifier = (*Dispatcher)(nil)

// Send implements workflow.Notifier.
func (d *Dispatcher) Send(ctx context.Context, userID, notifyType string, priority workflow.Priority, title, message, actionURL, variableID string) error {
	payload := Payload{
		Type: "catalogmatch_notification", UserID: userID, NotifyType: notifyType,
		Priority: priority, Title: title, Message: message,
		ActionURL: actionURL, VariableID: variableID, SentAt: time.Now(),
	}

	d.logNotification(payload)

	if d.contacts != nil {
		if email, ok := d.contacts.EmailFor(userID); ok {
			if err := d.sendEmail(payload, email); err != nil {
				d.log.Warn("notify: email dispatch failed", zap.String("user_id", userID), zap.Error(err))
			}
		}
	}

	if d.webhookURL != "" {
		if err := d.sendWebhook(ctx, payload); err != nil {
			d.log.Warn("notify: webhook dispatch failed", zap.Error(err))
		}
	}

	return nil
}

func (d *Dispatcher) logNotification(p Payload) {
	d.log.Info("notification",
		zap.String("user_id", p.UserID),
		zap.String("type", p.NotifyType),
		zap.String("priority", string(p.Priority)),
		zap.String("title", p.Title),
		zap.String("variable_id", p.VariableID),
	)
}

func (d *Dispatcher) sendEmail(p Payload, to string) error {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(p.Priority)), p.Title)
	var body strings.Builder
	body.WriteString(p.Message)
	if p.ActionURL != "" {
		body.WriteString("\n\n")
		body.WriteString(p.ActionURL)
	}
	return d.mailer(to, subject, body.String())
}

func sendViaMailCommand(to, subject, body string) error {
	cmd := exec.Command("mail", "-s", subject, to)
	cmd.Stdin = strings.NewReader(body)
	return cmd.Run()
}

func (d *Dispatcher) sendWebhook(ctx context.Context, p Payload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("notify: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("notify: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Catalogmatch-Event", p.NotifyType)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
