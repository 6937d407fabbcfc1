package notify

import (
	"context"
	"testing"

	"github.com/steveyegge/catalogmatch/internal/workflow"
)

type fakeContacts struct {
	emails map[string]string
}

func (f fakeContacts) EmailFor(userID string) (string, bool) {
	e, ok := f.emails[userID]
	return e, ok
}

func TestSendRoutesToEmail(t *testing.T) {
	var sentTo, sentSubject string
	d := NewDispatcher(nil, fakeContacts{emails: map[string]string{"o1": "owner@example.com"}}, "")
	d.mailer = func(to, subject, body string) error {
		sentTo, sentSubject = to, subject
		return nil
	}

	err := d.Send(context.Background(), "o1", "match_pending_review", workflow.PriorityNormal,
		"Match needs review", "A variable was matched to your table.", "", "var1")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if sentTo != "owner@example.com" {
		t.Fatalf("sentTo = %q", sentTo)
	}
	if sentSubject == "" {
		t.Fatal("expected a non-empty subject")
	}
}

func TestSendNeverFailsWithoutContacts(t *testing.T) {
	d := NewDispatcher(nil, nil, "")
	if err := d.Send(context.Background(), "o1", "match_pending_review", workflow.PriorityLow, "t", "m", "", "var1"); err != nil {
		t.Fatalf("Send should be best-effort, got error: %v", err)
	}
}
