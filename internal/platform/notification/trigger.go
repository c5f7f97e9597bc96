package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rcm/rcm/internal/workflow"
)

// Contact is where lifecycle notifications for a claim are delivered.
type Contact struct {
	Email  string
	Mobile string
}

// ContactResolver looks up the notification contact for a claim. The
// preauth repository satisfies this by joining the claim to its patient.
type ContactResolver interface {
	ContactForClaim(ctx context.Context, claimID string) (Contact, error)
}

// Trigger turns committed state transitions into outbound notifications.
// It implements workflow.Notifier; delivery failures are logged by the
// mutator and never block a transition.
type Trigger struct {
	manager  *NotificationManager
	contacts ContactResolver
	logger   zerolog.Logger
}

func NewTrigger(manager *NotificationManager, contacts ContactResolver, logger zerolog.Logger) *Trigger {
	return &Trigger{manager: manager, contacts: contacts, logger: logger}
}

// TransitionApplied selects the template for the new state and sends an
// email, plus an SMS when a mobile number is on file.
func (t *Trigger) TransitionApplied(ctx context.Context, rec *workflow.TransitionRecord) error {
	contact, err := t.contacts.ContactForClaim(ctx, rec.ClaimID)
	if err != nil {
		return fmt.Errorf("resolve contact for %s: %w", rec.ClaimID, err)
	}

	data := map[string]string{
		"preauth_id":     rec.ClaimID,
		"previous_state": string(rec.PreviousState),
		"new_state":      string(rec.NewState),
		"actor_role":     string(rec.ActorRole),
		"remarks":        rec.Remarks,
	}
	for k, v := range rec.StateData {
		data[k] = fmt.Sprintf("%v", v)
	}

	templateID := templateForState(rec.NewState)

	if contact.Email != "" {
		if _, err := t.manager.SendFromTemplate(ctx, templateID, data, contact.Email); err != nil {
			return fmt.Errorf("email for %s: %w", rec.ClaimID, err)
		}
	}
	if contact.Mobile != "" {
		if _, err := t.manager.SendFromTemplate(ctx, "preauth-status-sms", data, contact.Mobile); err != nil {
			return fmt.Errorf("sms for %s: %w", rec.ClaimID, err)
		}
	}
	return nil
}

func templateForState(s workflow.State) string {
	switch s {
	case workflow.StateApproved, workflow.StateDischargeApproved:
		return "preauth-approved"
	case workflow.StateDenied, workflow.StateDischargeDenied:
		return "preauth-denied"
	case workflow.StateNeedMoreInfo, workflow.StateDischargeNeedMoreInfo:
		return "preauth-need-more-info"
	default:
		return "preauth-status-changed"
	}
}
