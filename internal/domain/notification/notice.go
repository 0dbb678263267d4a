// Package notification defines the outbound guardian notification
// boundary. Delivery is best effort: the engine publishes events, a
// notifier builds notices, and a dispatcher attempts delivery. Failures
// are logged and never affect the incident lifecycle.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/incident"
)

// Notice is one message addressed to one guardian.
type Notice struct {
	ID         string
	GuardianID string
	StudentID  string
	IncidentID string
	Subject    string
	Body       string
	CreatedAt  time.Time
}

// DeliveryResult reports the outcome of one dispatch attempt.
type DeliveryResult struct {
	NoticeID    string
	Delivered   bool
	Error       string
	AttemptedAt time.Time
}

// Dispatcher delivers notices to guardians over whatever channel the
// platform provides. Implementations must be safe for concurrent use.
type Dispatcher interface {
	Dispatch(ctx context.Context, guardian *actor.Guardian, notice *Notice) DeliveryResult
}

// BuildIncidentReportedNotice renders the notice sent to a guardian
// when an incident is filed against their student.
func BuildIncidentReportedNotice(id string, guardian *actor.Guardian, incidentID, studentID, title string, severity incident.Severity) *Notice {
	return &Notice{
		ID:         id,
		GuardianID: guardian.ID,
		StudentID:  studentID,
		IncidentID: incidentID,
		Subject:    "Disciplinary incident reported",
		Body: fmt.Sprintf(
			"A disciplinary incident (%s severity) involving your student has been reported: %s. "+
				"Please check the parent portal for details.",
			severity, title,
		),
		CreatedAt: time.Now().UTC(),
	}
}

// BuildStatusChangedNotice renders the notice sent to a guardian when an
// incident involving their student changes status.
func BuildStatusChangedNotice(id string, guardian *actor.Guardian, incidentID, studentID string, newStatus incident.Status) *Notice {
	return &Notice{
		ID:         id,
		GuardianID: guardian.ID,
		StudentID:  studentID,
		IncidentID: incidentID,
		Subject:    "Incident status updated",
		Body: fmt.Sprintf(
			"The disciplinary incident involving your student is now %q. "+
				"Please check the parent portal for details.",
			newStatus,
		),
		CreatedAt: time.Now().UTC(),
	}
}
