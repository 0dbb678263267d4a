package incident

import (
	"errors"
	"time"
)

// StatusLog is one immutable row of the incident audit trail. Rows are
// append only: the engine writes one per committed status change and
// nothing ever updates or deletes them. The creation row carries an
// empty OldStatus.
type StatusLog struct {
	ID         string
	IncidentID string
	OldStatus  Status
	NewStatus  Status
	ChangedBy  string
	Comment    string
	CreatedAt  time.Time
}

// IsCreation reports whether this row records the initial filing.
func (l *StatusLog) IsCreation() bool {
	return l.OldStatus == ""
}

// NewStatusLog builds an audit row for a committed transition.
func NewStatusLog(id, incidentID string, oldStatus, newStatus Status, changedBy, comment string) (*StatusLog, error) {
	if id == "" {
		return nil, errors.New("status log id is required")
	}
	if incidentID == "" {
		return nil, errors.New("status log incident id is required")
	}
	if changedBy == "" {
		return nil, errors.New("status log changed_by is required")
	}
	if oldStatus != "" && !oldStatus.IsValid() {
		return nil, ErrInvalidStatus
	}
	if !newStatus.IsValid() {
		return nil, ErrInvalidStatus
	}

	return &StatusLog{
		ID:         id,
		IncidentID: incidentID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedBy:  changedBy,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ReplayStatus folds an ordered audit trail into the status it implies.
// The first row must be the creation row (empty old status, pending new
// status). Used by consistency checks to verify the stored status
// against the trail.
func ReplayStatus(trail []*StatusLog) (Status, error) {
	if len(trail) == 0 {
		return "", errors.New("audit trail is empty")
	}

	first := trail[0]
	if !first.IsCreation() || first.NewStatus != StatusPending {
		return "", errors.New("audit trail does not start with a creation row")
	}

	current := first.NewStatus
	for _, entry := range trail[1:] {
		if entry.OldStatus != current {
			return current, errors.New("audit trail is not contiguous")
		}
		if !CanTransition(entry.OldStatus, entry.NewStatus) {
			return current, ErrInvalidTransition
		}
		current = entry.NewStatus
	}
	return current, nil
}
