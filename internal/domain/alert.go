package domain

import (
	"errors"
	"time"
)

// AlertStatus is the review state of a fraud alert.
type AlertStatus string

const (
	AlertOpen      AlertStatus = "OPEN"
	AlertReviewed  AlertStatus = "REVIEWED"
	AlertDismissed AlertStatus = "DISMISSED"
	AlertEscalated AlertStatus = "ESCALATED"
)

var (
	ErrAlertClosed            = errors.New("alert is already closed")
	ErrAlertNotReviewed       = errors.New("alert must be reviewed first")
	ErrInvalidAlertTransition = errors.New("invalid alert status transition")
)

// FraudAlert is persisted when a verdict crosses the alerting bar:
// HIGH risk, or MEDIUM risk with two or more anomaly flags.
// Status transitions are driven by the admin review surface, never by
// the scoring path.
type FraudAlert struct {
	ID       string      `json:"id"`
	TenantID string      `json:"tenantId"`
	TxID     string      `json:"txId"`
	UserID   string      `json:"userId"`
	Status   AlertStatus `json:"status"`

	// Verdict is the snapshot at alert creation time.
	Verdict RiskVerdict `json:"verdict"`

	Notes      string     `json:"notes,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	ReviewedAt *time.Time `json:"reviewedAt,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

// Review moves an open alert to REVIEWED.
func (a *FraudAlert) Review(notes string) error {
	if a.Status != AlertOpen {
		return ErrInvalidAlertTransition
	}
	a.Status = AlertReviewed
	a.Notes = notes
	now := time.Now().UTC()
	a.ReviewedAt = &now
	return nil
}

// Dismiss closes a reviewed alert as a false positive.
func (a *FraudAlert) Dismiss() error {
	switch a.Status {
	case AlertDismissed, AlertEscalated:
		return ErrAlertClosed
	case AlertOpen:
		return ErrAlertNotReviewed
	}
	a.Status = AlertDismissed
	now := time.Now().UTC()
	a.ResolvedAt = &now
	return nil
}

// Escalate hands a reviewed alert to a higher authority.
func (a *FraudAlert) Escalate() error {
	switch a.Status {
	case AlertDismissed, AlertEscalated:
		return ErrAlertClosed
	case AlertOpen:
		return ErrAlertNotReviewed
	}
	a.Status = AlertEscalated
	now := time.Now().UTC()
	a.ResolvedAt = &now
	return nil
}

// IsOpen reports whether the alert still needs attention.
func (a *FraudAlert) IsOpen() bool {
	return a.Status == AlertOpen || a.Status == AlertReviewed
}
