// model/emergency.go
package model

import "time"

// EmergencyAccessRequest is the caller-supplied portion of a break-glass
// request. The reason is mandatory and must carry a real justification.
type EmergencyAccessRequest struct {
	ResourceID   string `json:"resource_id" validate:"required"`
	ResourceType string `json:"resource_type" validate:"required"`
	Reason       string `json:"reason" validate:"required,min=10"`
}

// EmergencyAccessGrant is a time-boxed override. It exists only after the
// audit record identified by AuditRecordID was durably written.
type EmergencyAccessGrant struct {
	ResourceID    string    `json:"resource_id"`
	ResourceType  string    `json:"resource_type"`
	Reason        string    `json:"reason"`
	RequestedAt   time.Time `json:"requested_at"`
	RequestedBy   string    `json:"requested_by"`
	ExpiresAt     time.Time `json:"expires_at"`
	AuditRecordID string    `json:"audit_record_id"`
}

// Active reports whether the grant is still inside its window at the given
// instant. Expiry is a time comparison, not a timer.
func (g *EmergencyAccessGrant) Active(now time.Time) bool {
	return g != nil && now.Before(g.ExpiresAt)
}
