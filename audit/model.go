// audit/model.go
package audit

import "time"

const (
	EventEmergencyOverride = "emergency_override"
	EventDangerousGrant    = "dangerous_permission_granted"
)

type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Event        string    `json:"event"`
	ActorID      string    `json:"actor_id"`
	ResourceID   string    `json:"resource_id"`
	ResourceType string    `json:"resource_type"`
	Reason       string    `json:"reason,omitempty"`
	Granted      bool      `json:"granted"`
}
