// model/gate.go
package model

// CategoryAccess is the verdict of the sensitive-category gate.
type CategoryAccess struct {
	CanAccess          bool   `json:"can_access"`
	RestrictedCategory string `json:"restricted_category,omitempty"`
	Reason             string `json:"reason,omitempty"`
}
