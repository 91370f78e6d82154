// model/permission.go
package model

// PermissionDefinition describes one entry of the static permission table.
// The table is loaded once at process start and never mutated.
type PermissionDefinition struct {
	Code         string   `json:"code" yaml:"code"`
	Category     string   `json:"category" yaml:"category"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies"`
	Dangerous    bool     `json:"dangerous" yaml:"dangerous"`
}

// RoleTemplate names a reusable bundle of permission codes. Assigning the
// template materializes the dependency closure of its codes.
type RoleTemplate struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Permissions []string `json:"permissions" yaml:"permissions"`
}

// CheckResult is the resolved outcome of a single permission check.
// Granted is authoritative only once Loading is false; callers must treat a
// loading result as denied.
type CheckResult struct {
	Code    string `json:"code"`
	Granted bool   `json:"granted"`
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}
