// registry/registry.go
package registry

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
)

// Registry is the read-only permission definition table plus the category
// and role-template mappings derived from it. Loaded once at process start.
type Registry struct {
	definitions map[string]model.PermissionDefinition
	categories  map[string]string
	templates   map[string]model.RoleTemplate
}

type registryFile struct {
	Permissions []model.PermissionDefinition `yaml:"permissions"`
	Categories  map[string]string            `yaml:"categories"`
	Templates   []model.RoleTemplate         `yaml:"templates"`
}

// Load reads the permission definition table from a YAML file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission definitions: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse permission definitions: %w", err)
	}

	return New(file.Permissions, file.Categories, file.Templates), nil
}

// New builds a registry from already-parsed definitions.
func New(definitions []model.PermissionDefinition, categories map[string]string, templates []model.RoleTemplate) *Registry {
	r := &Registry{
		definitions: make(map[string]model.PermissionDefinition, len(definitions)),
		categories:  make(map[string]string, len(categories)),
		templates:   make(map[string]model.RoleTemplate, len(templates)),
	}
	for _, def := range definitions {
		if _, exists := r.definitions[def.Code]; exists {
			logger.Warn("Duplicate permission definition ignored", zap.String("code", def.Code))
			continue
		}
		r.definitions[def.Code] = def
	}
	for label, code := range categories {
		r.categories[label] = code
	}
	for _, tmpl := range templates {
		r.templates[tmpl.Name] = tmpl
	}
	return r
}

// Definition returns the definition for a code, if known.
func (r *Registry) Definition(code string) (model.PermissionDefinition, bool) {
	def, ok := r.definitions[code]
	return def, ok
}

// IsDangerous reports whether a code is flagged dangerous. Unknown codes are
// not dangerous; they are simply unknown and will be denied upstream.
func (r *Registry) IsDangerous(code string) bool {
	def, ok := r.definitions[code]
	return ok && def.Dangerous
}

// Size returns the number of known permission definitions.
func (r *Registry) Size() int {
	return len(r.definitions)
}

// Resolve expands the requested codes into their closure under the declared
// dependency edges. Breadth-first with a visited set, so a malformed cyclic
// table still terminates. Unknown codes pass through unchanged: dropping
// them would silently mask the caller's intent, and expanding them is
// impossible without a definition.
func (r *Registry) Resolve(requested []string) []string {
	visited := make(map[string]bool, len(requested))
	closure := make([]string, 0, len(requested))

	queue := make([]string, 0, len(requested))
	for _, code := range requested {
		if visited[code] {
			continue
		}
		visited[code] = true
		queue = append(queue, code)
	}

	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		closure = append(closure, code)

		def, ok := r.definitions[code]
		if !ok {
			continue
		}
		for _, dep := range def.Dependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			queue = append(queue, dep)
		}
	}

	return closure
}

// AutoEnabled returns the codes the closure adds beyond the requested set,
// in closure order. A selection UI renders these as implicitly enabled.
func (r *Registry) AutoEnabled(requested []string) []string {
	selected := make(map[string]bool, len(requested))
	for _, code := range requested {
		selected[code] = true
	}

	var implied []string
	for _, code := range r.Resolve(requested) {
		if !selected[code] {
			implied = append(implied, code)
		}
	}
	return implied
}

// CategoryPermission maps a sensitive-category label to its gate permission
// code. Unmapped labels fall back to a derived code, which no authority will
// grant unless it was deliberately defined.
func (r *Registry) CategoryPermission(label string) string {
	if code, ok := r.categories[label]; ok {
		return code
	}
	return "sensitive." + label
}

// ExpandRoleTemplate materializes the full permission set a role template
// assigns, dependency closure included.
func (r *Registry) ExpandRoleTemplate(name string) ([]string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown role template: %s", name)
	}
	return r.Resolve(tmpl.Permissions), nil
}
