// gate/gate.go
package gate

import (
	"context"
	"fmt"

	"github.com/clinicore/authcore/engine"
	"github.com/clinicore/authcore/model"
	"github.com/clinicore/authcore/registry"
)

// SensitiveCategoryGate aggregates the permission checks behind a record's
// sensitive-category labels into one access verdict.
type SensitiveCategoryGate struct {
	registry *registry.Registry
}

func NewSensitiveCategoryGate(reg *registry.Registry) *SensitiveCategoryGate {
	return &SensitiveCategoryGate{registry: reg}
}

// EvaluateAccess maps every category label to its permission code and checks
// all of them; access requires every one granted. The verdict reports the
// first failing category in input order. An empty category set always
// allows.
func (g *SensitiveCategoryGate) EvaluateAccess(ctx context.Context, eng *engine.Engine, categories []string) model.CategoryAccess {
	if len(categories) == 0 {
		return model.CategoryAccess{CanAccess: true}
	}

	codes := make([]string, len(categories))
	for i, category := range categories {
		codes[i] = g.registry.CategoryPermission(category)
	}

	// Every code is evaluated, not just the first; the verdict then walks
	// the input order to name the first restriction.
	results := eng.CheckBatch(ctx, codes)

	for i, category := range categories {
		if !results[codes[i]] {
			return model.CategoryAccess{
				CanAccess:          false,
				RestrictedCategory: category,
				Reason:             fmt.Sprintf("This record contains %s information that requires additional access privileges", category),
			}
		}
	}

	return model.CategoryAccess{CanAccess: true}
}
