// Package loop expands nested "for each child of a selector" specs into one
// scope per selected child, using child counts read from the live page.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"scrapejob/internal/render"
	"scrapejob/internal/scope"

	"github.com/titanous/json5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapejob.internal.loop")

// Spec is one loop level. Selector is a template rendered against the scope
// being expanded. Only and Excludes hold 1-based positions, negative values
// count from the end (-1 is the last child).
type Spec struct {
	Selector string `json:"tplSelector"`
	Only     []int  `json:"only"`
	Excludes []int  `json:"excludes"`
}

// Specs is a chain of loop levels, outermost first. In job files it is either
// a single spec object or an array of them.
type Specs []Spec

func (s *Specs) UnmarshalJSON(data []byte) error {
	var many []Spec
	err := json5.Unmarshal(data, &many)
	if err == nil {
		*s = many
		return nil
	}
	var one Spec
	err = json5.Unmarshal(data, &one)
	if err != nil {
		return fmt.Errorf("loop must be an object or an array of objects: %w", err)
	}
	*s = Specs{one}
	return nil
}

func (s Specs) MarshalJSON() ([]byte, error) {
	return json.Marshal([]Spec(s))
}

// Counter reads the number of element children under a selector.
type Counter interface {
	ChildCount(ctx context.Context, selector string) (int, error)
}

func normalize(indices []int, count int) []int {
	out := make([]int, len(indices))
	for i, v := range indices {
		if v >= 0 {
			out[i] = v
			continue
		}
		out[i] = count + v + 1
	}
	return out
}

// Indices returns the positions selected by the spec for a parent with
// `count` children, in enumeration order.
func (s Spec) Indices(count int) []int {
	var includes []int
	if s.Only != nil {
		includes = normalize(s.Only, count)
	} else {
		includes = make([]int, count)
		for i := range includes {
			includes[i] = i + 1
		}
	}
	excludes := normalize(s.Excludes, count)

	out := make([]int, 0, len(includes))
	for _, idx := range includes {
		if slices.Contains(excludes, idx) {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// expandOne expands a single scope through one loop level.
func expandOne(ctx context.Context, counter Counter, renderer render.Renderer, spec Spec, parent scope.Scope) ([]scope.Scope, error) {
	selector, err := renderer.Render(spec.Selector, parent.View())
	if err != nil {
		return nil, err
	}
	count, err := counter.ChildCount(ctx, selector)
	if err != nil {
		return nil, err
	}

	indices := spec.Indices(count)
	out := make([]scope.Scope, len(indices))
	for i, idx := range indices {
		out[i] = parent.Push(idx)
	}
	return out, nil
}

// Expand runs `base` through every level of `specs`, outer loop first. The
// result is the cartesian product of the selected positions, enumerated
// outer-major. A level matching no children prunes that branch.
func Expand(ctx context.Context, counter Counter, renderer render.Renderer, specs Specs, base scope.Scope) ([]scope.Scope, error) {
	ctx, span := tracer.Start(ctx, "Expand")
	defer span.End()

	current := []scope.Scope{base}
	for depth, spec := range specs {
		var next []scope.Scope
		for _, parent := range current {
			expanded, err := expandOne(ctx, counter, renderer, spec, parent)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to expand loop")
				return nil, fmt.Errorf("loop level %d (%s): %w", depth, spec.Selector, err)
			}
			next = append(next, expanded...)
		}
		current = next
	}

	span.SetAttributes(attribute.Int("scopes", len(current)))
	return current, nil
}
