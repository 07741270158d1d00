package scope

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/google/go-cmp/cmp"
)

// Vars is the set of substitution variables identifying one unit of work.
type Vars map[string]any

// Equal reports deep structural equality, numbers compared by value.
func (v Vars) Equal(other Vars) bool {
	return cmp.Equal(map[string]any(v), map[string]any(other))
}

// Key is the canonical JSON form of the vars, used in logs and status output.
func (v Vars) Key() string {
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(map[string]any(v))
	}
	return string(out)
}

// Scope is a Vars record plus the 1-based loop positions selected at each
// nesting depth, outermost first.
type Scope struct {
	Vars    Vars
	Indices []int
}

func New(vars Vars) Scope {
	return Scope{Vars: vars}
}

func (s Scope) Depth() int {
	return len(s.Indices)
}

// Push returns a copy of the scope one loop level deeper.
func (s Scope) Push(index int) Scope {
	indices := make([]int, len(s.Indices), len(s.Indices)+1)
	copy(indices, s.Indices)
	return Scope{
		Vars:    s.Vars,
		Indices: append(indices, index),
	}
}

// LoopKey is the template name of the loop position at the given depth.
func LoopKey(depth int) string {
	return fmt.Sprintf("index-%d", depth)
}

// View is what templates see: the vars, one `index-<depth>` key per loop level
// and `index` as an alias of the outermost position. Loop keys win over vars
// with the same name.
func (s Scope) View() map[string]any {
	view := make(map[string]any, len(s.Vars)+len(s.Indices)+1)
	maps.Copy(view, s.Vars)
	for depth, index := range s.Indices {
		view[LoopKey(depth)] = index
	}
	if len(s.Indices) > 0 {
		view["index"] = s.Indices[0]
	}
	return view
}

func (s Scope) String() string {
	if len(s.Indices) == 0 {
		return s.Vars.Key()
	}
	return fmt.Sprintf("%s%v", s.Vars.Key(), s.Indices)
}
