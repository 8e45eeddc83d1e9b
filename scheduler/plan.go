package scheduler

import (
	"github.com/gammazero/toposort"

	"github.com/vinayprograms/schedkit/errors"
)

// Plan computes a dependency-respecting assignment order for a batch of
// tasks: assigning in the returned order guarantees every in-batch
// dependency is registered before its dependents. Dependencies outside
// the batch are ignored here; AssignTask still checks them against the
// scheduler's own state.
//
// A cyclic batch produces an INVALID_INPUT error.
func Plan(tasks []*Task) ([]string, error) {
	inBatch := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if t == nil || t.ID == "" {
			return nil, errors.InvalidInput("plan requires tasks with ids")
		}
		if _, dup := inBatch[t.ID]; dup {
			return nil, errors.InvalidInput("duplicate task id in batch", errors.WithTaskID(t.ID))
		}
		inBatch[t.ID] = struct{}{}
	}

	var edges []toposort.Edge
	for _, t := range tasks {
		connected := false
		for _, dep := range t.Dependencies {
			if _, ok := inBatch[dep]; ok {
				edges = append(edges, toposort.Edge{dep, t.ID})
				connected = true
			}
		}
		if !connected {
			// Root tasks hang off a nil pseudo-vertex so the sort
			// still includes them.
			edges = append(edges, toposort.Edge{nil, t.ID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, errors.InvalidInput("dependency cycle in batch", errors.WithCause(err))
	}

	order := make([]string, 0, len(tasks))
	for _, v := range sorted {
		if v != nil {
			order = append(order, v.(string))
		}
	}
	return order, nil
}
