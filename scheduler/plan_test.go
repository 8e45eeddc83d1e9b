package scheduler

import (
	"testing"

	"github.com/vinayprograms/schedkit/errors"
)

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestPlanOrdersDependenciesFirst(t *testing.T) {
	order, err := Plan([]*Task{
		{ID: "deploy", Dependencies: []string{"test", "package"}},
		{ID: "test", Dependencies: []string{"build"}},
		{ID: "package", Dependencies: []string{"build"}},
		{ID: "build"},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("order = %v, want 4 ids", order)
	}

	before := func(a, b string) {
		t.Helper()
		if indexOf(order, a) >= indexOf(order, b) {
			t.Fatalf("order = %v, want %s before %s", order, a, b)
		}
	}
	before("build", "test")
	before("build", "package")
	before("test", "deploy")
	before("package", "deploy")
}

func TestPlanIgnoresExternalDependencies(t *testing.T) {
	order, err := Plan([]*Task{
		{ID: "b", Dependencies: []string{"already-done", "a"}},
		{ID: "a", Dependencies: []string{"already-done"}},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(order) != 2 || indexOf(order, "a") > indexOf(order, "b") {
		t.Fatalf("order = %v, want a before b", order)
	}
}

func TestPlanIndependentTasks(t *testing.T) {
	order, err := Plan([]*Task{{ID: "x"}, {ID: "y"}, {ID: "z"}})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(order) != 3 {
		t.Fatalf("order = %v, want 3 ids", order)
	}
}

func TestPlanRejectsCycle(t *testing.T) {
	_, err := Plan([]*Task{
		{ID: "a", Dependencies: []string{"b"}},
		{ID: "b", Dependencies: []string{"a"}},
	})
	if !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("error = %v, want INVALID_INPUT", err)
	}
}

func TestPlanRejectsBadBatches(t *testing.T) {
	if _, err := Plan([]*Task{{ID: "a"}, nil}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("nil task: error = %v, want INVALID_INPUT", err)
	}
	if _, err := Plan([]*Task{{ID: "a"}, {ID: ""}}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("empty id: error = %v, want INVALID_INPUT", err)
	}
	if _, err := Plan([]*Task{{ID: "a"}, {ID: "a"}}); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("duplicate id: error = %v, want INVALID_INPUT", err)
	}
}

func TestPlanEmptyBatch(t *testing.T) {
	order, err := Plan(nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(order) != 0 {
		t.Fatalf("order = %v, want empty", order)
	}
}
