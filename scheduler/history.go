package scheduler

// completedHistory is the bounded completed-id set: a FIFO of task ids
// that reached completed, used solely to answer dependency-satisfaction
// queries. An explicit slice keeps eviction strictly oldest-first; Go
// maps do not preserve insertion order.
type completedHistory struct {
	limit int
	order []string
	set   map[string]struct{}
}

func newCompletedHistory(limit int) *completedHistory {
	return &completedHistory{
		limit: limit,
		set:   make(map[string]struct{}),
	}
}

// add records a completed id and returns any ids evicted to stay within
// the limit. Evicted ids become unsatisfiable for late-arriving
// dependents.
func (h *completedHistory) add(id string) []string {
	if _, ok := h.set[id]; ok {
		return nil
	}
	h.order = append(h.order, id)
	h.set[id] = struct{}{}
	return h.trim()
}

// trim evicts the oldest surplus entries.
func (h *completedHistory) trim() []string {
	if h.limit <= 0 || len(h.order) <= h.limit {
		return nil
	}
	surplus := len(h.order) - h.limit
	evicted := make([]string, surplus)
	copy(evicted, h.order[:surplus])
	h.order = append(h.order[:0], h.order[surplus:]...)
	for _, id := range evicted {
		delete(h.set, id)
	}
	return evicted
}

// contains reports whether an id is in the history.
func (h *completedHistory) contains(id string) bool {
	_, ok := h.set[id]
	return ok
}

// size returns the number of retained ids.
func (h *completedHistory) size() int {
	return len(h.order)
}

// reset drops all retained ids.
func (h *completedHistory) reset() {
	h.order = nil
	h.set = make(map[string]struct{})
}
