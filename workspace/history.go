package workspace

// History keeps two bounded stacks of item snapshots. Past grows at the end,
// future is consumed from the front.
type History struct {
	past   [][]PlacedItem
	future [][]PlacedItem
	limit  int
}

// NewHistory creates a history holding at most limit snapshots per stack.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxHistory
	}
	return &History{limit: limit}
}

// Push records a snapshot taken before a mutation. The redo branch is
// invalidated and the oldest snapshot is evicted past the limit.
func (h *History) Push(snapshot []PlacedItem) {
	h.pushPast(snapshot)
	h.future = nil
}

func (h *History) pushPast(snapshot []PlacedItem) {
	h.past = append(h.past, snapshot)
	if len(h.past) > h.limit {
		excess := len(h.past) - h.limit
		h.past = h.past[excess:]
	}
}

// Undo pops the most recent past snapshot and parks current at the front of
// future.
func (h *History) Undo(current []PlacedItem) ([]PlacedItem, bool) {
	if len(h.past) == 0 {
		return nil, false
	}

	last := len(h.past) - 1
	prev := h.past[last]
	h.past[last] = nil
	h.past = h.past[:last]

	h.future = append([][]PlacedItem{current}, h.future...)
	if len(h.future) > h.limit {
		h.future = h.future[:h.limit]
	}
	return prev, true
}

// Redo shifts the nearest future snapshot and pushes current onto past.
func (h *History) Redo(current []PlacedItem) ([]PlacedItem, bool) {
	if len(h.future) == 0 {
		return nil, false
	}

	next := h.future[0]
	h.future[0] = nil
	h.future = h.future[1:]

	h.pushPast(current)
	return next, true
}

func (h *History) CanUndo() bool {
	return len(h.past) > 0
}

func (h *History) CanRedo() bool {
	return len(h.future) > 0
}

func (h *History) PastLen() int {
	return len(h.past)
}

func (h *History) FutureLen() int {
	return len(h.future)
}

// Past returns copies of the past snapshots, oldest first.
func (h *History) Past() [][]PlacedItem {
	return cloneStack(h.past)
}

// Future returns copies of the future snapshots, nearest first.
func (h *History) Future() [][]PlacedItem {
	return cloneStack(h.future)
}

// reset replaces both stacks, trimming past to its most recent entries and
// future to its nearest ones.
func (h *History) reset(past, future [][]PlacedItem) {
	if len(past) > h.limit {
		past = past[len(past)-h.limit:]
	}
	if len(future) > h.limit {
		future = future[:h.limit]
	}
	h.past = past
	h.future = future
}

func cloneStack(stack [][]PlacedItem) [][]PlacedItem {
	out := make([][]PlacedItem, len(stack))
	for i, snapshot := range stack {
		out[i] = cloneItems(snapshot)
	}
	return out
}

// Undo restores the items as they were before the most recent mutation.
// Selection is cleared. No-op when there is nothing to undo.
func (e *Engine) Undo() {
	prev, ok := e.history.Undo(e.items)
	if !ok {
		return
	}
	e.items = prev
	e.selection = nil
	e.changed()
}

// Redo re-applies the most recently undone mutation. Selection is cleared.
// No-op when there is nothing to redo.
func (e *Engine) Redo() {
	next, ok := e.history.Redo(e.items)
	if !ok {
		return
	}
	e.items = next
	e.selection = nil
	e.changed()
}
