package scoring

import "badminton-scoreboard/internal/domain"

// Snapshot is the score and serve before a rally was applied.
type Snapshot struct {
	Score   domain.Score
	Serving ServingState
}

// History is an in-memory undo stack. The zero value is ready to use.
type History struct {
	entries []Snapshot
}

func (h *History) Push(s Snapshot) {
	h.entries = append(h.entries, s)
}

// Pop removes and returns the most recent snapshot. It reports false on an
// empty stack.
func (h *History) Pop() (Snapshot, bool) {
	if len(h.entries) == 0 {
		return Snapshot{}, false
	}
	last := h.entries[len(h.entries)-1]
	h.entries = h.entries[:len(h.entries)-1]
	return last, true
}

func (h *History) Len() int {
	return len(h.entries)
}

func (h *History) Clear() {
	h.entries = nil
}
