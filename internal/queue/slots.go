package queue

import "sync"

// SlotTable maps accelerator index to the job currently bound to it. It is
// the only cross-component shared mutable state besides the JobStore, and
// every update happens under its lock so the resource-status query never
// observes a torn binding.
type SlotTable struct {
	mu      sync.Mutex
	byIndex map[int]string
}

func NewSlotTable() *SlotTable {
	return &SlotTable{byIndex: make(map[int]string)}
}

func (t *SlotTable) Bind(index int, jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byIndex[index] = jobID
}

func (t *SlotTable) Release(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byIndex, index)
}

// Current returns the job bound to a slot, if any.
func (t *SlotTable) Current(index int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byIndex[index]
	return id, ok
}

// BoundCount returns how many slots hold a job right now.
func (t *SlotTable) BoundCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byIndex)
}
