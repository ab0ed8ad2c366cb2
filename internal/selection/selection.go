// Package selection provides a bounded, order-preserving set of catalog item
// identifiers that gates job submission.
package selection

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the maximum number of items a selection holds by default
const DefaultCapacity = 50

var (
	// ErrLimitReached is returned when adding would exceed the capacity
	ErrLimitReached = errors.New("selection limit reached")
	// ErrAlreadySelected is returned when adding an item that is a member
	ErrAlreadySelected = errors.New("item already selected")
)

// Outcome is the result of a single Toggle
type Outcome int

// Toggle outcomes
const (
	OutcomeAdded Outcome = iota + 1
	OutcomeRemoved
	OutcomeLimitReached
)

// Added reports whether the toggle added the item
func (o Outcome) Added() bool {
	return o == OutcomeAdded
}

func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeRemoved:
		return "removed"
	case OutcomeLimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// BulkResult describes what a ToggleAll call changed
type BulkResult struct {
	// Added lists the ids that were selected, in input order
	Added []string
	// Removed lists the ids that were deselected, in input order
	Removed []string
	// Skipped lists the unselected ids that did not fit under the capacity
	Skipped []string
	// LimitReached is set when at least one id was skipped
	LimitReached bool
}

// Reader is the read-only view of a selection used by the submission path
type Reader interface {
	Members() []string
}

// Manager is a bounded ordered set of item ids. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	capacity int
	order    []string
	members  map[string]struct{}

	onLimit func(attempted string)
}

var _ Reader = (*Manager)(nil)

// NewManager creates an empty selection. A capacity below 1 uses DefaultCapacity.
func NewManager(capacity int) *Manager {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Manager{
		capacity: capacity,
		members:  make(map[string]struct{}),
	}
}

// OnLimitReached registers fn to be called whenever an add is rejected
// because the selection is full. For ToggleAll, fn is called once per call
// with the first id that did not fit.
func (m *Manager) OnLimitReached(fn func(attempted string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLimit = fn
}

// Toggle removes id when it is selected, and adds it otherwise if there is room
func (m *Manager) Toggle(id string) Outcome {
	m.mu.Lock()
	if _, ok := m.members[id]; ok {
		m.removeLocked(id)
		m.mu.Unlock()
		return OutcomeRemoved
	}
	if len(m.order) >= m.capacity {
		fn := m.onLimit
		m.mu.Unlock()
		if fn != nil {
			fn(id)
		}
		return OutcomeLimitReached
	}
	m.addLocked(id)
	m.mu.Unlock()
	return OutcomeAdded
}

// Add selects id, returning ErrAlreadySelected or ErrLimitReached when it cannot
func (m *Manager) Add(id string) error {
	m.mu.Lock()
	if _, ok := m.members[id]; ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadySelected, id)
	}
	if capacity := m.capacity; len(m.order) >= capacity {
		fn := m.onLimit
		m.mu.Unlock()
		if fn != nil {
			fn(id)
		}
		return fmt.Errorf("%w: capacity is %d", ErrLimitReached, capacity)
	}
	m.addLocked(id)
	m.mu.Unlock()
	return nil
}

// Remove deselects id and reports whether it was selected
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[id]; !ok {
		return false
	}
	m.removeLocked(id)
	return true
}

// ToggleAll deselects ids when all of them are selected. Otherwise it selects
// the unselected ones in input order until the capacity is reached.
func (m *Manager) ToggleAll(ids []string) BulkResult {
	var res BulkResult

	m.mu.Lock()
	allSelected := true
	for _, id := range ids {
		if _, ok := m.members[id]; !ok {
			allSelected = false
			break
		}
	}

	if allSelected {
		for _, id := range ids {
			if _, ok := m.members[id]; ok {
				m.removeLocked(id)
				res.Removed = append(res.Removed, id)
			}
		}
		m.mu.Unlock()
		return res
	}

	for _, id := range ids {
		if _, ok := m.members[id]; ok {
			continue
		}
		if len(m.order) >= m.capacity {
			res.Skipped = append(res.Skipped, id)
			continue
		}
		m.addLocked(id)
		res.Added = append(res.Added, id)
	}
	res.LimitReached = len(res.Skipped) > 0
	fn := m.onLimit
	m.mu.Unlock()

	if res.LimitReached && fn != nil {
		fn(res.Skipped[0])
	}
	return res
}

// Clear empties the selection
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = nil
	m.members = make(map[string]struct{})
}

// Members returns the selected ids in selection order
func (m *Manager) Members() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Contains reports whether id is selected
func (m *Manager) Contains(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[id]
	return ok
}

// Count returns the number of selected ids
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// Capacity returns the maximum number of selected ids
func (m *Manager) Capacity() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capacity
}

// IsMaxReached reports whether no more ids can be added
func (m *Manager) IsMaxReached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order) >= m.capacity
}

// SetCapacity changes the capacity. It cannot drop below the current count.
func (m *Manager) SetCapacity(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 {
		return fmt.Errorf("capacity must be at least 1, got %d", n)
	}
	if n < len(m.order) {
		return fmt.Errorf("capacity %d is below the current selection size %d", n, len(m.order))
	}
	m.capacity = n
	return nil
}

func (m *Manager) addLocked(id string) {
	m.members[id] = struct{}{}
	m.order = append(m.order, id)
}

func (m *Manager) removeLocked(id string) {
	delete(m.members, id)
	for i, member := range m.order {
		if member == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
