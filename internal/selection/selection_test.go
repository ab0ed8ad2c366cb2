package selection

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return out
}

func TestNewManager(t *testing.T) {
	assert.Equal(t, DefaultCapacity, NewManager(0).Capacity())
	assert.Equal(t, DefaultCapacity, NewManager(-3).Capacity())
	assert.Equal(t, 5, NewManager(5).Capacity())
	assert.Zero(t, NewManager(5).Count())
}

func TestToggle(t *testing.T) {
	m := NewManager(2)

	assert.Equal(t, OutcomeAdded, m.Toggle("a"))
	assert.Equal(t, OutcomeAdded, m.Toggle("b"))
	assert.True(t, m.IsMaxReached())

	out := m.Toggle("c")
	assert.Equal(t, OutcomeLimitReached, out)
	assert.False(t, out.Added())
	assert.Equal(t, []string{"a", "b"}, m.Members())

	assert.Equal(t, OutcomeRemoved, m.Toggle("a"))
	assert.False(t, m.IsMaxReached())
	assert.Equal(t, OutcomeAdded, m.Toggle("c"))
	assert.Equal(t, []string{"b", "c"}, m.Members())
}

func TestTogglePairRestoresState(t *testing.T) {
	m := NewManager(3)
	m.ToggleAll([]string{"a", "b"})
	before := m.Members()

	m.Toggle("x")
	m.Toggle("x")
	assert.Equal(t, before, m.Members())

	m.Toggle("a")
	m.Toggle("a")
	assert.ElementsMatch(t, before, m.Members())
	assert.Equal(t, len(before), m.Count())
}

func TestAdd(t *testing.T) {
	m := NewManager(1)

	require.NoError(t, m.Add("a"))
	assert.ErrorIs(t, m.Add("a"), ErrAlreadySelected)
	assert.ErrorIs(t, m.Add("b"), ErrLimitReached)
	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.NoError(t, m.Add("b"))
}

func TestToggleAll(t *testing.T) {
	t.Run("partial fill in input order", func(t *testing.T) {
		m := NewManager(5)
		m.ToggleAll([]string{"a", "b", "c"})

		res := m.ToggleAll([]string{"b", "d", "e", "f", "g"})
		assert.Equal(t, []string{"d", "e"}, res.Added)
		assert.Equal(t, []string{"f", "g"}, res.Skipped)
		assert.True(t, res.LimitReached)
		assert.Empty(t, res.Removed)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, m.Members())
	})

	t.Run("all selected deselects exactly that subset", func(t *testing.T) {
		m := NewManager(10)
		m.ToggleAll([]string{"a", "b", "c", "d"})

		res := m.ToggleAll([]string{"b", "d"})
		assert.Equal(t, []string{"b", "d"}, res.Removed)
		assert.Empty(t, res.Added)
		assert.Equal(t, []string{"a", "c"}, m.Members())
	})

	t.Run("duplicates in input", func(t *testing.T) {
		m := NewManager(10)
		res := m.ToggleAll([]string{"a", "a", "b"})
		assert.Equal(t, []string{"a", "b"}, res.Added)
		assert.Equal(t, 2, m.Count())

		res = m.ToggleAll([]string{"a", "a"})
		assert.Equal(t, []string{"a"}, res.Removed)
		assert.Equal(t, []string{"b"}, m.Members())
	})

	t.Run("empty input is a no-op", func(t *testing.T) {
		m := NewManager(10)
		m.Toggle("a")
		res := m.ToggleAll(nil)
		assert.Equal(t, BulkResult{}, res)
		assert.Equal(t, []string{"a"}, m.Members())
	})

	t.Run("full selection skips silently", func(t *testing.T) {
		m := NewManager(2)
		m.ToggleAll([]string{"a", "b"})
		res := m.ToggleAll([]string{"a", "c"})
		assert.Empty(t, res.Added)
		assert.Equal(t, []string{"c"}, res.Skipped)
		assert.Equal(t, []string{"a", "b"}, m.Members())
	})
}

// Selecting 55 distinct ids with capacity 50 keeps 50 and signals the limit once.
func TestToggleAllCapsAtCapacity(t *testing.T) {
	m := NewManager(50)
	var signals []string
	m.OnLimitReached(func(attempted string) { signals = append(signals, attempted) })

	input := ids("p", 55)
	res := m.ToggleAll(input)

	assert.Equal(t, 50, m.Count())
	assert.True(t, m.IsMaxReached())
	assert.Equal(t, input[:50], res.Added)
	assert.Equal(t, input[50:], res.Skipped)
	assert.Equal(t, []string{"p-51"}, signals)
}

func TestLimitSignalPerRejectedToggle(t *testing.T) {
	m := NewManager(1)
	calls := 0
	m.OnLimitReached(func(string) { calls++ })

	m.Toggle("a")
	m.Toggle("b")
	_ = m.Add("c")
	assert.Equal(t, 2, calls)
}

func TestClear(t *testing.T) {
	m := NewManager(3)
	m.ToggleAll([]string{"a", "b", "c"})
	m.Clear()
	assert.Zero(t, m.Count())
	assert.False(t, m.Contains("a"))
	assert.Empty(t, m.Members())
	assert.Equal(t, OutcomeAdded, m.Toggle("a"))
}

func TestSetCapacity(t *testing.T) {
	m := NewManager(3)
	m.ToggleAll([]string{"a", "b"})

	assert.Error(t, m.SetCapacity(0))
	assert.Error(t, m.SetCapacity(1))
	require.NoError(t, m.SetCapacity(2))
	assert.True(t, m.IsMaxReached())
	require.NoError(t, m.SetCapacity(4))
	assert.False(t, m.IsMaxReached())
}

func TestMembersReturnsCopy(t *testing.T) {
	m := NewManager(3)
	m.Toggle("a")
	members := m.Members()
	members[0] = "mutated"
	assert.Equal(t, []string{"a"}, m.Members())
}

// Random toggle sequences never exceed the capacity or produce duplicates.
func TestSelectionBoundHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := ids("item", 30)

	for run := 0; run < 50; run++ {
		capacity := 1 + rng.Intn(10)
		m := NewManager(capacity)

		for step := 0; step < 200; step++ {
			if rng.Intn(3) == 0 {
				n := rng.Intn(8)
				batch := make([]string, n)
				for i := range batch {
					batch[i] = pool[rng.Intn(len(pool))]
				}
				before := m.Count()
				res := m.ToggleAll(batch)
				if len(res.Removed) == 0 {
					assert.Equal(t, before+len(res.Added), m.Count())
				}
			} else {
				m.Toggle(pool[rng.Intn(len(pool))])
			}

			members := m.Members()
			require.LessOrEqual(t, len(members), capacity)
			seen := make(map[string]bool, len(members))
			for _, id := range members {
				require.False(t, seen[id], "duplicate member %s", id)
				seen[id] = true
			}
		}
	}
}

func TestConcurrentToggle(t *testing.T) {
	m := NewManager(10)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Toggle(fmt.Sprintf("w%d-%d", worker, j%15))
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Count(), 10)
}
