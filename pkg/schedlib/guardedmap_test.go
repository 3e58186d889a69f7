package schedlib

import (
	"sync"
	"testing"
)

func TestGuardedMapBasics(t *testing.T) {
	m := NewGuardedMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("missing key should not be found")
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d", m.Len())
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Error("deleted key should be gone")
	}
}

func TestGuardedMapSwap(t *testing.T) {
	m := NewGuardedMap[string, int]()

	if prev, ok := m.Swap("k", 1); ok {
		t.Errorf("swap on empty returned %d", prev)
	}
	prev, ok := m.Swap("k", 2)
	if !ok || prev != 1 {
		t.Errorf("swap = %d, %v, want 1, true", prev, ok)
	}
	if v, _ := m.Get("k"); v != 2 {
		t.Errorf("value after swap = %d", v)
	}
}

func TestGuardedMapDeleteIf(t *testing.T) {
	m := NewGuardedMap[string, int]()
	m.Set("k", 1)

	if m.DeleteIf("k", func(v int) bool { return v == 2 }) {
		t.Error("predicate mismatch should not delete")
	}
	if _, ok := m.Get("k"); !ok {
		t.Fatal("entry disappeared despite failed predicate")
	}
	if !m.DeleteIf("k", func(v int) bool { return v == 1 }) {
		t.Error("predicate match should delete")
	}
	if _, ok := m.Get("k"); ok {
		t.Error("entry survived matching DeleteIf")
	}
	if m.DeleteIf("missing", func(int) bool { return true }) {
		t.Error("absent key reported deleted")
	}
}

func TestGuardedMapRange(t *testing.T) {
	m := NewGuardedMap[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)

	sum := 0
	m.Range(func(_ string, v int) bool {
		sum += v
		return true
	})
	if sum != 3 {
		t.Errorf("sum = %d", sum)
	}

	visits := 0
	m.Range(func(_ string, _ int) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("early stop visited %d entries", visits)
	}
}

func TestGuardedMapConcurrent(t *testing.T) {
	m := NewGuardedMap[int, int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Set(i, i)
			m.Get(i)
			m.Swap(i, i+1)
		}(i)
	}
	wg.Wait()
	if m.Len() != 50 {
		t.Errorf("Len = %d, want 50", m.Len())
	}
}
