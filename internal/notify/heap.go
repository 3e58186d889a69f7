package notify

import "container/heap"

// triggerHeap implements container/heap.Interface for Notification,
// sorted by TriggerAt (earliest first — min-heap).
type triggerHeap []Notification

func (h triggerHeap) Len() int           { return len(h) }
func (h triggerHeap) Less(i, j int) bool { return h[i].TriggerAt.Before(h[j].TriggerAt) }
func (h triggerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *triggerHeap) Push(x any) {
	*h = append(*h, x.(Notification))
}

func (h *triggerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds a Notification to the heap, maintaining heap invariant.
func heapPush(h *triggerHeap, n Notification) {
	heap.Push(h, n)
}

// heapPop removes and returns the Notification with the earliest
// TriggerAt. Panics if the heap is empty.
func heapPop(h *triggerHeap) Notification {
	return heap.Pop(h).(Notification)
}

// heapRemoveByID removes the pending notification with the given ID.
// Returns true if it was found and removed.
func heapRemoveByID(h *triggerHeap, id string) bool {
	for i, n := range *h {
		if n.ID == id {
			heap.Remove(h, i)
			return true
		}
	}
	return false
}

// heapRemoveCategory removes every pending notification in the given
// category and returns how many were removed. Point removals via
// heap.Remove can sift surviving elements to already-visited indices,
// so the heap is filtered in one pass and rebuilt instead.
func heapRemoveCategory(h *triggerHeap, category Category) int {
	kept := (*h)[:0]
	removed := 0
	for _, n := range *h {
		if n.Category == category {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	*h = kept
	if removed > 0 {
		heap.Init(h)
	}
	return removed
}
