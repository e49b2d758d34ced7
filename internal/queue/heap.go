// StreamSync - Live Stream Overlay Notification Pipeline
// Copyright 2026 git-blame-dev
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/git-blame-dev/stream-sync-sub008

package queue

import "github.com/git-blame-dev/stream-sync-sub008/internal/notification"

// item is one queued notification. seq preserves arrival order so equal
// priorities dequeue FIFO.
type item struct {
	n   *notification.Notification
	seq uint64
}

// notificationHeap orders by priority descending, then arrival order.
// Implements container/heap.Interface.
type notificationHeap []*item

func (h notificationHeap) Len() int { return len(h) }

func (h notificationHeap) Less(i, j int) bool {
	if h[i].n.Priority != h[j].n.Priority {
		return h[i].n.Priority > h[j].n.Priority
	}
	return h[i].seq < h[j].seq
}

func (h notificationHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *notificationHeap) Push(x any) {
	*h = append(*h, x.(*item))
}

func (h *notificationHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
