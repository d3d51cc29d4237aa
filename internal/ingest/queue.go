// Package ingest runs the polling scheduler that keeps the archive current:
// per-community post, comment and modlog ingestion, the site-wide feed, the
// one-off backingest and community discovery.
package ingest

import (
	"container/heap"
	"time"
)

type entry struct {
	due       time.Time
	community string
	seq       uint64
}

type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue orders communities by due time. Entries due at the same instant come
// out in insertion order. It is not safe for concurrent use.
type Queue struct {
	entries entryHeap
	seq     uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push schedules community at due.
func (q *Queue) Push(community string, due time.Time) {
	q.seq++
	heap.Push(&q.entries, entry{due: due, community: community, seq: q.seq})
}

// Peek returns the next due community without removing it.
func (q *Queue) Peek() (string, time.Time, bool) {
	if len(q.entries) == 0 {
		return "", time.Time{}, false
	}
	e := q.entries[0]
	return e.community, e.due, true
}

// Pop removes and returns the next due community.
func (q *Queue) Pop() (string, time.Time, bool) {
	if len(q.entries) == 0 {
		return "", time.Time{}, false
	}
	e := heap.Pop(&q.entries).(entry)
	return e.community, e.due, true
}

// Len returns the number of scheduled entries.
func (q *Queue) Len() int {
	return len(q.entries)
}
