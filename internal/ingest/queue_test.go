package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrdersByDueThenInsertion(t *testing.T) {
	q := NewQueue()
	base := time.Now()
	q.Push("late", base.Add(time.Minute))
	q.Push("first", base)
	q.Push("second", base)
	q.Push("middle", base.Add(time.Second))

	name, due, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "first", name)
	assert.Equal(t, base, due)
	assert.Equal(t, 4, q.Len())

	var order []string
	for q.Len() > 0 {
		name, _, _ := q.Pop()
		order = append(order, name)
	}
	assert.Equal(t, []string{"first", "second", "middle", "late"}, order)

	_, _, ok = q.Pop()
	assert.False(t, ok)
}
