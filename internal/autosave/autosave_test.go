package autosave

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleCoalesces(t *testing.T) {
	d := New(30 * time.Millisecond)
	var mu sync.Mutex
	var got []int
	for i := 1; i <= 3; i++ {
		d.Schedule("a", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	assert.Equal(t, []string{"a"}, d.Pending())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3}, got)
	assert.Empty(t, d.Pending())
}

func TestCancel(t *testing.T) {
	d := New(20 * time.Millisecond)
	var ran atomic.Int32
	d.Schedule("a", func() { ran.Add(1) })
	assert.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
}

func TestCancelPrefix(t *testing.T) {
	d := New(time.Hour)
	d.Schedule("d1/1-1", func() {})
	d.Schedule("d1/1-2", func() {})
	d.Schedule("d2/1-1", func() {})
	assert.Equal(t, 2, d.CancelPrefix("d1/"))
	assert.Equal(t, []string{"d2/1-1"}, d.Pending())
}

func TestFlushRunsInKeyOrder(t *testing.T) {
	var fired []string
	d := New(time.Hour, WithFireHook(func(key string) { fired = append(fired, key) }))
	var order []string
	d.Schedule("b", func() { order = append(order, "b") })
	d.Schedule("a", func() { order = append(order, "a") })

	assert.Equal(t, 2, d.Flush())
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 0, d.Flush())
}

func TestCloseFlushesAndRejects(t *testing.T) {
	d := New(time.Hour)
	var ran atomic.Int32
	d.Schedule("a", func() { ran.Add(1) })
	assert.Equal(t, 1, d.Close())
	d.Schedule("b", func() { ran.Add(1) })
	assert.Empty(t, d.Pending())
	assert.Equal(t, int32(1), ran.Load())
}
