package queue

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func item(url string, depth int) models.WorkItem {
	return models.WorkItem{URL: url, Depth: depth}
}

func TestFrontier_PriorityThenFIFO(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("d2-a", 2))
	f.Add(item("d0", 0))
	f.Add(item("d1-a", 1))
	f.Add(item("d2-b", 2))
	f.Add(item("d1-b", 1))

	var got []string
	for i := 0; i < 5; i++ {
		it, ok := f.Pop(context.Background())
		require.True(t, ok)
		got = append(got, it.URL)
	}
	assert.Equal(t, []string{"d0", "d1-a", "d1-b", "d2-a", "d2-b"}, got)
	assert.Equal(t, 5, f.InFlight())
}

func TestFrontier_DrainedWhenEmptyAndIdle(t *testing.T) {
	f := NewFrontier(testLogger())

	_, ok := f.Pop(context.Background())
	assert.False(t, ok, "empty frontier with nothing in flight is drained")

	f.Add(item("a", 0))
	it, ok := f.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a", it.URL)
	f.Done()

	_, ok = f.Pop(context.Background())
	assert.False(t, ok)
}

func TestFrontier_PopWaitsForInFlightFollowUps(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("listing", 0))
	_, ok := f.Pop(context.Background())
	require.True(t, ok)

	result := make(chan models.WorkItem, 1)
	go func() {
		it, ok := f.Pop(context.Background())
		if ok {
			result <- it
		}
		close(result)
	}()

	select {
	case <-result:
		t.Fatal("Pop returned while an item was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	f.Add(item("listing?page=2", 1))
	f.Done()

	select {
	case it := <-result:
		assert.Equal(t, "listing?page=2", it.URL)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return the follow-up")
	}
}

func TestFrontier_DoneWakesWaiters(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("a", 0))
	_, ok := f.Pop(context.Background())
	require.True(t, ok)

	var wg sync.WaitGroup
	var drained atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := f.Pop(context.Background()); !ok {
				drained.Add(1)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	f.Done()
	wg.Wait()
	assert.Equal(t, int32(4), drained.Load())
}

func TestFrontier_ContextCancelUnblocks(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("a", 0))
	_, ok := f.Pop(context.Background())
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		_, ok := f.Pop(ctx)
		done <- ok
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Pop did not observe cancellation")
	}
}

func TestFrontier_Close(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("a", 0))
	f.Add(item("b", 0))
	f.Close()
	f.Close() // idempotent

	assert.False(t, f.Add(item("c", 0)))

	it, ok := f.Pop(context.Background())
	require.True(t, ok, "queued items remain poppable after close")
	assert.Equal(t, "a", it.URL)
	_, ok = f.Pop(context.Background())
	require.True(t, ok)
	_, ok = f.Pop(context.Background())
	assert.False(t, ok)
	assert.Equal(t, 0, f.Len())
}

func TestFrontier_ConcurrentAddPop(t *testing.T) {
	f := NewFrontier(testLogger())
	f.Add(item("root", 0))

	const fanOut = 50
	var processed atomic.Int32
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				it, ok := f.Pop(context.Background())
				if !ok {
					return
				}
				if it.Depth == 0 {
					for i := 0; i < fanOut; i++ {
						f.Add(item(fmt.Sprintf("child-%d", i), 1))
					}
				}
				processed.Add(1)
				f.Done()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(fanOut+1), processed.Load())
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, 0, f.InFlight())
}
