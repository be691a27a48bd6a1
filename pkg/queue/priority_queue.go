package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

// pqItem represents an item in the priority queue
type pqItem struct {
	workItem models.WorkItem
	priority int    // Lower value means higher priority (depth)
	seq      uint64 // Insertion order, breaks ties FIFO
	index    int
}

// priorityQueue implements heap.Interface
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}

// Frontier is the crawl's work queue: shallower URLs first, FIFO within a depth.
// It tracks items handed out by Pop until Done is called, and reports itself
// drained once it is empty with nothing in flight.
type Frontier struct {
	pq       priorityQueue
	mu       sync.Mutex
	cond     *sync.Cond
	seq      uint64
	inFlight int
	closed   bool
	log      *logrus.Entry
}

// NewFrontier creates an empty frontier
func NewFrontier(logger *logrus.Entry) *Frontier {
	f := &Frontier{log: logger.WithField("component", "frontier")}
	f.cond = sync.NewCond(&f.mu)
	heap.Init(&f.pq)
	return f
}

// Add pushes a work item with priority based on depth.
// Returns false when the frontier is already closed.
func (f *Frontier) Add(item models.WorkItem) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.log.WithField("url", item.URL).Debug("Dropping item added to closed frontier")
		return false
	}
	f.seq++
	heap.Push(&f.pq, &pqItem{workItem: item, priority: item.Depth, seq: f.seq})
	f.cond.Signal()
	return true
}

// Pop retrieves the next work item, blocking while the queue is empty but other
// items are still in flight (they may enqueue follow-ups).
// Returns false once the frontier is drained, closed and empty, or ctx is done.
// Every successful Pop must be paired with Done.
func (f *Frontier) Pop(ctx context.Context) (models.WorkItem, bool) {
	stop := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer stop()

	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.pq) == 0 {
		if f.closed || f.inFlight == 0 || ctx.Err() != nil {
			return models.WorkItem{}, false
		}
		f.cond.Wait()
	}
	if ctx.Err() != nil {
		return models.WorkItem{}, false
	}

	item := heap.Pop(&f.pq).(*pqItem)
	f.inFlight++
	return item.workItem, true
}

// Done marks one popped item as finished
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight > 0 {
		f.inFlight--
	}
	if f.inFlight == 0 && len(f.pq) == 0 {
		f.cond.Broadcast()
	}
}

// Close signals that no more items will be added; waiting Pops return once the queue is empty
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.cond.Broadcast()
	}
}

// Len returns the number of queued items
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pq)
}

// InFlight returns the number of popped items not yet marked Done
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}
