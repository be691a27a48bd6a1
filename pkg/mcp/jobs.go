package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
)

// JobStatus is the state of a background crawl
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is one background crawl started through the server
type Job struct {
	ID               string    `json:"id"`
	Status           JobStatus `json:"status"`
	StartedAt        time.Time `json:"started_at"`
	CompletedAt      time.Time `json:"completed_at,omitempty"`
	RunID            string    `json:"run_id,omitempty"`
	ResourcesHandled int64     `json:"resources_handled"`
	RecordsPushed    int64     `json:"records_pushed"`
	ErrorMessage     string    `json:"error_message,omitempty"`

	cancel context.CancelFunc
	done   chan struct{}
}

func (j *Job) active() bool { return j.Status == JobStatusRunning }

// CrawlFunc runs one complete crawl
type CrawlFunc func(ctx context.Context) (*models.CrawlSummary, error)

// JobManager runs at most one crawl at a time, since all crawls share one state store
type JobManager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	current string
}

// NewJobManager creates an empty manager
func NewJobManager() *JobManager {
	return &JobManager{jobs: make(map[string]*Job)}
}

// Start launches crawl in the background. If a crawl is already running its
// job is returned and started is false.
func (m *JobManager) Start(crawl CrawlFunc) (job Job, started bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.jobs[m.current]; ok && cur.active() {
		return *cur, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusRunning,
		StartedAt: time.Now().UTC(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	m.jobs[j.ID] = j
	m.current = j.ID

	go func() {
		defer close(j.done)
		defer cancel()
		summary, err := crawl(ctx)
		m.finish(j.ID, summary, err)
	}()
	return *j, true
}

func (m *JobManager) finish(id string, summary *models.CrawlSummary, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return
	}
	if summary != nil {
		j.RunID = summary.RunID
		j.ResourcesHandled = summary.ResourcesHandled
		j.RecordsPushed = summary.RecordsPushed
	}
	if j.Status == JobStatusCancelled {
		return
	}
	j.CompletedAt = time.Now().UTC()
	switch {
	case err == nil:
		j.Status = JobStatusCompleted
	case errors.Is(err, context.Canceled):
		j.Status = JobStatusCancelled
	default:
		j.Status = JobStatusFailed
		j.ErrorMessage = err.Error()
	}
}

// Get returns a snapshot of the job with id
func (m *JobManager) Get(id string) (Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Cancel stops a running job. It reports false for unknown or finished jobs.
func (m *JobManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || !j.active() {
		return false
	}
	j.cancel()
	j.Status = JobStatusCancelled
	j.CompletedAt = time.Now().UTC()
	return true
}

// CancelAll stops every running job and waits until they have returned or ctx ends
func (m *JobManager) CancelAll(ctx context.Context) {
	m.mu.Lock()
	var waiting []chan struct{}
	for _, j := range m.jobs {
		if j.active() {
			j.cancel()
			j.Status = JobStatusCancelled
			j.CompletedAt = time.Now().UTC()
		}
		waiting = append(waiting, j.done)
	}
	m.mu.Unlock()

	for _, done := range waiting {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until the job with id has returned or ctx ends
func (m *JobManager) Wait(ctx context.Context, id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
