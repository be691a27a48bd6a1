package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const stateFileName = "watch_state.json"

// RunState is the outcome of the last scheduled crawl
type RunState struct {
	LastRunTime      time.Time `json:"last_run_time"`
	LastRunID        string    `json:"last_run_id,omitempty"`
	Success          bool      `json:"success"`
	ResourcesHandled int64     `json:"resources_handled"`
	RecordsPushed    int64     `json:"records_pushed"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	Runs             int       `json:"runs"`
}

// StateManager persists the last run below the state directory
type StateManager struct {
	stateDir  string
	statePath string
	mu        sync.RWMutex
	state     RunState
	known     bool
}

// NewStateManager creates a manager for stateDir; nothing is read until Load
func NewStateManager(stateDir string) *StateManager {
	return &StateManager{
		stateDir:  stateDir,
		statePath: filepath.Join(stateDir, stateFileName),
	}
}

// Load reads the state file. A missing file is not an error.
func (m *StateManager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.statePath)
	if errors.Is(err, os.ErrNotExist) {
		m.state, m.known = RunState{}, false
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading watch state: %w", utils.ErrFilesystem, err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("%w: decoding watch state: %w", utils.ErrParsing, err)
	}
	m.state, m.known = st, true
	return nil
}

// Save writes the state file
func (m *StateManager) Save() error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.state, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: encoding watch state: %w", utils.ErrParsing, err)
	}

	if err := os.MkdirAll(m.stateDir, 0755); err != nil {
		return fmt.Errorf("%w: creating state directory: %w", utils.ErrFilesystem, err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("%w: writing watch state: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// Record stores the outcome of a run that finished at finishedAt
func (m *StateManager) Record(summary *models.CrawlSummary, runErr error, finishedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := RunState{LastRunTime: finishedAt, Success: runErr == nil, Runs: m.state.Runs + 1}
	if summary != nil {
		st.LastRunID = summary.RunID
		st.ResourcesHandled = summary.ResourcesHandled
		st.RecordsPushed = summary.RecordsPushed
	}
	if runErr != nil {
		st.ErrorMessage = runErr.Error()
	}
	m.state, m.known = st, true
}

// Last returns the last recorded run, if any
func (m *StateManager) Last() (RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.known
}

// NextRun is the last run time plus interval, or now when nothing ran yet
func (m *StateManager) NextRun(interval time.Duration, now time.Time) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.known {
		return now
	}
	return m.state.LastRunTime.Add(interval)
}
