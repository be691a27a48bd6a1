package watch

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"30s", 30 * time.Second, false},
		{"5m", 5 * time.Minute, false},
		{"24h", 24 * time.Hour, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"1d12h", 36 * time.Hour, false},
		{"2d6h", 54 * time.Hour, false},
		{"5x", 0, true},
		{"1dfoo", 0, true},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseInterval(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, utils.ErrConfigValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFormatInterval(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{time.Hour, "1h"},
		{90 * time.Minute, "1h30m"},
		{24 * time.Hour, "1d"},
		{36 * time.Hour, "1d12h"},
		{7 * 24 * time.Hour, "7d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatInterval(tt.input), tt.input.String())
	}
}

func TestStateManager_SaveLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	m := NewStateManager(dir)
	require.NoError(t, m.Load(), "missing file is not an error")
	_, ok := m.Last()
	assert.False(t, ok)

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, now, m.NextRun(time.Hour, now))

	m.Record(&models.CrawlSummary{RunID: "r1", ResourcesHandled: 12, RecordsPushed: 4}, nil, now)
	require.NoError(t, m.Save())

	loaded := NewStateManager(dir)
	require.NoError(t, loaded.Load())
	st, ok := loaded.Last()
	require.True(t, ok)
	assert.Equal(t, "r1", st.LastRunID)
	assert.True(t, st.Success)
	assert.Equal(t, int64(4), st.RecordsPushed)
	assert.Equal(t, 1, st.Runs)
	assert.True(t, now.Add(time.Hour).Equal(loaded.NextRun(time.Hour, now)))

	loaded.Record(nil, errors.New("boom"), now.Add(time.Hour))
	st, _ = loaded.Last()
	assert.False(t, st.Success)
	assert.Equal(t, "boom", st.ErrorMessage)
	assert.Equal(t, 2, st.Runs)
}

func TestStateManager_LoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, stateFileName), []byte("{not json"), 0644))
	assert.ErrorIs(t, NewStateManager(dir).Load(), utils.ErrParsing)
}

func TestScheduler_RunsImmediatelyThenEveryInterval(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(t.TempDir(), 20*time.Millisecond, func(ctx context.Context) (*models.CrawlSummary, error) {
		if runs.Add(1) == 3 {
			cancel()
			return &models.CrawlSummary{RunID: "x"}, ctx.Err()
		}
		return &models.CrawlSummary{RunID: "x"}, nil
	}, testLogger())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(3), runs.Load())

	st, ok := s.State().Last()
	require.True(t, ok)
	assert.Equal(t, 2, st.Runs, "the interrupted third run is not recorded")
}

func TestScheduler_WaitsForRemainingInterval(t *testing.T) {
	dir := t.TempDir()
	m := NewStateManager(dir)
	m.Record(&models.CrawlSummary{}, nil, time.Now())
	require.NoError(t, m.Save())

	var runs atomic.Int32
	s := NewScheduler(dir, time.Hour, func(context.Context) (*models.CrawlSummary, error) {
		runs.Add(1)
		return &models.CrawlSummary{}, nil
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, runs.Load())
}

func TestScheduler_RecordsFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dir := t.TempDir()

	s := NewScheduler(dir, time.Hour, func(context.Context) (*models.CrawlSummary, error) {
		defer cancel()
		return &models.CrawlSummary{RunID: "bad"}, utils.ErrSeedFetch
	}, testLogger())
	require.NoError(t, s.Run(ctx))

	loaded := NewStateManager(dir)
	require.NoError(t, loaded.Load())
	st, ok := loaded.Last()
	require.True(t, ok)
	assert.False(t, st.Success)
	assert.Equal(t, "bad", st.LastRunID)
}

func TestScheduler_RejectsZeroInterval(t *testing.T) {
	s := NewScheduler(t.TempDir(), 0, nil, testLogger())
	assert.ErrorIs(t, s.Run(context.Background()), utils.ErrConfigValidation)
}
