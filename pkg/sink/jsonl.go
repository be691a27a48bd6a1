package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// JSONLSink appends one JSON object per record to a file
type JSONLSink struct {
	log  *logrus.Entry
	path string

	mu   sync.Mutex
	file *os.File
}

// NewJSONLSink opens path for writing. In resume mode the file is appended
// to, otherwise it is truncated.
func NewJSONLSink(path string, resume bool, logger *logrus.Entry) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create output directory for '%s': %w", utils.ErrFilesystem, path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		logger.Infof("Resume mode: Appending to records file: %s", path)
		flags |= os.O_APPEND
	} else {
		logger.Infof("Non-resume mode: Truncating records file: %s", path)
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: open records file '%s': %w", utils.ErrFilesystem, path, err)
	}
	return &JSONLSink{log: logger.WithField("sink", "jsonl"), path: path, file: file}, nil
}

// Push implements RecordSink
func (s *JSONLSink) Push(_ context.Context, rec models.ProductRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: JSON encoding record for '%s': %w", utils.ErrParsing, rec.RequestURL, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("%w: records file '%s' is closed", utils.ErrFilesystem, s.path)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: write records file '%s': %w", utils.ErrFilesystem, s.path, err)
	}
	return nil
}

// Close syncs and closes the file; closing twice is a no-op
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	s.log.Infof("Syncing and closing records file: %s", s.path)
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	if syncErr != nil {
		return fmt.Errorf("%w: sync records file: %w", utils.ErrFilesystem, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: close records file: %w", utils.ErrFilesystem, closeErr)
	}
	return nil
}
