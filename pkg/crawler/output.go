package crawler

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// WriteSummary writes the crawl summary as YAML to path, creating parent directories
func WriteSummary(path string, summary *models.CrawlSummary, log *logrus.Entry) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating summary dir '%s': %w", utils.ErrFilesystem, dir, err)
		}
	}

	yamlData, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: YAML encoding of crawl summary: %w", utils.ErrParsing, err)
	}
	if err := os.WriteFile(path, yamlData, 0644); err != nil {
		log.Errorf("Failed to write summary YAML file '%s': %v", path, err)
		return fmt.Errorf("%w: writing summary '%s': %w", utils.ErrFilesystem, path, err)
	}

	log.Infof("Wrote crawl summary (%d records) to %s", summary.RecordsPushed, path)
	return nil
}
