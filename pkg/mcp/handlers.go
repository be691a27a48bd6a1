package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/catalog-scraper/catalog-scraper/pkg/extract"
	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/parse"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 100
)

var errEnough = errors.New("enough results")

func (s *Server) handleClassifyURL(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL := request.GetString("url", "")
	if !parse.IsValidURL(rawURL) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid url %q", rawURL)), nil
	}

	res, err := s.backend.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed (%s): %v", utils.CategorizeError(err), err)), nil
	}
	result, dispatchErr := s.backend.Dispatcher.Dispatch(ctx, res)

	out := map[string]any{
		"url":        rawURL,
		"handler":    result.Handler.String(),
		"follow_ups": result.FollowUps,
		"records":    result.Records,
	}
	if dispatchErr != nil {
		out["error"] = dispatchErr.Error()
		out["error_category"] = utils.CategorizeError(dispatchErr)
	}
	return mcp.NewToolResultText(formatJSON(out)), nil
}

func (s *Server) handleSearchProducts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := strings.ToLower(strings.TrimSpace(request.GetString("query", "")))
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	maxResults := request.GetInt("max_results", defaultMaxResults)
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	maxResults = min(maxResults, maxMaxResults)

	matches := make([]map[string]any, 0)
	err := s.backend.Records.ForEachRecord(ctx, func(key string, entry models.RecordDBEntry) error {
		field, ok := matchRecord(entry.Record, query)
		if !ok {
			return nil
		}
		matches = append(matches, productSummary(key, entry, field))
		if len(matches) >= maxResults {
			return errEnough
		}
		return nil
	})
	if err != nil && !errors.Is(err, errEnough) {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(map[string]any{
		"query":   query,
		"results": matches,
		"count":   len(matches),
	})), nil
}

func (s *Server) handleGetProduct(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := request.GetString("key", "")
	if key == "" {
		return mcp.NewToolResultError("key parameter is required"), nil
	}
	entry, found, err := s.backend.Records.GetRecord(key)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if !found {
		return mcp.NewToolResultError(fmt.Sprintf("product '%s' not found", key)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"key":         key,
		"captures":    entry.Captures,
		"fingerprint": entry.Fingerprint,
		"record":      entry.Record,
	})), nil
}

func (s *Server) handleStartCrawl(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	job, started := s.jobs.Start(s.backend.Crawl)
	msg := "Crawl started"
	if !started {
		msg = "A crawl is already running"
	} else {
		s.log.WithField("job_id", job.ID).Info("Started crawl job")
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": msg,
	})), nil
}

func (s *Server) handleGetJobStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	job, ok := s.jobs.Get(jobID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}
	b, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleCancelJob(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if !s.jobs.Cancel(jobID) {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' is not running", jobID)), nil
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{"job_id": jobID, "status": JobStatusCancelled})), nil
}

// matchRecord reports the first searchable field of rec containing query (lower case)
func matchRecord(rec models.ProductRecord, query string) (string, bool) {
	fields := []struct {
		name  string
		value any
	}{
		{"id", rec.ID},
		{"ean", rec.EAN},
		{"name", rec.Name},
		{"brand", rec.Brand},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		if strings.Contains(strings.ToLower(extract.ScalarString(f.value)), query) {
			return f.name, true
		}
	}
	for _, c := range rec.Categories {
		if strings.Contains(strings.ToLower(c), query) {
			return "categories", true
		}
	}
	return "", false
}

func productSummary(key string, entry models.RecordDBEntry, matched string) map[string]any {
	rec := entry.Record
	return map[string]any{
		"key":           key,
		"id":            rec.ID,
		"name":          rec.Name,
		"brand":         rec.Brand,
		"regular_price": rec.Pricing.RegularPrice.Value,
		"promo_price":   rec.Pricing.PromoPrice.Value,
		"captured_at":   rec.CapturedAt.ISOInstant,
		"captures":      entry.Captures,
		"matched":       matched,
	}
}

func formatJSON(data map[string]any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
