package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/catalog-scraper/catalog-scraper/pkg/classify"
	"github.com/catalog-scraper/catalog-scraper/pkg/fetch"
	"github.com/catalog-scraper/catalog-scraper/pkg/record"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// newClassifyCmd runs a saved page or JSON document through the dispatcher
// and prints the handler result. Useful when the site markup changes.
func newClassifyCmd(logger loggerFunc) *cobra.Command {
	var (
		pageURL     string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify a saved resource offline and print the handler result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger(cmd)
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("%w: reading '%s': %w", utils.ErrFilesystem, args[0], err)
			}

			res, err := fetch.ToResource(pageURL, contentType, body)
			if err != nil {
				return err
			}

			dispatcher := classify.NewDispatcher(record.NewAssembler(time.Now), log)
			result, dispatchErr := dispatcher.Dispatch(cmd.Context(), res)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			return dispatchErr
		},
	}
	cmd.Flags().StringVar(&pageURL, "url", "https://www.kiwoko.pt/", "URL the resource was fetched from, used to resolve relative links")
	cmd.Flags().StringVar(&contentType, "content-type", "text/html; charset=utf-8", "Content-Type of the resource")
	return cmd
}
