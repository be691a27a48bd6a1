package fetch

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/catalog-scraper/catalog-scraper/pkg/models"
	"github.com/catalog-scraper/catalog-scraper/pkg/utils"
)

// IsJSONContentType reports whether a Content-Type header names a JSON body
// (application/json or any +json suffix).
func IsJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// ToResource builds a FetchedResource from a response body.
// JSON content types are decoded into generic values; everything else is parsed as markup,
// transcoding to UTF-8 from the declared or sniffed charset.
func ToResource(rawURL, contentType string, body []byte) (*models.FetchedResource, error) {
	if IsJSONContentType(contentType) {
		var v any
		if err := json.Unmarshal(body, &v); err != nil {
			return nil, utils.WrapErrorf(utils.ErrParsing, "JSON body of %s (%v)", rawURL, err)
		}
		return &models.FetchedResource{URL: rawURL, Kind: models.KindJSON, JSON: v}, nil
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "HTML charset of %s (%v)", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, utils.WrapErrorf(utils.ErrParsing, "HTML body of %s (%v)", rawURL, err)
	}
	return &models.FetchedResource{URL: rawURL, Kind: models.KindMarkup, Doc: doc}, nil
}
