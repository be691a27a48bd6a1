package extract

import (
	"regexp"
	"strings"
)

// SectionRule pulls the text that follows Label up to, but not including, End.
// Only the first occurrence of Label is considered.
type SectionRule struct {
	Label string
	End   string
}

// Find returns the trimmed section text, or false when Label is absent or no End follows it
func (r SectionRule) Find(text string) (string, bool) {
	start := strings.Index(text, r.Label)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(r.Label):]
	end := strings.Index(rest, r.End)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

var (
	ingredientsRule = SectionRule{Label: "Ingredientes:", End: "</p>"}
	analyticalRule  = SectionRule{Label: "Componentes analíticos:", End: "</p>"}

	// Heading, optional whitespace, then the list body
	featuresBlockRe = regexp.MustCompile(`(?s)<strong>Características:</strong></p>\s*<ul>(.*?)</ul>`)
	// Items do not span lines
	featureItemRe = regexp.MustCompile(`<li>(.*?)</li>`)
)

// Ingredients returns the ingredient list paragraph of a long description, or nil
func Ingredients(text string) *string {
	return sectionPtr(ingredientsRule, text)
}

// AnalyticalComponents returns the analytical components paragraph of a long description, or nil
func AnalyticalComponents(text string) *string {
	return sectionPtr(analyticalRule, text)
}

func sectionPtr(rule SectionRule, text string) *string {
	s, ok := rule.Find(text)
	if !ok {
		return nil
	}
	return &s
}

// KeyFeatures returns the trimmed items of the features list.
// The result is nil when the heading is missing and empty when the list has no items.
func KeyFeatures(text string) []string {
	block := featuresBlockRe.FindStringSubmatch(text)
	if block == nil {
		return nil
	}
	items := featureItemRe.FindAllStringSubmatch(block[1], -1)
	features := make([]string, 0, len(items))
	for _, item := range items {
		features = append(features, strings.TrimSpace(item[1]))
	}
	return features
}
