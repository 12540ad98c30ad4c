package application

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var plainText = bluemonday.StrictPolicy()

// sanitizeText strips markup from user supplied free text and trims it.
// Entities produced by the policy are decoded again since values are
// served as JSON, not HTML.
func sanitizeText(value string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(value)))
}
