package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps safe formatting markup in user generated content.
func Sanitize(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}

// StripTags removes all markup; used for titles and single-line profile fields.
func StripTags(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}
