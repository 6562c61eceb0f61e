package textutil

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var descriptionPolicy = newDescriptionPolicy()

func newDescriptionPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	return policy
}

// SanitizeHTML strips scripts, event handlers and other unsafe markup from rich text descriptions.
func SanitizeHTML(value string) string {
	return strings.TrimSpace(descriptionPolicy.Sanitize(value))
}
