package validation

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/paywallio/paywalld/internal/models"
)

const MaxPaywallIDLength = 64

var paywallIDRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)

// NormalizePaywallID lowercases and trims a creator supplied id.
func NormalizePaywallID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// ValidatePaywallID checks an already normalized paywall id.
func ValidatePaywallID(id string) error {
	if id == "" {
		return models.NewError(models.CodeInvalidRequest, "paywall id cannot be empty")
	}
	if len(id) > MaxPaywallIDLength {
		return models.NewError(models.CodeInvalidRequest, "paywall id must be at most %d characters", MaxPaywallIDLength)
	}
	if !paywallIDRegex.MatchString(id) {
		return models.NewError(models.CodeInvalidRequest, "paywall id may only contain letters, numbers, hyphens and underscores")
	}
	return nil
}

// ValidateContentURL accepts absolute http and https URLs only.
func ValidateContentURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return models.NewError(models.CodeInvalidRequest, "url must be an absolute http or https URL")
	}
	return nil
}
