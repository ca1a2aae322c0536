// Package domain holds validation rules shared across the ingestion and
// query paths.
package domain

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pagesift/pagesift/engine/scraper"
)

// Injection patterns that should never appear in a user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

// Tenant IDs: lowercase slug or UUID-ish, nothing that needs escaping downstream.
var tenantRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

const minQueryLength = 3

// ValidateTargetURL checks a URL before it is handed to the scraper.
// Only absolute http and https URLs with a host are accepted.
func ValidateTargetURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return NewValidationError("url", raw, ErrInvalidURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewValidationError("url", raw, ErrInvalidScheme)
	}
	if u.Host == "" {
		return NewValidationError("url", raw, ErrMissingHost)
	}
	return nil
}

// ValidateTenantID checks a tenant identifier before it is used as a
// payload filter value.
func ValidateTenantID(id string) error {
	if !tenantRegex.MatchString(id) {
		return NewValidationError("tenant_id", id, ErrInvalidTenant)
	}
	return nil
}

// ValidateScrapeResult checks a successful scrape before ingestion. Failed
// scrapes are handled upstream; passing one here is a programming error
// and reports empty content.
func ValidateScrapeResult(res scraper.ScrapeResult) error {
	if err := ValidateTargetURL(res.URL); err != nil {
		return err
	}
	if strings.TrimSpace(res.Text) == "" {
		return NewValidationError("all_text", res.URL, ErrEmptyContent)
	}
	return nil
}

// ValidateQuery validates a search query.
func ValidateQuery(text string) error {
	text = strings.TrimSpace(text)

	if utf8.RuneCountInString(text) < minQueryLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	return nil
}
