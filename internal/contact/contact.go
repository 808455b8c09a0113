package contact

import (
	"regexp"
	"strings"
)

// Record is one validated candidate contact extracted from a CSV line.
// Records failing required-field validation never leave the parser.
type Record struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	LinkedInURL string `json:"linkedin_url"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmail checks the general local@domain shape with a dotted domain.
func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// CleanLinkedInURL trims, drops tracking query parameters and ensures an
// https:// scheme. Empty input stays empty.
func CleanLinkedInURL(raw string) string {
	url := strings.TrimSpace(raw)
	if url == "" {
		return ""
	}
	if i := strings.Index(url, "?"); i >= 0 {
		url = url[:i]
	}
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	return url
}

// ValidLinkedInURL requires an http(s) scheme and a linkedin.com host part.
func ValidLinkedInURL(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	return strings.Contains(strings.ToLower(url), "linkedin.com")
}

// GivenName returns the explicit first name or the first word of the full name.
func (r Record) GivenName() string {
	if r.FirstName != "" {
		return r.FirstName
	}
	parts := strings.Fields(r.Name)
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// FamilyName returns the explicit last name or the remainder of the full name.
func (r Record) FamilyName() string {
	if r.LastName != "" {
		return r.LastName
	}
	parts := strings.Fields(r.Name)
	if len(parts) > 1 {
		return strings.Join(parts[1:], " ")
	}
	return ""
}
