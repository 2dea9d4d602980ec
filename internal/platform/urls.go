package platform

import (
	"net/url"
	"regexp"
	"strings"
)

// URL detection
var (
	urlPattern = regexp.MustCompile(`https?://[^\s<>"]+`)

	// punctuation that commonly trails a pasted link in chat text
	trailingPunctuation = ".,;:!?)]}'\""
)

// ExtractURL returns the first http(s) URL found in text, or "" if none
func ExtractURL(text string) string {
	for _, candidate := range urlPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, trailingPunctuation)
		if IsValidURL(candidate) {
			return candidate
		}
	}
	return ""
}

// IsValidURL checks if raw is an absolute http(s) URL with a host
func IsValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
