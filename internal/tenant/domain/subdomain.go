package domain

import (
	"strings"

	"github.com/gosimple/slug"
)

const (
	SubdomainMinLength = 3
	SubdomainMaxLength = 20
)

// ValidateSubdomain reports whether value is a legal tenant subdomain:
// 3 to 20 characters of [a-z0-9-] with no leading, trailing or doubled hyphen.
func ValidateSubdomain(value string) error {
	if len(value) < SubdomainMinLength || len(value) > SubdomainMaxLength {
		return ErrInvalidSubdomain
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return ErrInvalidSubdomain
		}
	}
	if strings.HasPrefix(value, "-") || strings.HasSuffix(value, "-") || strings.Contains(value, "--") {
		return ErrInvalidSubdomain
	}
	return nil
}

// SuggestSubdomain derives a subdomain candidate from a tenant name.
func SuggestSubdomain(name string) string {
	candidate := slug.Make(name)
	if len(candidate) > SubdomainMaxLength {
		candidate = strings.TrimRight(candidate[:SubdomainMaxLength], "-")
	}
	return candidate
}
