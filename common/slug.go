package common

import (
	"fmt"
	"strings"
)

// Slugify converts a title into a URL slug: lowercase, characters outside
// [a-z0-9 -] stripped, whitespace runs collapsed to a single hyphen, hyphen
// runs collapsed, leading/trailing hyphens trimmed.
func Slugify(title string) string {
	slug := strings.ToLower(title)

	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r == ' ' || r == '\t' || r == '\n' {
			return '-'
		}
		return -1
	}, slug)

	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}

	return strings.Trim(slug, "-")
}

// UniqueSlug returns Slugify(title), disambiguated against existing slugs by
// appending -1, -2, ... until the result is unused.
func UniqueSlug(title string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s] = true
	}

	slug := Slugify(title)
	if !taken[slug] {
		return slug
	}

	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", slug, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
