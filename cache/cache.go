package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// GetCachePath returns the cache file path for a rendered page. Pages are
// keyed by section (blog, case-studies) and slug; the hash keeps two slugs
// that collide after filesystem normalization apart.
func GetCachePath(section, slug string) string {
	hash := generateHash(section + slug)
	shortHash := hash[:16]
	cacheDir := filepath.Join("cache", section)
	return filepath.Join(cacheDir, fmt.Sprintf("%s_%s.html", slug, shortHash))
}

func generateHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// EnsureCacheDir ensures the cache directory for a section exists
func EnsureCacheDir(section string) error {
	cacheDir := filepath.Join("cache", section)
	return os.MkdirAll(cacheDir, 0755)
}

// WriteCache writes rendered HTML to the cache file
func WriteCache(section, slug, html string) error {
	if err := EnsureCacheDir(section); err != nil {
		return err
	}

	cachePath := GetCachePath(section, slug)
	return os.WriteFile(cachePath, []byte(html), 0644)
}

// ReadCache reads cached HTML if it exists and is not expired
func ReadCache(section, slug string, maxAge time.Duration) (string, bool) {
	cachePath := GetCachePath(section, slug)

	info, err := os.Stat(cachePath)
	if err != nil {
		return "", false
	}

	if time.Since(info.ModTime()) > maxAge {
		return "", false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return "", false
	}

	return string(content), true
}

// ClearCache removes a specific cache file. A missing file is not an error.
func ClearCache(section, slug string) error {
	cachePath := GetCachePath(section, slug)
	err := os.Remove(cachePath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearCacheBySlugs removes cache files for the given slugs, including stale
// entries left behind by an earlier slug for the same page.
func ClearCacheBySlugs(section string, slugs ...string) error {
	cacheDir := filepath.Join("cache", section)

	for _, slug := range slugs {
		if slug == "" {
			continue
		}

		if err := ClearCache(section, slug); err != nil {
			return err
		}

		pattern := filepath.Join(cacheDir, slug+"_*.html")
		matches, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}

		for _, match := range matches {
			os.Remove(match)
		}
	}

	return nil
}

// ClearSectionCache removes every cached page in a section
func ClearSectionCache(section string) error {
	return os.RemoveAll(filepath.Join("cache", section))
}

// ClearOldCache removes cache files older than maxAge. Runs on a schedule so
// unpopular pages do not pin stale HTML forever.
func ClearOldCache(maxAge time.Duration) error {
	cacheRoot := "cache"

	if _, err := os.Stat(cacheRoot); os.IsNotExist(err) {
		return nil
	}

	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		if !strings.HasSuffix(path, ".html") {
			return nil
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
