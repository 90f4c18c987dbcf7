package cache

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	old, _ := os.Getwd()
	os.Chdir(dir)
	t.Cleanup(func() { os.Chdir(old) })
}

func TestExtractFromPath(t *testing.T) {
	tests := []struct {
		path    string
		section string
		slug    string
	}{
		{"/blog/my-post", "blog", "my-post"},
		{"/case-studies/acme", "case-studies", "acme"},
		{"/blog", "", ""},
		{"/blog/", "", ""},
		{"/admin/post/3", "", ""},
		{"/api/blog/my-post/like", "", ""},
		{"/", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			section, slug := extractFromPath(tt.path)
			assert.Equal(t, tt.section, section)
			assert.Equal(t, tt.slug, slug)
		})
	}
}

func TestWriteReadClearCache(t *testing.T) {
	chdirTemp(t)

	assert.NoError(t, WriteCache("blog", "my-post", "<html>cached</html>"))

	content, found := ReadCache("blog", "my-post", time.Minute)
	assert.True(t, found)
	assert.Equal(t, "<html>cached</html>", content)

	assert.NoError(t, ClearCache("blog", "my-post"))
	_, found = ReadCache("blog", "my-post", time.Minute)
	assert.False(t, found)

	// Clearing a missing entry is not an error.
	assert.NoError(t, ClearCache("blog", "never-cached"))
}

func TestReadCache_Expired(t *testing.T) {
	chdirTemp(t)

	WriteCache("blog", "old-post", "<html>stale</html>")
	stale := time.Now().Add(-2 * time.Hour)
	os.Chtimes(GetCachePath("blog", "old-post"), stale, stale)

	_, found := ReadCache("blog", "old-post", time.Hour)
	assert.False(t, found)

	// ClearOldCache removes it for good.
	assert.NoError(t, ClearOldCache(time.Hour))
	_, err := os.Stat(GetCachePath("blog", "old-post"))
	assert.True(t, os.IsNotExist(err))
}

func TestClearCacheBySlugs_RemovesStaleVariants(t *testing.T) {
	chdirTemp(t)

	WriteCache("blog", "old-slug", "<html>a</html>")
	WriteCache("blog", "new-slug", "<html>b</html>")

	assert.NoError(t, ClearCacheBySlugs("blog", "old-slug", "new-slug", ""))

	_, foundOld := ReadCache("blog", "old-slug", time.Minute)
	_, foundNew := ReadCache("blog", "new-slug", time.Minute)
	assert.False(t, foundOld)
	assert.False(t, foundNew)
}

func TestCacheMiddleware(t *testing.T) {
	chdirTemp(t)
	gin.SetMode(gin.TestMode)

	hits := 0
	router := gin.New()
	router.Use(CacheMiddleware(time.Minute))
	router.GET("/blog/:slug", func(c *gin.Context) {
		hits++
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte("<html>rendered</html>"))
	})

	req, _ := http.NewRequest("GET", "/blog/my-post", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, 1, hits)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, "<html>rendered</html>", w.Body.String())
	assert.Equal(t, 1, hits)
}

func TestCacheMiddleware_SkipsNonContentPaths(t *testing.T) {
	chdirTemp(t)
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(CacheMiddleware(time.Minute))
	router.GET("/api/blog/:slug/comments", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"comments": []string{}})
	})

	req, _ := http.NewRequest("GET", "/api/blog/my-post/comments", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("X-Cache"))
}
