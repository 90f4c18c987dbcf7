package cache

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// cachedSections are the public page prefixes whose rendered HTML is cached.
var cachedSections = map[string]bool{
	"blog":         true,
	"case-studies": true,
}

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// CacheMiddleware serves cached copies of public content pages and captures
// fresh renders on a miss. Only successful HTML GET responses are cached.
func CacheMiddleware(maxAge time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != "GET" {
			c.Next()
			return
		}

		section, slug := extractFromPath(c.Request.URL.Path)
		if section == "" || slug == "" {
			c.Next()
			return
		}

		if cached, found := ReadCache(section, slug, maxAge); found {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}

		c.Header("X-Cache", "MISS")

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer

		c.Next()

		if c.Writer.Status() == http.StatusOK &&
			c.Writer.Header().Get("Content-Type") == "text/html; charset=utf-8" {
			WriteCache(section, slug, writer.body.String())
		}
	}
}

// extractFromPath maps /blog/some-slug to ("blog", "some-slug"). Anything
// outside the cached sections, including section index pages, returns empty.
func extractFromPath(path string) (section, slug string) {
	parts := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(parts) != 2 {
		return "", ""
	}
	if !cachedSections[parts[0]] {
		return "", ""
	}
	return parts[0], parts[1]
}
