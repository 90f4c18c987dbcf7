package site

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"brightfold/email"
	"brightfold/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.BlogPost{}, &models.CaseStudy{})
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	siteModule := NewSiteModule(db, email.NewEmailService())
	siteModule.RegisterRoutes(router)
	return router
}

func TestRenderMarkdown(t *testing.T) {
	html := renderMarkdown("# Heading\n\nSome **bold** text.")
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<strong>bold</strong>")
}

func TestSitemap_OnlyPublishedPosts(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)

	now := time.Now()
	db.Create(&models.BlogPost{Title: "Live", Slug: "live-post", Status: models.PostPublished, PublishedAt: &now})
	db.Create(&models.BlogPost{Title: "Draft", Slug: "draft-post", Status: models.PostDraft})
	db.Create(&models.CaseStudy{Title: "Acme", Slug: "acme"})

	req, _ := http.NewRequest("GET", "/sitemap.xml", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")

	body := w.Body.String()
	assert.Contains(t, body, "/blog/live-post")
	assert.NotContains(t, body, "/blog/draft-post")
	assert.Contains(t, body, "/case-studies/acme")
	assert.Contains(t, body, "<urlset")
}

func TestContactPost_Validation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)

	send := func(payload map[string]string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(payload)
		req, _ := http.NewRequest("POST", "/contact", strings.NewReader(string(body)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := send(map[string]string{"name": "", "email": "a@b.co", "message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(map[string]string{"name": "Sam", "email": "not-an-email", "message": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Mail delivery is a no-op when SMTP is not configured, so a valid
	// submission succeeds in tests.
	w = send(map[string]string{"name": "Sam", "email": "sam@example.com", "message": "Hello there"})
	assert.Equal(t, http.StatusOK, w.Code)
}
