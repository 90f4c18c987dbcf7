package site

import (
	"bytes"
	"html/template"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"brightfold/email"
	"brightfold/models"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough in Markdown
	),
)

type SiteModule struct {
	db    *gorm.DB
	email *email.EmailService
}

func NewSiteModule(db *gorm.DB, emailService *email.EmailService) *SiteModule {
	return &SiteModule{db: db, email: emailService}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/case-studies", s.listCaseStudies)
	router.GET("/case-studies/:slug", s.caseStudy)
	router.GET("/contact", s.contactPage)
	router.POST("/contact", s.contactPost)
	router.GET("/sitemap.xml", s.sitemap)
}

func siteDomain() string {
	domain := os.Getenv("DOMAIN")
	if domain == "" {
		domain = "http://localhost:8080"
	}
	return strings.TrimSuffix(domain, "/")
}

func (s *SiteModule) index(c *gin.Context) {
	var recent []models.BlogPost
	s.db.Where("status = ?", models.PostPublished).
		Order("published_at DESC").
		Limit(3).
		Find(&recent)

	var featured []models.CaseStudy
	s.db.Order("ordering ASC").Limit(3).Find(&featured)

	c.HTML(http.StatusOK, "site_index.html", gin.H{
		"domain":      siteDomain(),
		"recentPosts": recent,
		"caseStudies": featured,
	})
}

func (s *SiteModule) listCaseStudies(c *gin.Context) {
	var studies []models.CaseStudy
	if err := s.db.Order("ordering ASC, created_at DESC").Find(&studies).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "site_error.html", gin.H{
			"error": "Could not load case studies",
		})
		return
	}

	c.HTML(http.StatusOK, "site_case_studies.html", gin.H{
		"domain":      siteDomain(),
		"caseStudies": studies,
	})
}

func (s *SiteModule) caseStudy(c *gin.Context) {
	slug := c.Param("slug")

	var study models.CaseStudy
	if err := s.db.Where("slug = ?", slug).First(&study).Error; err != nil {
		c.HTML(http.StatusNotFound, "site_error.html", gin.H{
			"error": "Case study not found",
		})
		return
	}

	c.HTML(http.StatusOK, "site_case_study.html", gin.H{
		"domain":   siteDomain(),
		"study":    study,
		"bodyHTML": template.HTML(renderMarkdown(study.Body)),
	})
}

func (s *SiteModule) contactPage(c *gin.Context) {
	c.HTML(http.StatusOK, "site_contact.html", gin.H{
		"domain": siteDomain(),
	})
}

func (s *SiteModule) contactPost(c *gin.Context) {
	var request struct {
		Name    string `json:"name" form:"name"`
		Email   string `json:"email" form:"email"`
		Phone   string `json:"phone" form:"phone"`
		Subject string `json:"subject" form:"subject"`
		Message string `json:"message" form:"message"`
	}
	if err := c.ShouldBind(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and message are required"})
		return
	}
	if !emailRe.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid email"})
		return
	}

	if err := s.email.SendContactEmail(request.Name, request.Email, request.Phone, request.Subject, request.Message); err != nil {
		log.Printf("Error sending contact email: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not send your message, please try again"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (s *SiteModule) sitemap(c *gin.Context) {
	domain := siteDomain()

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	writeURL := func(loc, lastmod, changefreq, priority string) {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + loc + "</loc>\n")
		if lastmod != "" {
			sitemap.WriteString("    <lastmod>" + lastmod + "</lastmod>\n")
		}
		sitemap.WriteString("    <changefreq>" + changefreq + "</changefreq>\n")
		sitemap.WriteString("    <priority>" + priority + "</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	writeURL(domain+"/", "", "weekly", "1.0")
	writeURL(domain+"/blog", "", "daily", "0.8")
	writeURL(domain+"/case-studies", "", "weekly", "0.7")
	writeURL(domain+"/contact", "", "monthly", "0.5")

	var posts []models.BlogPost
	s.db.Where("status = ?", models.PostPublished).Find(&posts)
	for _, post := range posts {
		writeURL(domain+"/blog/"+post.Slug, post.UpdatedAt.Format(time.RFC3339), "monthly", "0.6")
	}

	var studies []models.CaseStudy
	s.db.Find(&studies)
	for _, study := range studies {
		writeURL(domain+"/case-studies/"+study.Slug, study.UpdatedAt.Format(time.RFC3339), "monthly", "0.5")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// Fall back to the raw content rather than break the page.
		return content
	}
	return buf.String()
}
