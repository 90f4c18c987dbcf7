package blog

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"brightfold/analytics"
	"brightfold/live"
	"brightfold/models"
)

const excerptLength = 160

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	wsRe    = regexp.MustCompile(`\s+`)
)

type BlogModule struct {
	db        *gorm.DB
	store     *live.GormStore
	analytics *analytics.AnalyticsModule
}

func NewBlogModule(db *gorm.DB, store *live.GormStore, analyticsModule *analytics.AnalyticsModule) *BlogModule {
	return &BlogModule{db: db, store: store, analytics: analyticsModule}
}

func (b *BlogModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/blog", b.index)
	router.GET("/blog/:slug", b.post)

	api := router.Group("/api/blog")
	{
		api.POST("/:slug/like", b.likePost)
		api.GET("/:slug/comments", b.listComments)
		api.POST("/:slug/comments", b.createComment)
		api.POST("/:slug/comments/:commentId/like", b.likeComment)
	}
	router.POST("/api/newsletter/subscribe", b.subscribeNewsletter)
}

// PostSummary is a published post reduced to what the listing page shows.
type PostSummary struct {
	ID           int        `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Excerpt      string     `json:"excerpt"`
	Tone         string     `json:"tone"`
	WordCount    int        `json:"word_count"`
	Likes        int        `json:"likes"`
	CommentCount int64      `json:"comment_count"`
	ViewCount    int64      `json:"view_count"`
	PublishedAt  *time.Time `json:"published_at"`
}

func (b *BlogModule) index(c *gin.Context) {
	var posts []models.BlogPost
	if err := b.db.Where("status = ?", models.PostPublished).
		Order("published_at DESC").
		Find(&posts).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "blog_error.html", gin.H{
			"error": "Could not load posts",
		})
		return
	}

	summaries := make([]PostSummary, len(posts))
	for i, post := range posts {
		var commentCount int64
		b.db.Model(&models.BlogComment{}).Where("post_id = ?", post.ID).Count(&commentCount)

		viewCount := b.analytics.GetPostViewCount(post.ID)

		summaries[i] = PostSummary{
			ID:           post.ID,
			Title:        post.Title,
			Slug:         post.Slug,
			Excerpt:      excerpt(post.Content),
			Tone:         post.Tone,
			WordCount:    post.WordCount,
			Likes:        post.Likes,
			CommentCount: commentCount,
			ViewCount:    viewCount,
			PublishedAt:  post.PublishedAt,
		}
	}

	c.HTML(http.StatusOK, "blog_index.html", gin.H{
		"posts": summaries,
	})
}

func (b *BlogModule) post(c *gin.Context) {
	post, ok := b.publishedPost(c)
	if !ok {
		return
	}

	b.analytics.TrackView(c, post.ID)

	var comments []models.BlogComment
	b.db.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&comments)

	var images []string
	if post.Images != "" {
		json.Unmarshal([]byte(post.Images), &images)
	}

	c.HTML(http.StatusOK, "blog_post.html", gin.H{
		"post":        post,
		"contentHTML": template.HTML(post.Content),
		"images":      images,
		"comments":    comments,
	})
}

func (b *BlogModule) likePost(c *gin.Context) {
	post, ok := b.publishedPost(c)
	if !ok {
		return
	}

	if err := b.db.Model(&models.BlogPost{}).Where("id = ?", post.ID).
		UpdateColumn("likes", gorm.Expr("likes + 1")).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not record like"})
		return
	}
	b.store.Touch("blog_posts")

	c.JSON(http.StatusOK, gin.H{"likes": post.Likes + 1})
}

func (b *BlogModule) listComments(c *gin.Context) {
	post, ok := b.publishedPost(c)
	if !ok {
		return
	}

	var comments []models.BlogComment
	if err := b.db.Where("post_id = ?", post.ID).Order("created_at ASC").Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (b *BlogModule) createComment(c *gin.Context) {
	post, ok := b.publishedPost(c)
	if !ok {
		return
	}

	var request struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name and comment are required"})
		return
	}
	if request.Email != "" && !emailRe.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid email"})
		return
	}

	comment := models.BlogComment{
		ID:        uuid.NewString(),
		PostID:    post.ID,
		Name:      strings.TrimSpace(request.Name),
		Email:     request.Email,
		Content:   strings.TrimSpace(request.Content),
		Avatar:    avatarURL(request.Email, request.Name),
		CreatedAt: time.Now(),
	}
	if err := b.db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save comment"})
		return
	}
	b.store.Touch("blog_comments")

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (b *BlogModule) likeComment(c *gin.Context) {
	if _, ok := b.publishedPost(c); !ok {
		return
	}
	commentID := c.Param("commentId")

	res := b.db.Model(&models.BlogComment{}).Where("id = ?", commentID).
		UpdateColumn("likes", gorm.Expr("likes + 1"))
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not record like"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	}
	b.store.Touch("blog_comments")

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (b *BlogModule) subscribeNewsletter(c *gin.Context) {
	var request struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || !emailRe.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Please provide a valid email"})
		return
	}

	subscriber := models.NewsletterSubscriber{Email: strings.ToLower(request.Email), CreatedAt: time.Now()}
	if err := b.db.Create(&subscriber).Error; err != nil {
		// The unique index makes a repeat subscription a conflict at the
		// database level; subscribing twice should still read as success.
		var existing models.NewsletterSubscriber
		if b.db.Where("email = ?", subscriber.Email).First(&existing).Error == nil {
			c.JSON(http.StatusOK, gin.H{"subscribed": true})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not subscribe"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subscribed": true})
}

// publishedPost resolves the :slug param to a published post, writing the
// error response itself on failure. Drafts are invisible to the public site.
func (b *BlogModule) publishedPost(c *gin.Context) (*models.BlogPost, bool) {
	slug := c.Param("slug")

	var post models.BlogPost
	err := b.db.Where("slug = ? AND status = ?", slug, models.PostPublished).First(&post).Error
	if err != nil {
		if strings.HasPrefix(c.FullPath(), "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		} else {
			c.HTML(http.StatusNotFound, "blog_error.html", gin.H{
				"error": "Post not found",
			})
		}
		return nil, false
	}
	return &post, true
}

// excerpt strips markup from generated post HTML and truncates on a word
// boundary for the listing page.
func excerpt(content string) string {
	text := tagRe.ReplaceAllString(content, " ")
	text = strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
	if len(text) <= excerptLength {
		return text
	}

	cut := text[:excerptLength]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// avatarURL derives a stable identicon for a commenter. Email wins when
// given so the same person gets the same avatar across posts.
func avatarURL(email, name string) string {
	seed := strings.ToLower(strings.TrimSpace(email))
	if seed == "" {
		seed = strings.ToLower(strings.TrimSpace(name))
	}
	return fmt.Sprintf("https://www.gravatar.com/avatar/%016x?d=identicon", xxhash.Sum64String(seed))
}
