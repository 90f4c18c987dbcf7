package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"brightfold/cache"
	"brightfold/common"
	"brightfold/generator"
	"brightfold/models"
)

// trackTimeout bounds a single generation job's lifetime on our side. The
// service usually finishes in under a minute; anything past this is stuck.
const trackTimeout = 10 * time.Minute

var tones = []string{"professional", "casual", "technical", "playful"}

func (a *AdminModule) listPosts(c *gin.Context) {
	var posts []models.BlogPost
	if err := a.db.Order("updated_at DESC").Find(&posts).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "admin_error.html", gin.H{
			"error": "Could not load posts",
		})
		return
	}

	c.HTML(http.StatusOK, "admin_posts.html", gin.H{
		"posts": posts,
	})
}

func (a *AdminModule) newPost(c *gin.Context) {
	c.HTML(http.StatusOK, "admin_new_post.html", gin.H{
		"tones": tones,
	})
}

func (a *AdminModule) generatePost(c *gin.Context) {
	var request struct {
		Idea string `json:"idea"`
		Tone string `json:"tone"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Idea) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "An idea is required"})
		return
	}
	if request.Tone == "" {
		request.Tone = tones[0]
	}

	trackingID, err := a.gen.SubmitIdea(request.Idea, request.Tone)
	if err != nil {
		log.Printf("Error submitting idea to generation service: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Generation service is unavailable"})
		return
	}

	job := models.GenerationJob{
		TrackingID: trackingID,
		Status:     models.JobInit,
		Message:    "Queued",
		Idea:       request.Idea,
		Tone:       request.Tone,
	}
	if err := a.db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not record generation job"})
		return
	}
	a.store.Touch("generation_jobs")

	go a.trackJob(trackingID)

	c.JSON(http.StatusAccepted, gin.H{"trackingId": trackingID})
}

// trackJob follows a generation job to completion, mirroring every poll into
// the generation_jobs table so the admin UI can resume after a page reload.
func (a *AdminModule) trackJob(trackingID string) {
	ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
	defer cancel()

	_, err := a.poller.Poll(ctx, trackingID, func(u generator.Update) {
		a.persistJobUpdate(trackingID, u)
	})
	if err != nil {
		log.Printf("Error tracking generation job %s: %v", trackingID, err)
		a.db.Model(&models.GenerationJob{}).Where("tracking_id = ?", trackingID).Updates(map[string]interface{}{
			"status":     models.JobFailed,
			"message":    "Lost contact with the generation service",
			"updated_at": time.Now(),
		})
		a.store.Touch("generation_jobs")
	}
}

func (a *AdminModule) persistJobUpdate(trackingID string, u generator.Update) {
	updates := map[string]interface{}{
		"status":     u.Job.Status,
		"progress":   u.Job.Progress,
		"message":    u.Job.Message,
		"updated_at": time.Now(),
	}
	if u.Job.Title != "" {
		updates["title"] = u.Job.Title
	}
	if u.Job.Content != "" {
		updates["content"] = u.Job.Content
	}
	if len(u.Job.Images) > 0 {
		if encoded, err := json.Marshal(u.Job.Images); err == nil {
			updates["images"] = string(encoded)
		}
	}
	if u.Job.WordCount > 0 {
		updates["word_count"] = u.Job.WordCount
	}
	if u.Job.Rating != nil {
		updates["rating_score"] = u.Job.Rating.Score
		updates["rating_summary"] = u.Job.Rating.Summary
	}

	if err := a.db.Model(&models.GenerationJob{}).Where("tracking_id = ?", trackingID).Updates(updates).Error; err != nil {
		log.Printf("Error persisting generation job %s: %v", trackingID, err)
		return
	}
	a.store.Touch("generation_jobs")
}

func (a *AdminModule) jobStatus(c *gin.Context) {
	trackingID := c.Param("trackingId")

	var job models.GenerationJob
	if err := a.db.Where("tracking_id = ?", trackingID).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": job})
}

func (a *AdminModule) saveDraftFromJob(c *gin.Context) {
	trackingID := c.Param("trackingId")

	var job models.GenerationJob
	if err := a.db.Where("tracking_id = ?", trackingID).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if job.Status != models.JobCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Job has not completed"})
		return
	}

	post := models.BlogPost{
		Title:         job.Title,
		Slug:          common.UniqueSlug(job.Title, a.existingSlugs(0)),
		Content:       job.Content,
		Tone:          job.Tone,
		Status:        models.PostDraft,
		WordCount:     job.WordCount,
		Images:        job.Images,
		RatingScore:   job.RatingScore,
		RatingSummary: job.RatingSummary,
	}
	if err := a.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save draft"})
		return
	}
	a.store.Touch("blog_posts")

	c.JSON(http.StatusCreated, gin.H{"id": post.ID, "slug": post.Slug})
}

func (a *AdminModule) editPost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}

	c.HTML(http.StatusOK, "admin_edit_post.html", gin.H{
		"post":  post,
		"tones": tones,
	})
}

func (a *AdminModule) updatePost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
		return
	}

	oldSlug := post.Slug
	post.Title = title
	post.Content = c.PostForm("content")
	if tone := c.PostForm("tone"); tone != "" {
		post.Tone = tone
	}

	switch c.PostForm("action") {
	case "publish":
		// The slug is recomputed from the current title on every publish so
		// the public URL tracks title edits made while the post was a draft.
		post.Slug = common.UniqueSlug(post.Title, a.existingSlugs(post.ID))
		post.Status = models.PostPublished
		if post.PublishedAt == nil {
			now := time.Now()
			post.PublishedAt = &now
		}
	case "unpublish":
		post.Status = models.PostDraft
		post.PublishedAt = nil
	}

	if err := a.db.Save(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save post"})
		return
	}
	a.store.Touch("blog_posts")

	if err := cache.ClearCacheBySlugs("blog", oldSlug, post.Slug); err != nil {
		log.Printf("Error clearing cache for post %d: %v", post.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "slug": post.Slug, "status": post.Status})
}

func (a *AdminModule) deletePost(c *gin.Context) {
	post, ok := a.loadPost(c)
	if !ok {
		return
	}

	if err := a.db.Delete(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete post"})
		return
	}
	a.db.Where("post_id = ?", post.ID).Delete(&models.BlogComment{})
	a.store.Touch("blog_posts")

	if err := cache.ClearCache("blog", post.Slug); err != nil {
		log.Printf("Error clearing cache for deleted post %d: %v", post.ID, err)
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// loadPost reads the :id route param and fetches the post, writing the error
// response itself when the lookup fails.
func (a *AdminModule) loadPost(c *gin.Context) (models.BlogPost, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post id"})
		return models.BlogPost{}, false
	}

	var post models.BlogPost
	if err := a.db.First(&post, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return models.BlogPost{}, false
	}
	return post, true
}

// existingSlugs returns every post slug except the given post's own, for
// slug deduplication. Pass 0 to exclude nothing.
func (a *AdminModule) existingSlugs(excludeID int) []string {
	var slugs []string
	query := a.db.Model(&models.BlogPost{})
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}
	query.Pluck("slug", &slugs)
	return slugs
}

func (a *AdminModule) listCaseStudies(c *gin.Context) {
	var studies []models.CaseStudy
	if err := a.db.Order("ordering ASC, created_at DESC").Find(&studies).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "admin_error.html", gin.H{
			"error": "Could not load case studies",
		})
		return
	}

	c.HTML(http.StatusOK, "admin_case_studies.html", gin.H{
		"caseStudies": studies,
	})
}

func (a *AdminModule) saveCaseStudy(c *gin.Context) {
	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
		return
	}

	var slugs []string
	a.db.Model(&models.CaseStudy{}).Pluck("slug", &slugs)

	ordering, _ := strconv.Atoi(c.PostForm("ordering"))
	study := models.CaseStudy{
		Title:    title,
		Slug:     common.UniqueSlug(title, slugs),
		Summary:  c.PostForm("summary"),
		Body:     c.PostForm("body"),
		Industry: c.PostForm("industry"),
		Ordering: ordering,
	}
	if err := a.db.Create(&study).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not save case study"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": study.ID, "slug": study.Slug})
}

func (a *AdminModule) updateCaseStudy(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid case study id"})
		return
	}

	var study models.CaseStudy
	if err := a.db.First(&study, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Case study not found"})
		return
	}

	if title := strings.TrimSpace(c.PostForm("title")); title != "" {
		study.Title = title
	}
	study.Summary = c.PostForm("summary")
	study.Body = c.PostForm("body")
	study.Industry = c.PostForm("industry")
	if ordering := c.PostForm("ordering"); ordering != "" {
		study.Ordering, _ = strconv.Atoi(ordering)
	}

	if err := a.db.Save(&study).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update case study"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
