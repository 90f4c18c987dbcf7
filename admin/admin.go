package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"brightfold/analytics"
	"brightfold/chat"
	"brightfold/generator"
	"brightfold/live"
	"brightfold/models"
)

// inactivityWindow is how long a user may go without interacting before the
// lazy sweep marks them inactive.
const inactivityWindow = 24 * time.Hour

type AdminModule struct {
	db        *gorm.DB
	store     *live.GormStore
	chat      *chat.ChatModule
	gen       *generator.Client
	poller    *generator.Poller
	analytics *analytics.AnalyticsModule
}

func NewAdminModule(db *gorm.DB, store *live.GormStore, chatModule *chat.ChatModule, gen *generator.Client, analyticsModule *analytics.AnalyticsModule) *AdminModule {
	return &AdminModule{
		db:        db,
		store:     store,
		chat:      chatModule,
		gen:       gen,
		poller:    generator.NewPoller(gen),
		analytics: analyticsModule,
	}
}

func (a *AdminModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/admin/login", a.loginPage)
	router.POST("/admin/login", a.loginPost)
	router.GET("/admin/logout", a.logout)

	adminGroup := router.Group("/admin")
	adminGroup.Use(a.requireAuth)
	{
		adminGroup.GET("/", a.dashboard)
		adminGroup.GET("/users", a.listUsers)
		adminGroup.GET("/conversations", a.listConversations)
		adminGroup.POST("/conversations/:id/assign", a.assignConversation)
		adminGroup.POST("/conversations/:id/resolve", a.resolveConversation)
		adminGroup.POST("/conversations/:id/reply", a.replyConversation)

		adminGroup.GET("/posts", a.listPosts)
		adminGroup.GET("/post/new", a.newPost)
		adminGroup.POST("/blog/generate", a.generatePost)
		adminGroup.GET("/blog/jobs/:trackingId", a.jobStatus)
		adminGroup.POST("/blog/jobs/:trackingId/save", a.saveDraftFromJob)
		adminGroup.GET("/post/:id", a.editPost)
		adminGroup.POST("/post/:id", a.updatePost)
		adminGroup.DELETE("/post/:id", a.deletePost)

		adminGroup.GET("/case-studies", a.listCaseStudies)
		adminGroup.POST("/case-studies", a.saveCaseStudy)
		adminGroup.POST("/case-studies/:id", a.updateCaseStudy)
	}
}

func (a *AdminModule) requireAuth(c *gin.Context) {
	session := sessions.Default(c)
	adminID := session.Get("admin_user_id")

	if adminID == nil {
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
		return
	}

	var admin models.AdminUser
	if err := a.db.First(&admin, adminID).Error; err != nil {
		session.Clear()
		session.Save()
		c.Redirect(http.StatusFound, "/admin/login")
		c.Abort()
		return
	}

	c.Set("admin_user", admin)
	c.Next()
}

func (a *AdminModule) loginPage(c *gin.Context) {
	session := sessions.Default(c)
	if session.Get("admin_user_id") != nil {
		c.Redirect(http.StatusFound, "/admin/")
		return
	}

	c.HTML(http.StatusOK, "admin_login.html", gin.H{})
}

func (a *AdminModule) loginPost(c *gin.Context) {
	email := c.PostForm("email")
	password := c.PostForm("password")

	var admin models.AdminUser
	if err := a.db.Where("email = ?", email).First(&admin).Error; err != nil {
		c.HTML(http.StatusUnauthorized, "admin_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	if !checkPasswordHash(password, admin.PasswordHash) {
		c.HTML(http.StatusUnauthorized, "admin_login.html", gin.H{
			"error": "Incorrect email or password",
			"email": email,
		})
		return
	}

	session := sessions.Default(c)
	session.Set("admin_user_id", admin.ID)
	session.Save()

	c.Redirect(http.StatusFound, "/admin/")
}

func (a *AdminModule) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()

	c.Redirect(http.StatusFound, "/admin/login")
}

func (a *AdminModule) dashboard(c *gin.Context) {
	var postCount, publishedCount, userCount, openConversations int64
	a.db.Model(&models.BlogPost{}).Count(&postCount)
	a.db.Model(&models.BlogPost{}).Where("status = ?", models.PostPublished).Count(&publishedCount)
	a.db.Model(&models.User{}).Count(&userCount)
	a.db.Model(&models.Conversation{}).Where("status = ?", models.ConversationActive).Count(&openConversations)

	topPosts := a.analytics.GetTopPosts(30, 10)
	for i := range topPosts {
		var post models.BlogPost
		if err := a.db.First(&post, topPosts[i].PostID).Error; err == nil {
			topPosts[i].PostTitle = post.Title
		}
	}

	c.HTML(http.StatusOK, "admin_dashboard.html", gin.H{
		"postCount":         postCount,
		"publishedCount":    publishedCount,
		"userCount":         userCount,
		"openConversations": openConversations,
		"analyticsEnabled":  a.analytics != nil,
		"topPosts":          topPosts,
	})
}

func (a *AdminModule) listUsers(c *gin.Context) {
	var users []models.User
	if err := a.db.Order("last_seen_at DESC").Find(&users).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "admin_error.html", gin.H{
			"error": "Could not load users",
		})
		return
	}

	// Lazy inactivity sweep: fire and forget, never blocks the read.
	go a.sweepInactiveUsers()

	c.HTML(http.StatusOK, "admin_users.html", gin.H{
		"users": users,
	})
}

// sweepInactiveUsers transitions active users unseen for the inactivity
// window to inactive. Blocked users are left alone.
func (a *AdminModule) sweepInactiveUsers() {
	cutoff := time.Now().Add(-inactivityWindow)
	res := a.db.Model(&models.User{}).
		Where("status = ? AND last_seen_at < ?", models.UserActive, cutoff).
		Update("status", models.UserInactive)
	if res.Error == nil && res.RowsAffected > 0 {
		a.store.Touch("users")
	}
}

func (a *AdminModule) listConversations(c *gin.Context) {
	var conversations []models.Conversation
	if err := a.db.Order("updated_at DESC").Find(&conversations).Error; err != nil {
		c.HTML(http.StatusInternalServerError, "admin_error.html", gin.H{
			"error": "Could not load conversations",
		})
		return
	}

	type ConversationWithStats struct {
		Conversation models.Conversation
		MessageCount int64
	}

	withStats := make([]ConversationWithStats, len(conversations))
	for i, conv := range conversations {
		var count int64
		a.db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
		withStats[i] = ConversationWithStats{Conversation: conv, MessageCount: count}
	}

	c.HTML(http.StatusOK, "admin_conversations.html", gin.H{
		"conversations": withStats,
	})
}

// loadConversation reads the :id route param and fetches the conversation,
// writing the error response itself when the lookup fails.
func (a *AdminModule) loadConversation(c *gin.Context) (models.Conversation, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversation id"})
		return models.Conversation{}, false
	}

	var conv models.Conversation
	if err := a.db.First(&conv, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return models.Conversation{}, false
	}
	return conv, true
}

func (a *AdminModule) assignConversation(c *gin.Context) {
	admin := c.MustGet("admin_user").(models.AdminUser)

	conv, ok := a.loadConversation(c)
	if !ok {
		return
	}

	if conv.Status == models.ConversationResolved {
		c.JSON(http.StatusConflict, gin.H{"error": "Conversation is already resolved"})
		return
	}

	conv.AssignedAdmin = admin.Email
	conv.Status = models.ConversationPending
	if err := a.db.Save(&conv).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not assign conversation"})
		return
	}
	a.store.Touch("conversations")

	c.JSON(http.StatusOK, gin.H{"success": true, "assignedAdmin": conv.AssignedAdmin})
}

func (a *AdminModule) resolveConversation(c *gin.Context) {
	conv, ok := a.loadConversation(c)
	if !ok {
		return
	}

	if conv.Status == models.ConversationResolved {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": conv.Status})
		return
	}

	conv.Status = models.ConversationResolved
	if err := a.db.Save(&conv).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not resolve conversation"})
		return
	}
	a.store.Touch("conversations")

	c.JSON(http.StatusOK, gin.H{"success": true, "status": conv.Status})
}

func (a *AdminModule) replyConversation(c *gin.Context) {
	admin := c.MustGet("admin_user").(models.AdminUser)

	var request struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&request); err != nil || request.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	conv, ok := a.loadConversation(c)
	if !ok {
		return
	}

	msg, err := a.chat.SendMessage(conv.ID, admin.Email, request.Content, models.MessageText)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not send reply"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func checkPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
