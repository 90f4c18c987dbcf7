package admin

import (
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"brightfold/chat"
	"brightfold/generator"
	"brightfold/live"
	"brightfold/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(
		&models.User{}, &models.Conversation{}, &models.Message{},
		&models.BlogPost{}, &models.GenerationJob{}, &models.AdminUser{},
		&models.CaseStudy{},
	)
	return db
}

func setupTestModule(db *gorm.DB) *AdminModule {
	store := live.NewGormStore(db)
	runner := live.NewRunner(store, nil)
	chatModule := chat.NewChatModule(db, store, runner, live.NewRegistry())
	return NewAdminModule(db, store, chatModule, generator.NewClient("http://127.0.0.1:1"), nil)
}

func setupTestRouter(adminModule *AdminModule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))
	adminModule.RegisterRoutes(router)
	return router
}

func createTestAdmin(db *gorm.DB) *models.AdminUser {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	admin := &models.AdminUser{
		Email:        "admin@example.com",
		PasswordHash: string(hash),
		Role:         "admin",
	}
	db.Create(admin)
	return admin
}

func loginCookies(t *testing.T, router *gin.Engine) []*http.Cookie {
	form := url.Values{"email": {"admin@example.com"}, "password": {"password123"}}
	req, _ := http.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	return w.Result().Cookies()
}

func authedRequest(method, target string, body string, cookies []*http.Cookie) *http.Request {
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req, _ = http.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func createTestPost(db *gorm.DB, title, slug, status string) *models.BlogPost {
	post := &models.BlogPost{
		Title:     title,
		Slug:      slug,
		Content:   "<p>content</p>",
		Status:    status,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if status == models.PostPublished {
		now := time.Now()
		post.PublishedAt = &now
	}
	db.Create(post)
	return post
}

func TestRequireAuth_Unauthorized(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))

	req, _ := http.NewRequest("GET", "/admin/users", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/admin/login")
}

func TestLogin_WrongPassword(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)

	router.SetHTMLTemplate(template.Must(template.New("admin_login.html").Parse("login")))

	form := url.Values{"email": {"admin@example.com"}, "password": {"wrong"}}
	req, _ := http.NewRequest("POST", "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHashPassword(t *testing.T) {
	password := "testpassword123"
	hash, err := hashPassword(password)
	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
}

func TestCheckPasswordHash(t *testing.T) {
	password := "testpassword123"
	hash, _ := hashPassword(password)

	assert.True(t, checkPasswordHash(password, hash))
	assert.False(t, checkPasswordHash("wrongpassword", hash))
}

func TestPublishRecomputesSlugAndSetsPublishedAt(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	post := createTestPost(db, "Original Title", "original-title", models.PostDraft)

	form := url.Values{
		"title":   {"My New Title!!"},
		"content": {"<p>content</p>"},
		"action":  {"publish"},
	}
	req := authedRequest("POST", "/admin/post/"+strconv.Itoa(post.ID), form.Encode(), cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.BlogPost
	db.First(&updated, post.ID)
	assert.Equal(t, "my-new-title", updated.Slug)
	assert.Equal(t, models.PostPublished, updated.Status)
	assert.NotNil(t, updated.PublishedAt)
}

func TestPublishDeduplicatesSlugAgainstOtherPosts(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	createTestPost(db, "My New Title", "my-new-title", models.PostPublished)
	post := createTestPost(db, "Draft", "draft", models.PostDraft)

	form := url.Values{
		"title":  {"My New Title!!"},
		"action": {"publish"},
	}
	req := authedRequest("POST", "/admin/post/"+strconv.Itoa(post.ID), form.Encode(), cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.BlogPost
	db.First(&updated, post.ID)
	assert.Equal(t, "my-new-title-1", updated.Slug)
}

func TestUnpublishClearsPublishedAt(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	post := createTestPost(db, "Live Post", "live-post", models.PostPublished)
	assert.NotNil(t, post.PublishedAt)

	form := url.Values{
		"title":  {"Live Post"},
		"action": {"unpublish"},
	}
	req := authedRequest("POST", "/admin/post/"+strconv.Itoa(post.ID), form.Encode(), cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.BlogPost
	db.First(&updated, post.ID)
	assert.Equal(t, models.PostDraft, updated.Status)
	assert.Nil(t, updated.PublishedAt)
}

func TestSaveDraftFromJob(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	job := models.GenerationJob{
		TrackingID:  "track-1",
		Status:      models.JobCompleted,
		Progress:    100,
		Title:       "Generated Post",
		Content:     "<h1>Generated Post</h1>",
		Tone:        "casual",
		WordCount:   840,
		RatingScore: 8.6,
	}
	db.Create(&job)

	req := authedRequest("POST", "/admin/blog/jobs/track-1/save", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var post models.BlogPost
	db.Where("slug = ?", "generated-post").First(&post)
	assert.Equal(t, "Generated Post", post.Title)
	assert.Equal(t, models.PostDraft, post.Status)
	assert.Equal(t, 840, post.WordCount)
	assert.Equal(t, 8.6, post.RatingScore)
	assert.Nil(t, post.PublishedAt)
}

func TestSaveDraftFromJob_RejectsUnfinishedJob(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	job := models.GenerationJob{TrackingID: "track-2", Status: models.JobInProgress, Progress: 40}
	db.Create(&job)

	req := authedRequest("POST", "/admin/blog/jobs/track-2/save", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	db.Model(&models.BlogPost{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestSweepInactiveUsers(t *testing.T) {
	db := setupTestDB()
	adminModule := setupTestModule(db)

	stale := &models.User{Email: "stale@example.com", Status: models.UserActive, LastSeenAt: time.Now().Add(-25 * time.Hour)}
	fresh := &models.User{Email: "fresh@example.com", Status: models.UserActive, LastSeenAt: time.Now().Add(-1 * time.Hour)}
	blocked := &models.User{Email: "blocked@example.com", Status: models.UserBlocked, LastSeenAt: time.Now().Add(-48 * time.Hour)}
	db.Create(stale)
	db.Create(fresh)
	db.Create(blocked)

	adminModule.sweepInactiveUsers()

	var users []models.User
	db.Order("email ASC").Find(&users)
	assert.Equal(t, models.UserBlocked, users[0].Status)
	assert.Equal(t, models.UserActive, users[1].Status)
	assert.Equal(t, models.UserInactive, users[2].Status)
}

func TestResolveConversation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	conv := models.Conversation{UserEmail: "user@example.com", Status: models.ConversationActive}
	db.Create(&conv)

	req := authedRequest("POST", "/admin/conversations/"+strconv.Itoa(conv.ID)+"/resolve", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Conversation
	db.First(&updated, conv.ID)
	assert.Equal(t, models.ConversationResolved, updated.Status)

	// Resolving again is a no-op, not an error.
	req = authedRequest("POST", "/admin/conversations/"+strconv.Itoa(conv.ID)+"/resolve", "", cookies)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAssignConversation_RejectsResolved(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	conv := models.Conversation{UserEmail: "user@example.com", Status: models.ConversationResolved}
	db.Create(&conv)

	req := authedRequest("POST", "/admin/conversations/"+strconv.Itoa(conv.ID)+"/assign", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAssignConversation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	conv := models.Conversation{UserEmail: "user@example.com", Status: models.ConversationActive}
	db.Create(&conv)

	req := authedRequest("POST", "/admin/conversations/"+strconv.Itoa(conv.ID)+"/assign", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Conversation
	db.First(&updated, conv.ID)
	assert.Equal(t, "admin@example.com", updated.AssignedAdmin)
	assert.Equal(t, models.ConversationPending, updated.Status)
}

func TestReplyConversation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	conv := models.Conversation{UserEmail: "user@example.com", Status: models.ConversationActive}
	db.Create(&conv)

	body, _ := json.Marshal(map[string]string{"content": "How can I help?"})
	req, _ := http.NewRequest("POST", "/admin/conversations/"+strconv.Itoa(conv.ID)+"/reply", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var msg models.Message
	db.Where("conversation_id = ?", conv.ID).First(&msg)
	assert.Equal(t, "admin@example.com", msg.Sender)
	assert.Equal(t, "How can I help?", msg.Content)
}

func TestGeneratePost_StartsTrackedJob(t *testing.T) {
	db := setupTestDB()

	service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/blog/generate-async":
			json.NewEncoder(w).Encode(map[string]string{"trackingId": "track-99"})
		case "/api/blog/status":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"job": map[string]interface{}{
					"status":   models.JobCompleted,
					"progress": 100,
					"message":  "Done",
					"title":    "Generated",
					"content":  "<p>done</p>",
				},
			})
		}
	}))
	defer service.Close()

	store := live.NewGormStore(db)
	runner := live.NewRunner(store, nil)
	chatModule := chat.NewChatModule(db, store, runner, live.NewRegistry())
	adminModule := NewAdminModule(db, store, chatModule, generator.NewClient(service.URL), nil)
	router := setupTestRouter(adminModule)
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	body, _ := json.Marshal(map[string]string{"idea": "Why caching matters", "tone": "technical"})
	req, _ := http.NewRequest("POST", "/admin/blog/generate", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "track-99")

	var job models.GenerationJob
	db.Where("tracking_id = ?", "track-99").First(&job)
	assert.Equal(t, "Why caching matters", job.Idea)

	// The background tracker's first poll is immediate and terminal.
	assert.Eventually(t, func() bool {
		var tracked models.GenerationJob
		db.Where("tracking_id = ?", "track-99").First(&tracked)
		return tracked.Status == models.JobCompleted && tracked.Progress == 100
	}, 2*time.Second, 20*time.Millisecond)
}

func TestJobStatus_NotFound(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(setupTestModule(db))
	createTestAdmin(db)
	cookies := loginCookies(t, router)

	req := authedRequest("GET", "/admin/blog/jobs/missing", "", cookies)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
