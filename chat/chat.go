package chat

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"brightfold/live"
	"brightfold/models"
)

const defaultAutoReplyDelay = 30 * time.Minute

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ChatModule serves the support chat widget: session bootstrap, message
// sending with deferred auto-reply, and a live SSE message feed built on the
// subscription registry and resilient query runner.
type ChatModule struct {
	db       *gorm.DB
	store    *live.GormStore
	runner   *live.Runner
	registry *live.Registry

	autoReplyDelay time.Duration
}

func NewChatModule(db *gorm.DB, store *live.GormStore, runner *live.Runner, registry *live.Registry) *ChatModule {
	return &ChatModule{
		db:             db,
		store:          store,
		runner:         runner,
		registry:       registry,
		autoReplyDelay: defaultAutoReplyDelay,
	}
}

func (m *ChatModule) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/chat")
	{
		api.POST("/session", m.startSession)
		api.POST("/messages", m.postMessage)
		api.GET("/stream", m.stream)
	}
}

func (m *ChatModule) startSession(c *gin.Context) {
	var request struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !emailRe.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}
	if request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
		return
	}

	if err := m.RegisterOrTouchUser(request.Email, request.Name); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start chat session"})
		return
	}

	conv, err := m.GetOrCreateActiveConversation(request.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start chat session"})
		return
	}

	var messages []models.Message
	m.db.Where("conversation_id = ?", conv.ID).Order("timestamp ASC").Find(&messages)

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     messages,
	})
}

func (m *ChatModule) postMessage(c *gin.Context) {
	var request struct {
		ConversationID int    `json:"conversation_id"`
		Email          string `json:"email"`
		Content        string `json:"content"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !emailRe.MatchString(request.Email) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}
	if request.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message cannot be empty"})
		return
	}

	var conv models.Conversation
	if err := m.db.First(&conv, request.ConversationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	if conv.UserEmail != request.Email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Conversation not found"})
		return
	}

	// Every interaction counts against the inactivity window.
	m.db.Model(&models.User{}).Where("email = ?", request.Email).
		Update("last_seen_at", time.Now())

	msg, err := m.SendMessageWithAutoReply(request.ConversationID, request.Email, request.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not send message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// stream feeds the conversation's messages over SSE. Each connection gets
// its own registry key, so a widget that reconnects replaces its old
// listener instead of leaking one.
func (m *ChatModule) stream(c *gin.Context) {
	conversationID, err := strconv.Atoi(c.Query("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id is required"})
		return
	}

	var conv models.Conversation
	if err := m.db.First(&conv, conversationID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	client := c.Query("client")
	if client == "" {
		client = uuid.NewString()
	}
	key := fmt.Sprintf("messages:%d:%s", conversationID, client)

	batches := make(chan []live.Document, 8)
	m.registry.Subscribe(key, func() (func(), error) {
		teardown := m.runner.Run(live.Spec{
			Collection: "messages",
			Filters:    map[string]any{"conversation_id": conversationID},
			OrderBy:    "timestamp",
		}, func(docs []live.Document) {
			select {
			case batches <- docs:
			default:
				// Slow consumer; the next batch carries the full state anyway.
			}
		})
		return teardown, nil
	})
	defer m.registry.Unsubscribe(key)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case docs := <-batches:
			c.SSEvent("messages", docs)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Unix())
			return true
		}
	})
}
