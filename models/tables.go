package models

import "time"

// User status values. Active users transition to Inactive after 24 hours
// without interaction; the sweep runs lazily when the admin user list loads.
const (
	UserActive   = "active"
	UserInactive = "inactive"
	UserBlocked  = "blocked"
)

// Conversation status values. A conversation never moves back to active
// automatically once resolved.
const (
	ConversationActive   = "active"
	ConversationPending  = "pending"
	ConversationResolved = "resolved"
)

// Message kinds.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// SystemSender is the sender value for messages the platform writes itself.
const SystemSender = "system"

// Blog post status values.
const (
	PostDraft     = "draft"
	PostPublished = "published"
)

// Generation job status values. Completed and Failed are terminal.
const (
	JobInit       = "init"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

type User struct {
	ID         int       `gorm:"primary_key;autoIncrement" json:"id"`
	Email      string    `gorm:"unique;not null;index" json:"email"`
	Name       string    `json:"name"`
	Status     string    `gorm:"not null;default:'active';index" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `gorm:"index" json:"last_seen_at"`
}

type Conversation struct {
	ID            int       `gorm:"primary_key;autoIncrement" json:"id"`
	UserEmail     string    `gorm:"not null;index" json:"user_email"`
	Status        string    `gorm:"not null;default:'active';index" json:"status"`
	AssignedAdmin string    `json:"assigned_admin,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `gorm:"index" json:"updated_at"`
}

type Message struct {
	ID             string    `gorm:"primary_key" json:"id"` // uuid
	ConversationID int       `gorm:"not null;index" json:"conversation_id"`
	Sender         string    `gorm:"not null" json:"sender"` // user email or "system"
	Content        string    `gorm:"type:text;not null" json:"content"`
	Kind           string    `gorm:"not null;default:'text'" json:"kind"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
}

type BlogPost struct {
	ID            int        `gorm:"primary_key;autoIncrement" json:"id"`
	Title         string     `gorm:"not null" json:"title"`
	Slug          string     `gorm:"unique;not null;index" json:"slug"`
	Content       string     `gorm:"type:text" json:"content"` // HTML from the generation service
	Tone          string     `json:"tone"`
	Status        string     `gorm:"not null;default:'draft';index" json:"status"`
	WordCount     int        `json:"word_count"`
	Images        string     `gorm:"type:text" json:"images"` // JSON array of URLs
	RatingScore   float64    `json:"rating_score"`
	RatingSummary string     `json:"rating_summary"`
	Likes         int        `gorm:"default:0" json:"likes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

type BlogComment struct {
	ID        string    `gorm:"primary_key" json:"id"` // uuid
	PostID    int       `gorm:"not null;index" json:"post_id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `json:"email"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Avatar    string    `json:"avatar"`
	Likes     int       `gorm:"default:0" json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationJob mirrors the external generation service's status payload so
// the admin UI can resume tracking after a reload. Progress never regresses
// until the job reaches a terminal status.
type GenerationJob struct {
	TrackingID    string    `gorm:"primary_key" json:"tracking_id"`
	Status        string    `gorm:"not null;default:'init';index" json:"status"`
	Progress      int       `json:"progress"`
	Message       string    `json:"message"`
	Idea          string    `gorm:"type:text" json:"idea"`
	Tone          string    `json:"tone"`
	Title         string    `json:"title,omitempty"`
	Content       string    `gorm:"type:text" json:"content,omitempty"`
	Images        string    `gorm:"type:text" json:"images,omitempty"`
	WordCount     int       `json:"word_count,omitempty"`
	RatingScore   float64   `json:"rating_score,omitempty"`
	RatingSummary string    `json:"rating_summary,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type NewsletterSubscriber struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Email     string    `gorm:"unique;not null" json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type AdminUser struct {
	ID           int    `gorm:"primary_key;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"` // json:"-" prevents password from being exposed in API
	Role         string `gorm:"not null;default:'admin'" json:"role"`
}

type CaseStudy struct {
	ID        int       `gorm:"primary_key;autoIncrement" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Slug      string    `gorm:"unique;not null;index" json:"slug"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Body      string    `gorm:"type:text" json:"body"` // markdown
	Industry  string    `json:"industry"`
	Ordering  int       `gorm:"default:0" json:"ordering"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
