package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// viewThrottle is how long a repeat view of the same post by the same
// visitor is ignored. Keeps refreshes from inflating counts.
const viewThrottle = 30 * time.Minute

const visitorCookie = "brightfold_visitor_id"

// PostView is one throttled page view of a blog post. Lives in the
// analytics database, not the main one.
type PostView struct {
	ID        uint      `gorm:"primary_key;autoIncrement"`
	PostID    int       `gorm:"not null;index"`
	CookieID  string    `gorm:"not null;index"`
	IP        string    `gorm:"not null"`
	Browser   *string
	Language  *string
	CreatedAt time.Time `gorm:"index"`
}

type AnalyticsModule struct {
	db *gorm.DB
}

// NewAnalyticsModule returns nil when the analytics database is not
// configured; every method is nil-safe so callers need no guard.
func NewAnalyticsModule(db *gorm.DB) *AnalyticsModule {
	if db == nil {
		log.Println("Analytics DB is nil, analytics will be disabled")
		return nil
	}

	if err := db.AutoMigrate(&PostView{}); err != nil {
		log.Printf("Error migrating post_views table: %v", err)
		return nil
	}

	return &AnalyticsModule{db: db}
}

// TrackView records a page view for a post. A visitor's repeat views inside
// the throttle window are dropped; the write itself happens off the request
// path.
func (a *AnalyticsModule) TrackView(c *gin.Context, postID int) {
	if a == nil || a.db == nil {
		return
	}

	cookieID := a.getOrCreateCookieID(c)

	cutoff := time.Now().Add(-viewThrottle)
	var recent PostView
	err := a.db.Where("cookie_id = ? AND post_id = ? AND created_at > ?", cookieID, postID, cutoff).
		First(&recent).Error
	if err == nil {
		return
	}

	view := PostView{
		PostID:    postID,
		CookieID:  cookieID,
		IP:        a.getClientIP(c),
		Browser:   a.extractBrowser(c.Request.UserAgent()),
		Language:  a.extractLanguage(c),
		CreatedAt: time.Now(),
	}

	go func() {
		if err := a.db.Create(&view).Error; err != nil {
			log.Printf("Error saving analytics event: %v", err)
		}
	}()
}

func (a *AnalyticsModule) getOrCreateCookieID(c *gin.Context) string {
	if cookie, err := c.Cookie(visitorCookie); err == nil && cookie != "" {
		return cookie
	}

	data := time.Now().String() + c.ClientIP() + c.Request.UserAgent()
	hash := sha256.Sum256([]byte(data))
	cookieID := hex.EncodeToString(hash[:])

	c.SetCookie(
		visitorCookie,
		cookieID,
		60*60*24*365*2, // 2 years
		"/",
		"",
		false,
		true,
	)

	return cookieID
}

func (a *AnalyticsModule) getClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		ips := strings.Split(ip, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}

	return c.ClientIP()
}

func (a *AnalyticsModule) extractBrowser(userAgent string) *string {
	if userAgent == "" {
		return nil
	}

	ua := strings.ToLower(userAgent)
	var browser string

	// Order matters, the more specific user agents go first.
	switch {
	case strings.Contains(ua, "edg"):
		browser = "Edge"
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edg"):
		browser = "Chrome"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		browser = "Safari"
	case strings.Contains(ua, "firefox"):
		browser = "Firefox"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr"):
		browser = "Opera"
	default:
		browser = "Other"
	}

	return &browser
}

func (a *AnalyticsModule) extractLanguage(c *gin.Context) *string {
	acceptLang := c.GetHeader("Accept-Language")
	if acceptLang == "" {
		return nil
	}

	// "en-US,en;q=0.9,pt-BR;q=0.8" -> "en-US"
	parts := strings.Split(acceptLang, ",")
	if len(parts) > 0 {
		lang := strings.TrimSpace(parts[0])
		lang = strings.Split(lang, ";")[0]
		return &lang
	}

	return nil
}

// DayViews is the number of post views on a specific day.
type DayViews struct {
	Date  string
	Views int64
}

// PostViews is the view count for one post. PostTitle is filled in by the
// caller, the analytics database does not know titles.
type PostViews struct {
	PostID    int
	PostTitle string `gorm:"-"`
	Views     int64
}

// GetPostViewCount returns the all-time view count for a post.
func (a *AnalyticsModule) GetPostViewCount(postID int) int64 {
	if a == nil || a.db == nil {
		return 0
	}

	var count int64
	a.db.Model(&PostView{}).Where("post_id = ?", postID).Count(&count)
	return count
}

// GetViewsByDay returns views per day for the last N days, zero-filled so
// charts render gapless.
func (a *AnalyticsModule) GetViewsByDay(days int) []DayViews {
	if a == nil || a.db == nil {
		return []DayViews{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []struct {
		Date  string
		Views int64
	}

	a.db.Model(&PostView{}).
		Select("DATE(created_at) as date, COUNT(*) as views").
		Where("created_at >= ?", startDate).
		Group("DATE(created_at)").
		Order("date ASC").
		Scan(&results)

	dayViews := make([]DayViews, days)
	for i := 0; i < days; i++ {
		date := time.Now().AddDate(0, 0, -(days - 1 - i))
		dayViews[i] = DayViews{
			Date:  date.Format("2006-01-02"),
			Views: 0,
		}
	}

	for _, result := range results {
		for i := range dayViews {
			if dayViews[i].Date == result.Date {
				dayViews[i].Views = result.Views
				break
			}
		}
	}

	return dayViews
}

// GetTopPosts returns the most viewed posts of the last N days.
func (a *AnalyticsModule) GetTopPosts(days int, limit int) []PostViews {
	if a == nil || a.db == nil {
		return []PostViews{}
	}

	startDate := time.Now().AddDate(0, 0, -days)

	var results []PostViews
	a.db.Model(&PostView{}).
		Select("post_id as post_id, COUNT(*) as views").
		Where("created_at >= ?", startDate).
		Group("post_id").
		Order("views DESC").
		Limit(limit).
		Scan(&results)

	return results
}
