package chat

import (
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"brightfold/models"
)

const welcomeMessage = "Hi there! Thanks for reaching out. How can we help you today?"

// autoReplyPool holds the nudge texts appended when a user message sits
// unanswered for the auto-reply window. One is chosen uniformly at random.
var autoReplyPool = []string{
	"Thanks for your patience - our team will be with you shortly.",
	"We're still here! An agent will pick this up as soon as possible.",
	"Sorry for the wait. Your message has been flagged for follow-up.",
	"Still with us? We'll get back to you as soon as we can.",
}

// RegisterOrTouchUser updates an existing user in place (name and
// last_seen_at) or creates one with status active. An existing status is
// never overwritten here.
func (m *ChatModule) RegisterOrTouchUser(email, name string) error {
	now := time.Now()
	res := m.db.Model(&models.User{}).Where("email = ?", email).
		Updates(map[string]interface{}{"name": name, "last_seen_at": now})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		user := models.User{
			Email:      email,
			Name:       name,
			Status:     models.UserActive,
			CreatedAt:  now,
			LastSeenAt: now,
		}
		if err := m.db.Create(&user).Error; err != nil {
			return err
		}
	}

	m.store.Touch("users")
	return nil
}

// GetOrCreateActiveConversation returns the user's active conversation,
// creating one (with a system welcome message) when none exists. When the
// filtered+ordered query errors, it falls back to fetching every
// conversation for the email and filtering/sorting client-side.
func (m *ChatModule) GetOrCreateActiveConversation(email string) (*models.Conversation, error) {
	var conv models.Conversation
	err := m.db.Where("user_email = ? AND status = ?", email, models.ConversationActive).
		Order("updated_at DESC").
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}

	if err != gorm.ErrRecordNotFound {
		// Fallback query without the status filter and sort.
		var all []models.Conversation
		if ferr := m.db.Where("user_email = ?", email).Find(&all).Error; ferr == nil {
			active := all[:0]
			for _, c := range all {
				if c.Status == models.ConversationActive {
					active = append(active, c)
				}
			}
			sort.Slice(active, func(i, j int) bool {
				return active[i].UpdatedAt.After(active[j].UpdatedAt)
			})
			if len(active) > 0 {
				conv = active[0]
				return &conv, nil
			}
		} else {
			return nil, err
		}
	}

	now := time.Now()
	conv = models.Conversation{
		UserEmail: email,
		Status:    models.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.db.Create(&conv).Error; err != nil {
		return nil, err
	}
	m.store.Touch("conversations")

	if _, err := m.SendMessage(conv.ID, models.SystemSender, welcomeMessage, models.MessageSystem); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendMessage appends an immutable message and bumps the conversation's
// updated_at.
func (m *ChatModule) SendMessage(conversationID int, sender, content, kind string) (*models.Message, error) {
	now := time.Now()
	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Sender:         sender,
		Content:        content,
		Kind:           kind,
		Timestamp:      now,
	}
	if err := m.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	if err := m.db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", now).Error; err != nil {
		return nil, err
	}

	m.store.Touch("messages")
	m.store.Touch("conversations")
	return &msg, nil
}

// SendMessageWithAutoReply appends the message and schedules a one-shot
// deferred check. The timer is deliberately not cancelled when the user
// sends again: each firing re-checks the live conversation state, so
// redundant timers are harmless.
func (m *ChatModule) SendMessageWithAutoReply(conversationID int, sender, content string) (*models.Message, error) {
	msg, err := m.SendMessage(conversationID, sender, content, models.MessageText)
	if err != nil {
		return nil, err
	}

	time.AfterFunc(m.autoReplyDelay, func() {
		if _, err := m.CheckAndSendAutoReply(conversationID, sender); err != nil {
			// Best effort only; the next send schedules another check.
			return
		}
	})

	return msg, nil
}

// CheckAndSendAutoReply appends one nudge message when the conversation's
// latest message is still from the user and at least the auto-reply window
// old. Returns whether a nudge was sent.
func (m *ChatModule) CheckAndSendAutoReply(conversationID int, userEmail string) (bool, error) {
	latest, err := m.latestMessage(conversationID)
	if err != nil {
		return false, err
	}
	if latest == nil || latest.Sender != userEmail {
		return false, nil
	}
	if time.Since(latest.Timestamp) < m.autoReplyDelay {
		return false, nil
	}

	nudge := autoReplyPool[rand.Intn(len(autoReplyPool))]
	if _, err := m.SendMessage(conversationID, models.SystemSender, nudge, models.MessageSystem); err != nil {
		return false, err
	}
	return true, nil
}

// latestMessage fetches the newest message via the ordered query, falling
// back to an unordered fetch plus in-memory sort when that errors.
func (m *ChatModule) latestMessage(conversationID int) (*models.Message, error) {
	var msg models.Message
	err := m.db.Where("conversation_id = ?", conversationID).
		Order("timestamp DESC").
		First(&msg).Error
	if err == nil {
		return &msg, nil
	}
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	var all []models.Message
	if ferr := m.db.Where("conversation_id = ?", conversationID).Find(&all).Error; ferr != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	return &all[0], nil
}
