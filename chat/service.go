package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agroph/portal/models"
	"github.com/agroph/portal/utils"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Service persists chat messages and publishes them through the hub.
type Service struct {
	db  *gorm.DB
	hub *Hub
	log *zap.Logger

	// held across insert and enqueue so broadcast order matches insert order
	mu sync.Mutex
}

// NewService wires the persistence layer to a running hub.
func NewService(db *gorm.DB, hub *Hub, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, hub: hub, log: log}
}

// Hub exposes the hub for the websocket handler.
func (s *Service) Hub() *Hub { return s.hub }

// Authenticate verifies a join token and that the account is still active.
func (s *Service) Authenticate(ctx context.Context, token string) (*utils.Claims, error) {
	claims, err := utils.ParseToken(token)
	if err != nil {
		return nil, utils.AuthenticationError("invalid token")
	}
	var user models.User
	err = s.db.WithContext(ctx).Select("id", "display_name", "role", "is_active").First(&user, claims.UserID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.AuthenticationError("account not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, utils.AuthorizationError("account is disabled")
	}
	return claims, nil
}

// ValidateMessage trims text and enforces the length bounds.
func ValidateMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", utils.ValidationError("message cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return "", utils.ValidationError("message too long (max 1000 characters)")
	}
	return text, nil
}

// Post validates, stores and broadcasts a message to every member including the sender.
func (s *Service) Post(ctx context.Context, userID uint, username, text, msgType string) (*models.ChatMessage, error) {
	text, err := ValidateMessage(text)
	if err != nil {
		return nil, err
	}
	if username == "" {
		username = "Anonymous"
	}
	msg := models.ChatMessage{
		Username:    username,
		Message:     text,
		MessageType: msgType,
	}
	if userID != 0 {
		msg.UserID = &userID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}
	if err := s.hub.Broadcast(EventNewMessage, msg); err != nil {
		s.log.Error("broadcast chat message failed", zap.Uint("id", msg.ID), zap.Error(err))
	}
	return &msg, nil
}

// History returns up to limit most recent messages in ascending order.
func (s *Service) History(ctx context.Context, limit int) ([]models.ChatMessage, bool, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	var rows []models.ChatMessage
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, false, err
	}
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, hasMore, nil
}
