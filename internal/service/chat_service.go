package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/repository"
	"campusconnect.id/communityhub/internal/ws"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
)

const maxHistoryLimit = 200

type ChatService interface {
	// Publish persists a message and fans it out to subscribers.
	// Durability comes first: if the store write fails nothing is
	// broadcast and the error is returned.
	Publish(ctx context.Context, userID uuid.UUID, content string) (*model.Message, error)
	// History is the bounded point-in-time read new subscribers perform
	// once: the most recent limit messages, ascending.
	History(ctx context.Context, limit int) ([]model.Message, error)
}

type chatService struct {
	messages  repository.MessageRepository
	hub       Broadcaster
	rdb       *redis.Client
	rateLimit time.Duration
	sanitizer *bluemonday.Policy

	// publishMu serializes persist+broadcast so every subscriber sees
	// messages in commit order. Store calls under it must be
	// time-bounded or one hung write stalls every publisher.
	publishMu sync.Mutex

	storeTimeout   time.Duration
	defaultHistory int
}

func NewChatService(messages repository.MessageRepository, hub Broadcaster, rdb *redis.Client, rateLimit time.Duration, defaultHistory int, storeTimeout time.Duration) ChatService {
	if defaultHistory <= 0 {
		defaultHistory = 100
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &chatService{
		messages:       messages,
		hub:            hub,
		rdb:            rdb,
		rateLimit:      rateLimit,
		sanitizer:      bluemonday.StrictPolicy(),
		storeTimeout:   storeTimeout,
		defaultHistory: defaultHistory,
	}
}

func (s *chatService) Publish(ctx context.Context, userID uuid.UUID, content string) (*model.Message, error) {
	content = strings.TrimSpace(s.sanitizer.Sanitize(content))
	if content == "" {
		return nil, apperror.Wrap(apperror.ErrValidation, "message content must not be empty")
	}

	allowed, err := CheckAndSetRateLimit(ctx, s.rdb, userID, "publish", s.rateLimit)
	if err != nil {
		// Rate limiting is advisory; a broken limiter must not block chat.
		log.Printf("chat: rate limit check failed: %v", err)
	} else if !allowed {
		return nil, apperror.Wrap(apperror.ErrRateLimitExceeded, "sending messages too quickly")
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	msg := &model.Message{
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = s.messages.Create(stepCtx, msg)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to store message: %v", apperror.ErrDependency, err)
	}

	s.hub.Broadcast(ws.Event{Type: ws.EventMessageNew, Data: msg})

	return msg, nil
}

func (s *chatService) History(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = s.defaultHistory
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.messages.ListRecent(stepCtx, limit)
}
