package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/repository"
	"campusconnect.id/communityhub/internal/ws"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
)

// Broadcaster is the slice of the hub the presence and chat services
// need. Satisfied by *ws.Hub.
type Broadcaster interface {
	Broadcast(ev ws.Event)
}

// SessionHandle represents one live connection. Releasing it twice is a
// no-op: the transport close notification and the client's going-away
// signal race for the same handle, and whichever fires first wins.
type SessionHandle struct {
	userID   uuid.UUID
	username string
	released atomic.Bool
}

func (h *SessionHandle) UserID() uuid.UUID {
	return h.userID
}

type PresenceService interface {
	// Connect registers a live connection. On the user's 0->1 connection
	// transition the profile is marked online and a presence:changed
	// event is broadcast.
	Connect(ctx context.Context, userID uuid.UUID) (*SessionHandle, error)
	// Disconnect releases a connection. Idempotent per handle. On the
	// 1->0 transition the profile is marked offline with last_seen set
	// to the disconnect time.
	Disconnect(handle *SessionHandle)
	// ConnectionCount reports the live connection count for a user.
	ConnectionCount(userID uuid.UUID) int
}

type presenceService struct {
	profiles     repository.ProfileRepository
	hub          Broadcaster
	storeTimeout time.Duration
	shards       [presenceShardCount]presenceShard
}

// Presence counts are keyed by user id and every read-modify-write for a
// given user must be serialized. A sharded lock table keeps unrelated
// users from contending on one global lock.
const presenceShardCount = 32

type presenceShard struct {
	mu     sync.Mutex
	counts map[uuid.UUID]int
}

func NewPresenceService(profiles repository.ProfileRepository, hub Broadcaster, storeTimeout time.Duration) PresenceService {
	s := &presenceService{
		profiles:     profiles,
		hub:          hub,
		storeTimeout: storeTimeout,
	}
	for i := range s.shards {
		s.shards[i].counts = map[uuid.UUID]int{}
	}
	return s
}

func (s *presenceService) shard(userID uuid.UUID) *presenceShard {
	// fnv-1a over the raw uuid bytes
	h := uint32(2166136261)
	for _, b := range userID {
		h ^= uint32(b)
		h *= 16777619
	}
	return &s.shards[h%presenceShardCount]
}

func (s *presenceService) Connect(ctx context.Context, userID uuid.UUID) (*SessionHandle, error) {
	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	profile, err := s.profiles.FindByUserID(stepCtx, userID)
	cancel()
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Wrap(apperror.ErrUnauthorized, "unknown user")
		}
		return nil, err
	}

	handle := &SessionHandle{userID: userID, username: profile.Username}

	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.counts[userID]++
	if sh.counts[userID] == 1 {
		stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		s.persistAndAnnounce(stepCtx, userID, profile.Username, true)
		cancel()
	}

	return handle, nil
}

func (s *presenceService) Disconnect(handle *SessionHandle) {
	if handle == nil || !handle.released.CompareAndSwap(false, true) {
		return
	}

	sh := s.shard(handle.userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	count := sh.counts[handle.userID]
	if count == 0 {
		// Already zero; nothing to decrement.
		return
	}
	count--
	if count == 0 {
		delete(sh.counts, handle.userID)
		ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
		defer cancel()
		s.persistAndAnnounce(ctx, handle.userID, handle.username, false)
	} else {
		sh.counts[handle.userID] = count
	}
}

func (s *presenceService) ConnectionCount(userID uuid.UUID) int {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.counts[userID]
}

// persistAndAnnounce runs with the shard lock held so profile updates for
// one user cannot interleave; callers pass a deadline-bounded ctx so the
// lock hold time is bounded too. A failed write leaves the stored
// is_online transiently stale; the in-memory count stays authoritative,
// so this is logged rather than retried.
func (s *presenceService) persistAndAnnounce(ctx context.Context, userID uuid.UUID, username string, online bool) {
	now := time.Now().UTC()
	if err := s.profiles.SetPresence(ctx, userID, online, now); err != nil {
		log.Printf("presence: failed to persist online=%t for %s: %v", online, username, err)
	}

	s.hub.Broadcast(ws.Event{
		Type: ws.EventPresenceChanged,
		Data: dto.PresenceEvent{
			UserID:   userID,
			Username: username,
			IsOnline: online,
			LastSeen: now,
		},
	})
}
