package service

import (
	"context"
	"sync"
	"time"

	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/ws"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
)

type presenceWrite struct {
	userID uuid.UUID
	online bool
	seenAt time.Time
}

type fakeProfileRepo struct {
	mu sync.Mutex

	byUsername map[string]*model.Profile
	byUserID   map[uuid.UUID]*model.Profile

	createErr      error
	setPresenceErr error
	writes         []presenceWrite
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		byUsername: map[string]*model.Profile{},
		byUserID:   map[uuid.UUID]*model.Profile{},
	}
}

func (f *fakeProfileRepo) Create(ctx context.Context, profile *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byUsername[profile.Username]; ok {
		return apperror.Wrap(apperror.ErrConflict, "username already taken")
	}
	if profile.ID == uuid.Nil {
		profile.ID = uuid.New()
	}
	cp := *profile
	f.byUsername[cp.Username] = &cp
	f.byUserID[cp.UserID] = &cp
	return nil
}

func (f *fakeProfileRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUserID[userID]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfileRepo) FindByUsername(ctx context.Context, username string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byUsername[username]
	if !ok {
		return nil, apperror.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProfileRepo) ListDirectory(ctx context.Context) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Profile
	for _, p := range f.byUsername {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProfileRepo) ListNewest(ctx context.Context) ([]model.Profile, error) {
	return f.ListDirectory(ctx)
}

func (f *fakeProfileRepo) SetPresence(ctx context.Context, userID uuid.UUID, online bool, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setPresenceErr != nil {
		return f.setPresenceErr
	}
	if p, ok := f.byUserID[userID]; ok {
		p.IsOnline = online
		p.LastSeen = seenAt
	}
	f.writes = append(f.writes, presenceWrite{userID: userID, online: online, seenAt: seenAt})
	return nil
}

func (f *fakeProfileRepo) presenceWrites() []presenceWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]presenceWrite, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeProfileRepo) add(userID uuid.UUID, username string) {
	p := &model.Profile{ID: uuid.New(), UserID: userID, Username: username}
	f.mu.Lock()
	f.byUsername[username] = p
	f.byUserID[userID] = p
	f.mu.Unlock()
}

type fakeIdentityStore struct {
	mu sync.Mutex

	byLogin   map[string]uuid.UUID
	createErr error
	deleted   []uuid.UUID
}

func newFakeIdentityStore() *fakeIdentityStore {
	return &fakeIdentityStore{byLogin: map[string]uuid.UUID{}}
}

func (f *fakeIdentityStore) Create(ctx context.Context, login, password string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	if _, ok := f.byLogin[login]; ok {
		return uuid.Nil, apperror.Wrap(apperror.ErrConflict, "login already registered")
	}
	id := uuid.New()
	f.byLogin[login] = id
	return id, nil
}

func (f *fakeIdentityStore) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for login, existing := range f.byLogin {
		if existing == id {
			delete(f.byLogin, login)
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIdentityStore) Authenticate(ctx context.Context, login, password string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byLogin[login]
	if !ok {
		return uuid.Nil, apperror.Wrap(apperror.ErrUnauthorized, "invalid credentials")
	}
	return id, nil
}

func (f *fakeIdentityStore) exists(login string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byLogin[login]
	return ok
}

type fakeRoleRepo struct {
	mu sync.Mutex

	grants    map[uuid.UUID]model.Role
	createErr error
}

func newFakeRoleRepo() *fakeRoleRepo {
	return &fakeRoleRepo{grants: map[uuid.UUID]model.Role{}}
}

func (f *fakeRoleRepo) Create(ctx context.Context, userID uuid.UUID, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.grants[userID] = role
	return nil
}

func (f *fakeRoleRepo) Resolve(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if role, ok := f.grants[userID]; ok {
		return role, nil
	}
	return model.RoleStudent, nil
}

func (f *fakeRoleRepo) AdminExists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.grants {
		if role == model.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

type fakeMessageRepo struct {
	mu sync.Mutex

	messages  []model.Message
	createErr error
	lastLimit int
}

func (f *fakeMessageRepo) Create(ctx context.Context, message *model.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.Seq = int64(len(f.messages) + 1)
	f.messages = append(f.messages, *message)
	return nil
}

func (f *fakeMessageRepo) ListRecent(ctx context.Context, limit int) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	start := 0
	if len(f.messages) > limit {
		start = len(f.messages) - limit
	}
	out := make([]model.Message, len(f.messages[start:]))
	copy(out, f.messages[start:])
	return out, nil
}

// fakeHub records broadcast events in order.
type fakeHub struct {
	mu     sync.Mutex
	events []ws.Event
}

func (f *fakeHub) Broadcast(ev ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeHub) all() []ws.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ws.Event, len(f.events))
	copy(out, f.events)
	return out
}
