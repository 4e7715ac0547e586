// Package identity owns login credentials. The rest of the system treats
// it as an external collaborator: it sees opaque identity ids and the
// Store interface, never the credentials table.
package identity

import (
	"context"
	"errors"
	"time"

	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Identity struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Login        string    `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Identity) TableName() string {
	return "identities"
}

type Store interface {
	// Create registers a new login and returns its opaque id. Returns
	// apperror.ErrConflict when the login is already taken.
	Create(ctx context.Context, login, password string) (uuid.UUID, error)
	// Delete removes an identity. Used only as rollback compensation.
	Delete(ctx context.Context, id uuid.UUID) error
	// Authenticate verifies credentials and returns the identity id.
	// Bad login and bad password both map to apperror.ErrUnauthorized.
	Authenticate(ctx context.Context, login, password string) (uuid.UUID, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Create(ctx context.Context, login, password string) (uuid.UUID, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return uuid.Nil, err
	}

	id := Identity{
		ID:           uuid.New(),
		Login:        login,
		PasswordHash: string(hash),
	}
	if err := s.db.WithContext(ctx).Create(&id).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return uuid.Nil, apperror.Wrap(apperror.ErrConflict, "login already registered")
		}
		return uuid.Nil, err
	}

	return id.ID, nil
}

func (s *gormStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&Identity{}, "id = ?", id).Error
}

func (s *gormStore) Authenticate(ctx context.Context, login, password string) (uuid.UUID, error) {
	var id Identity
	if err := s.db.WithContext(ctx).Where("login = ?", login).First(&id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, apperror.Wrap(apperror.ErrUnauthorized, "invalid credentials")
		}
		return uuid.Nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)); err != nil {
		return uuid.Nil, apperror.Wrap(apperror.ErrUnauthorized, "invalid credentials")
	}

	return id.ID, nil
}
