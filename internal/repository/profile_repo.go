package repository

import (
	"context"
	"errors"
	"time"

	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	FindByUsername(ctx context.Context, username string) (*model.Profile, error)
	// ListDirectory returns all profiles ordered online-first, then by
	// username ascending.
	ListDirectory(ctx context.Context) ([]model.Profile, error)
	// ListNewest returns all profiles ordered by creation time, newest
	// first. Used by the admin listing.
	ListNewest(ctx context.Context) ([]model.Profile, error)
	// SetPresence writes the presence columns for a user. Only the
	// presence tracker calls this.
	SetPresence(ctx context.Context, userID uuid.UUID, online bool, seenAt time.Time) error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *model.Profile) error {
	if err := r.db.WithContext(ctx).Create(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperror.Wrap(apperror.ErrConflict, "username already taken")
		}
		return err
	}
	return nil
}

func (r *profileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) FindByUsername(ctx context.Context, username string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

func (r *profileRepository) ListDirectory(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).
		Order("is_online DESC").
		Order("username ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *profileRepository) ListNewest(ctx context.Context) ([]model.Profile, error) {
	var profiles []model.Profile
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}

	return profiles, nil
}

func (r *profileRepository) SetPresence(ctx context.Context, userID uuid.UUID, online bool, seenAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Profile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"is_online": online,
			"last_seen": seenAt,
		}).Error
}
