package repository

import (
	"context"
	"errors"

	"campusconnect.id/communityhub/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleGrantRepository interface {
	Create(ctx context.Context, userID uuid.UUID, role model.Role) error
	// Resolve returns the effective role for a user. A missing grant
	// resolves to student; no default row is ever inserted.
	Resolve(ctx context.Context, userID uuid.UUID) (model.Role, error)
	AdminExists(ctx context.Context) (bool, error)
}

type roleGrantRepository struct {
	db *gorm.DB
}

func NewRoleGrantRepository(db *gorm.DB) RoleGrantRepository {
	return &roleGrantRepository{db: db}
}

func (r *roleGrantRepository) Create(ctx context.Context, userID uuid.UUID, role model.Role) error {
	grant := model.RoleGrant{UserID: userID, Role: role}
	return r.db.WithContext(ctx).Create(&grant).Error
}

func (r *roleGrantRepository) Resolve(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	var grant model.RoleGrant
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&grant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.RoleStudent, nil
		}
		return "", err
	}

	return grant.Role, nil
}

func (r *roleGrantRepository) AdminExists(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.RoleGrant{}).
		Where("role = ?", model.RoleAdmin).
		Count(&count).Error; err != nil {
		return false, err
	}

	return count > 0, nil
}
