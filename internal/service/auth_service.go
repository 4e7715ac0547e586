package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/identity"
	"campusconnect.id/communityhub/internal/repository"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
)

type AuthService interface {
	Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error)
}

type authService struct {
	ids         identity.Store
	profiles    repository.ProfileRepository
	roles       repository.RoleGrantRepository
	loginDomain string
	secret      string
	tokenTTL    time.Duration
}

func NewAuthService(ids identity.Store, profiles repository.ProfileRepository, roles repository.RoleGrantRepository, loginDomain, secret string, tokenTTL time.Duration) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &authService{
		ids:         ids,
		profiles:    profiles,
		roles:       roles,
		loginDomain: loginDomain,
		secret:      secret,
		tokenTTL:    tokenTTL,
	}
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*dto.AuthResponse, error) {
	// Usernames double as login handles with a fixed domain suffix.
	login := strings.ToLower(strings.TrimSpace(input.Username)) + "@" + s.loginDomain

	userID, err := s.ids.Authenticate(ctx, login, input.Password)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByUserID(ctx, userID)
	if err != nil {
		// Identity without a profile should not exist; refuse the login
		// rather than hand out a half-usable session.
		return nil, apperror.Wrap(apperror.ErrUnauthorized, "invalid credentials")
	}

	role, err := s.roles.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving role: %v", apperror.ErrDependency, err)
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &dto.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenTTL.Seconds()),
		User: dto.AuthUser{
			ID:          userID.String(),
			Username:    profile.Username,
			DisplayName: profile.DisplayName,
			Role:        role,
		},
	}, nil
}
