package service

import (
	"context"

	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/repository"
)

type ProfileService interface {
	// Directory is the presence read: every profile with its online flag
	// and last_seen, online users first, then by username.
	Directory(ctx context.Context) ([]model.Profile, error)
	// ListAccounts backs the admin listing, newest accounts first.
	ListAccounts(ctx context.Context) ([]model.Profile, error)
}

type profileService struct {
	profiles repository.ProfileRepository
}

func NewProfileService(profiles repository.ProfileRepository) ProfileService {
	return &profileService{profiles: profiles}
}

func (s *profileService) Directory(ctx context.Context) ([]model.Profile, error) {
	return s.profiles.ListDirectory(ctx)
}

func (s *profileService) ListAccounts(ctx context.Context) ([]model.Profile, error) {
	return s.profiles.ListNewest(ctx)
}
