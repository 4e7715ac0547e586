package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"campusconnect.id/communityhub/internal/dto"
	"campusconnect.id/communityhub/internal/identity"
	"campusconnect.id/communityhub/internal/model"
	"campusconnect.id/communityhub/internal/repository"
	"campusconnect.id/communityhub/pkg/apperror"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const maxBulkErrors = 10

// ProvisionService creates accounts: a login identity, a profile and a
// role grant as one logical unit, with compensating rollback. Identity
// creation is not reversible at the store level in general, so any
// failure between it and a committed profile must delete the identity or
// the username stays blocked by an orphan.
type ProvisionService interface {
	CreateAccount(ctx context.Context, caller uuid.UUID, input dto.CreateUserInput) (*dto.CreateUserResponse, error)
	// BulkCreate runs the pipeline independently per account, continuing
	// past individual failures. One account's failure never rolls back
	// another's success. Cancelling ctx stops starting new accounts;
	// committed ones stay committed.
	BulkCreate(ctx context.Context, caller uuid.UUID, inputs []dto.CreateUserInput) (*dto.BulkCreateResponse, error)
	// SetupInitialAdmin provisions the first administrator at startup.
	// A no-op when an admin grant already exists.
	SetupInitialAdmin(ctx context.Context, username, password string) error
}

type provisionService struct {
	ids      identity.Store
	profiles repository.ProfileRepository
	roles    repository.RoleGrantRepository

	loginDomain  string
	storeTimeout time.Duration
	parallelism  int
}

func NewProvisionService(ids identity.Store, profiles repository.ProfileRepository, roles repository.RoleGrantRepository, loginDomain string, storeTimeout time.Duration, parallelism int) ProvisionService {
	if loginDomain == "" {
		loginDomain = "college.local"
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &provisionService{
		ids:          ids,
		profiles:     profiles,
		roles:        roles,
		loginDomain:  loginDomain,
		storeTimeout: storeTimeout,
		parallelism:  parallelism,
	}
}

func (s *provisionService) CreateAccount(ctx context.Context, caller uuid.UUID, input dto.CreateUserInput) (*dto.CreateUserResponse, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}

	identityID, warning, err := s.provisionAccount(ctx, input, model.RoleStudent)
	if err != nil {
		return nil, err
	}

	return &dto.CreateUserResponse{
		IdentityID: identityID.String(),
		Warning:    warning,
	}, nil
}

func (s *provisionService) BulkCreate(ctx context.Context, caller uuid.UUID, inputs []dto.CreateUserInput) (*dto.BulkCreateResponse, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperror.Wrap(apperror.ErrValidation, "users array required")
	}

	var (
		mu     sync.Mutex
		result dto.BulkCreateResponse
	)
	fail := func(username string, err error) {
		if username == "" {
			username = "unknown"
		}
		mu.Lock()
		defer mu.Unlock()
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", username, err))
	}

	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)

	for _, input := range inputs {
		// An aborted import stops issuing new create steps; accounts
		// already committed remain committed.
		if ctx.Err() != nil {
			fail(input.Username, apperror.Wrap(apperror.ErrDependency, "import aborted"))
			continue
		}

		g.Go(func() error {
			if _, _, err := s.provisionAccount(ctx, input, model.RoleStudent); err != nil {
				fail(input.Username, err)
				return nil
			}
			mu.Lock()
			result.Created++
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	if len(result.Errors) > maxBulkErrors {
		result.Errors = result.Errors[:maxBulkErrors]
	}
	if result.Errors == nil {
		result.Errors = []string{}
	}

	return &result, nil
}

func (s *provisionService) SetupInitialAdmin(ctx context.Context, username, password string) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	exists, err := s.roles.AdminExists(stepCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("%w: checking existing admins: %v", apperror.ErrDependency, err)
	}
	if exists {
		log.Println("setup: admin already exists, skipping initial admin")
		return nil
	}

	normalized := strings.ToLower(strings.TrimSpace(username))
	displayName := "Administrator"
	identityID, warning, err := s.provisionAccount(ctx, dto.CreateUserInput{
		Username:    username,
		Password:    password,
		DisplayName: &displayName,
	}, model.RoleAdmin)
	switch {
	case err == nil && warning == "":
		log.Printf("setup: initial admin %q created", normalized)
		return nil
	case err == nil:
		// Account committed but the grant step failed; retry it below.
	case errors.Is(err, apperror.ErrConflict):
		// A previous boot committed the account without its admin grant.
		// Re-grant the existing account instead of refusing to start.
		stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		profile, ferr := s.profiles.FindByUsername(stepCtx, normalized)
		cancel()
		if ferr != nil {
			return fmt.Errorf("%w: looking up existing admin account: %v", apperror.ErrDependency, ferr)
		}
		identityID = profile.UserID
	default:
		return err
	}

	grantCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	err = s.roles.Create(grantCtx, identityID, model.RoleAdmin)
	cancel()
	if err != nil {
		// The account works with the implicit student default; failing
		// startup here would loop forever on the committed username.
		log.Printf("setup: admin grant for %q failed, will retry next boot: %v", normalized, err)
		return nil
	}

	log.Printf("setup: initial admin %q created", normalized)
	return nil
}

// provisionAccount runs the per-account state machine:
//
//	validate -> create identity -> create profile -> create role grant
//
// Profile failure compensates by deleting the identity. Role grant
// failure is reported as a warning, not unwound: the account works with
// the implicit student default, and deleting a working account over
// missing metadata would be worse.
func (s *provisionService) provisionAccount(ctx context.Context, input dto.CreateUserInput, role model.Role) (uuid.UUID, string, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" || input.Password == "" {
		return uuid.Nil, "", apperror.Wrap(apperror.ErrValidation, "username and password are required")
	}
	login := username + "@" + s.loginDomain

	// Username uniqueness is checked before identity creation: identity
	// creation is the irreversible step, so the cheap check goes first.
	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	_, err := s.profiles.FindByUsername(stepCtx, username)
	cancel()
	if err == nil {
		return uuid.Nil, "", apperror.Wrap(apperror.ErrConflict, "username already taken")
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return uuid.Nil, "", fmt.Errorf("%w: checking username: %v", apperror.ErrDependency, err)
	}

	stepCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	identityID, err := s.ids.Create(stepCtx, login, input.Password)
	cancel()
	if err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return uuid.Nil, "", err
		}
		return uuid.Nil, "", fmt.Errorf("%w: creating identity: %v", apperror.ErrDependency, err)
	}

	profile := &model.Profile{
		UserID:      identityID,
		Username:    username,
		DisplayName: normalizeOptional(input.DisplayName),
		LastSeen:    time.Now().UTC(),
	}
	stepCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.profiles.Create(stepCtx, profile)
	cancel()
	if err != nil {
		s.rollbackIdentity(ctx, identityID, username)
		if errors.Is(err, apperror.ErrConflict) {
			return uuid.Nil, "", err
		}
		return uuid.Nil, "", fmt.Errorf("%w: creating profile: %v", apperror.ErrDependency, err)
	}

	var warning string
	stepCtx, cancel = context.WithTimeout(ctx, s.storeTimeout)
	err = s.roles.Create(stepCtx, identityID, role)
	cancel()
	if err != nil {
		warning = fmt.Sprintf("role grant failed, account defaults to student: %v", err)
		log.Printf("provision: %s: %s", username, warning)
	}

	return identityID, warning, nil
}

// rollbackIdentity is the compensating action for a failed profile step.
// It runs detached from the request's cancellation so an aborted caller
// cannot leave an orphaned identity behind.
func (s *provisionService) rollbackIdentity(ctx context.Context, identityID uuid.UUID, username string) {
	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()
	if err := s.ids.Delete(compCtx, identityID); err != nil {
		// Orphaned identity: username reuse is blocked until reconciled.
		log.Printf("provision: %s: rollback failed, orphaned identity %s: %v", username, identityID, err)
	}
}

func (s *provisionService) requireAdmin(ctx context.Context, caller uuid.UUID) error {
	stepCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	role, err := s.roles.Resolve(stepCtx, caller)
	if err != nil {
		return fmt.Errorf("%w: resolving caller role: %v", apperror.ErrDependency, err)
	}
	if role != model.RoleAdmin {
		return apperror.Wrap(apperror.ErrForbidden, "admin access required")
	}
	return nil
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
