package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/oncall-board-api/internal/dto"
	"github.com/noah-isme/oncall-board-api/internal/models"
	"github.com/noah-isme/oncall-board-api/internal/repository"
	appErrors "github.com/noah-isme/oncall-board-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, id string, update models.UserUpdate) error
	Delete(ctx context.Context, id string) error
	DeleteAllExcept(ctx context.Context, keepID string) (int64, error)
}

// UserService handles admin user management. Removing users removes their
// claims on every track, so each removal refreshes every track's viewers.
type UserService struct {
	repo      userRepository
	notifier  ChangeNotifier
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, notifier ChangeNotifier, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, notifier: notifier, cache: cache, validator: validate, logger: logger}
}

// List returns every user.
func (s *UserService) List(ctx context.Context) ([]dto.UserSummary, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	out := make([]dto.UserSummary, len(users))
	for i, u := range users {
		out[i] = dto.NewUserSummary(u)
	}
	return out, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*dto.UserSummary, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapUserErr(err, "failed to load user")
	}
	summary := dto.NewUserSummary(*user)
	return &summary, nil
}

// Update edits a user. A new password is re-hashed before it is stored.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actor models.Actor) (*dto.UserSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user payload")
	}

	update := models.UserUpdate{Username: trimmed(req.Username), FirstName: trimmed(req.FirstName), LastName: trimmed(req.LastName)}
	if req.Role != nil {
		role := models.UserRole(*req.Role)
		if id == actor.ID && role != models.RoleAdmin {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "admins cannot demote themselves")
		}
		update.Role = &role
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
		}
		passwordHash := string(hash)
		update.PasswordHash = &passwordHash
	}

	if err := s.repo.Update(ctx, id, update); err != nil {
		return nil, mapUserErr(err, "failed to update user")
	}
	s.logger.Info("user updated", zap.String("user_id", id), zap.String("actor_id", actor.ID))

	// Names are shown in the grid.
	if update.FirstName != nil || update.LastName != nil {
		s.refreshAll(ctx)
	}
	return s.Get(ctx, id)
}

// Delete removes a user and every claim they hold. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapUserErr(err, "failed to delete user")
	}
	s.logger.Info("user deleted", zap.String("user_id", id), zap.String("actor_id", actor.ID))
	s.refreshAll(ctx)
	return nil
}

// DeleteAllExceptSelf removes every other user along with their claims.
func (s *UserService) DeleteAllExceptSelf(ctx context.Context, actor models.Actor) (int64, error) {
	n, err := s.repo.DeleteAllExcept(ctx, actor.ID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete users")
	}
	s.logger.Warn("users cleared", zap.String("actor_id", actor.ID), zap.Int64("removed", n))
	s.refreshAll(ctx)
	return n, nil
}

func (s *UserService) refreshAll(ctx context.Context) {
	for _, track := range models.Tracks() {
		invalidateSchedule(ctx, s.cache, track)
		s.notifier.Notify(ctx, track)
	}
}

func mapUserErr(err error, message string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "user not found")
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.ErrUsernameTaken
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
	}
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
