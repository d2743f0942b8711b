package services

import (
	"context"
	"errors"

	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

// ReservedUsername collides with the /users/me route and can't be registered.
const ReservedUsername = "me"

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserPatch carries the fields of a partial account update. Nil fields are
// left unchanged.
type UserPatch struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
	Bio       *string
	Role      *types.Role
}

// UserService encapsulates account management use-cases.
type UserService struct {
	repo UserRepository
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	return user, normalize(err, "user not found")
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	return user, normalize(err, "user not found")
}

func (s *UserService) List(ctx context.Context, search string, offset, limit int) ([]types.User, int, error) {
	return s.repo.List(ctx, search, offset, limit)
}

// Create adds an account on behalf of an administrator.
func (s *UserService) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.Username == ReservedUsername {
		return types.User{}, invalid("username", `username "me" is reserved`)
	}
	if user.Role == "" {
		user.Role = types.RoleUser
	}
	if !user.Role.Valid() {
		return types.User{}, invalid("role", "unknown role")
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return types.User{}, userWriteError(err)
	}
	return created, nil
}

// Update applies patch to the account named username. Only administrators
// reach this path, so role changes are honoured.
func (s *UserService) Update(ctx context.Context, username string, patch UserPatch) (types.User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return types.User{}, normalize(err, "user not found")
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return types.User{}, invalid("role", "unknown role")
	}
	return s.save(ctx, user, patch)
}

// UpdateProfile applies patch to the caller's own account. Role and email
// are read-only here: an account holder can't promote themselves.
func (s *UserService) UpdateProfile(ctx context.Context, userID int, patch UserPatch) (types.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, normalize(err, "user not found")
	}
	patch.Role = nil
	patch.Email = nil
	return s.save(ctx, user, patch)
}

func (s *UserService) Delete(ctx context.Context, username string) error {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return normalize(err, "user not found")
	}
	return normalize(s.repo.Delete(ctx, user.ID), "user not found")
}

func (s *UserService) save(ctx context.Context, user types.User, patch UserPatch) (types.User, error) {
	if patch.Username != nil {
		if *patch.Username == ReservedUsername {
			return types.User{}, invalid("username", `username "me" is reserved`)
		}
		user.Username = *patch.Username
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Bio != nil {
		user.Bio = *patch.Bio
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, userWriteError(err)
	}
	return updated, nil
}

func userWriteError(err error) error {
	var constraintErr *store.ConstraintError
	if errors.As(err, &constraintErr) && errors.Is(err, store.ErrConflict) {
		switch constraintErr.Constraint {
		case store.ConstraintUsersUsername:
			return conflict("username", "a user with this username already exists")
		case store.ConstraintUsersEmail:
			return conflict("email", "a user with this email already exists")
		}
		return conflict("", "user already exists")
	}
	return normalize(err, "user not found")
}
