package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yamdb/apiserver/internal/store"
	"github.com/yamdb/apiserver/types"
)

const confirmationSubject = "Confirmation code"

// ErrInvalidCode is returned by RedeemCode when the code doesn't match the
// account's current state.
var ErrInvalidCode = &FieldError{
	Field:   "confirmation_code",
	Message: "confirmation code invalid",
	Kind:    ErrValidation,
}

// CodeSender delivers a message out of band. Send must return only after
// the message was accepted or delivery failed.
type CodeSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// CodeGenerator derives and checks confirmation codes.
type CodeGenerator interface {
	Generate(user types.User) string
	Verify(user types.User, code string) bool
}

// TokenIssuer issues bearer tokens for an account id.
type TokenIssuer interface {
	Issue(userID int) (string, error)
}

// IdentityService runs the signup and token exchange handshake. No
// password is ever stored: possession of the emailed code is the proof.
type IdentityService struct {
	users  UserRepository
	codes  CodeGenerator
	tokens TokenIssuer
	sender CodeSender
	log    *slog.Logger
}

func NewIdentityService(users UserRepository, codes CodeGenerator, tokens TokenIssuer, sender CodeSender, log *slog.Logger) *IdentityService {
	if log == nil {
		log = slog.Default()
	}
	return &IdentityService{
		users:  users,
		codes:  codes,
		tokens: tokens,
		sender: sender,
		log:    log,
	}
}

// Signup registers (username, email) or finds the account that already owns
// exactly that pair, then mails it a confirmation code. Repeating Signup
// with the same pair re-sends the code.
func (s *IdentityService) Signup(ctx context.Context, username, email string) (types.User, error) {
	if username == ReservedUsername {
		return types.User{}, invalid("username", `username "me" is reserved`)
	}

	user, err := s.findPair(ctx, username, email)
	if err != nil {
		return types.User{}, err
	}

	created := false
	if user.ID == 0 {
		user, err = s.users.Create(ctx, types.User{
			Username: username,
			Email:    email,
			Role:     types.RoleUser,
		})
		switch {
		case err == nil:
			created = true
		case errors.Is(err, store.ErrConflict):
			// Lost a race with a concurrent signup: re-check so the caller
			// sees the same answer as the pre-check path.
			user, err = s.findPair(ctx, username, email)
			if err != nil {
				return types.User{}, err
			}
			if user.ID == 0 {
				return types.User{}, userWriteError(store.ErrConflict)
			}
		default:
			return types.User{}, err
		}
	}

	code := s.codes.Generate(user)
	body := fmt.Sprintf("Your confirmation code: %s", code)
	if err := s.sender.Send(ctx, user.Email, confirmationSubject, body); err != nil {
		if created {
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				s.log.ErrorContext(ctx, "failed to remove account after delivery failure",
					"username", user.Username, "error", delErr)
			}
		}
		return types.User{}, fmt.Errorf("deliver confirmation code: %w", err)
	}

	s.log.InfoContext(ctx, "confirmation code sent", "username", user.Username, "created", created)
	return user, nil
}

// findPair returns the account owning (username, email), a zero User when
// neither is taken, or a conflict when they belong to different accounts.
func (s *IdentityService) findPair(ctx context.Context, username, email string) (types.User, error) {
	byEmail, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if byEmail.Username != username {
			return types.User{}, conflict("email", "email already registered under a different username")
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return types.User{}, err
	}

	byUsername, err := s.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if byUsername.Email != email {
			return types.User{}, conflict("username", "username already registered under a different email")
		}
		return byUsername, nil
	case errors.Is(err, store.ErrNotFound):
		return types.User{}, nil
	default:
		return types.User{}, err
	}
}

// RedeemCode exchanges a confirmation code for a bearer token. Codes are not
// consumed; one stays valid until the account changes.
func (s *IdentityService) RedeemCode(ctx context.Context, username, code string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", normalize(err, "user not found")
	}
	if !s.codes.Verify(user, code) {
		return "", ErrInvalidCode
	}
	return s.tokens.Issue(user.ID)
}
