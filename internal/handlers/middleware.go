package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yamdb/apiserver/internal/access"
	"github.com/yamdb/apiserver/internal/services"
	"github.com/yamdb/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

// TokenParser resolves a bearer token to an account id.
type TokenParser interface {
	Parse(token string) (int, error)
}

// UserLookup loads the account a token belongs to.
type UserLookup interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// Authenticate resolves an optional bearer token into the request's account.
// Requests without an Authorization header continue anonymously; a header
// that doesn't resolve to an existing account is rejected.
func Authenticate(tokens TokenParser, users UserLookup, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}
			userID, err := tokens.Parse(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "token is invalid or expired")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, services.ErrNotFound) {
					writeError(w, http.StatusUnauthorized, "user not found")
					return
				}
				respondError(w, r, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userFromContext returns the authenticated account, if any.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func callerFromContext(ctx context.Context) access.Caller {
	user, ok := userFromContext(ctx)
	if !ok {
		return access.Caller{}
	}
	return access.CallerFromUser(user)
}

// authorize evaluates the access rules for the current request and writes
// 401 or 403 on denial.
func authorize(w http.ResponseWriter, r *http.Request, kind access.Kind, target *access.Target) bool {
	caller := callerFromContext(r.Context())
	if access.Authorize(caller, r.Method, kind, target) == access.Allow {
		return true
	}
	if !caller.Authenticated() {
		writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
	} else {
		writeError(w, http.StatusForbidden, "you do not have permission to perform this action")
	}
	return false
}

// requireAccess gates a route on a collection-level access decision.
func requireAccess(kind access.Kind) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !authorize(w, r, kind, nil) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
