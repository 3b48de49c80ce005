package middleware

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// OwnerLookup resolves the owner of an account.
type OwnerLookup interface {
	AccountOwner(ctx context.Context, accountID string) (string, error)
}

// RequireAccountOwner lets the request through only when the account named
// by the URL parameter belongs to the authenticated user.
func RequireAccountOwner(lookup OwnerLookup, param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ownerID, err := lookup.AccountOwner(r.Context(), chi.URLParam(r, param))
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "account not found", http.StatusNotFound)
				return
			}
			if err != nil {
				http.Error(w, "unable to verify account owner", http.StatusInternalServerError)
				return
			}
			if ownerID != userID {
				http.Error(w, "account belongs to another user", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
