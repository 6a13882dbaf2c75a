package httpserver

import (
	"net/http"

	"github.com/fdg312/meal-recommender/internal/auth"
)

// requireSameUser rejects requests whose {userId} path segment differs from
// the authenticated subject. Anonymous requests pass; RequireAuth has already
// rejected them when a token is mandatory.
//
// A mismatch answers 404 so other users' ids are not confirmed.
func requireSameUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sub, ok := auth.GetUserID(r.Context()); ok && sub != r.PathValue("userId") {
			writeError(w, http.StatusNotFound, "not_found", "Not found")
			return
		}
		next(w, r)
	}
}
