package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/quantfin/papertrade/pkg/auth"
)

type contextKey int

const principalKey contextKey = iota

// requireAuth resolves the bearer credential via the external verifier and
// injects the principal into the request context. Verification failures are
// surfaced as 401 and never retried.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing bearer token", "")
			return
		}

		principal, err := s.verifier.Verify(token)
		if err != nil {
			s.logger.Warnw("auth_failed", "err", err)
			respondError(w, http.StatusUnauthorized, "invalid credential", "")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next(w, r.WithContext(ctx))
	}
}

func principalFrom(r *http.Request) auth.Principal {
	p, _ := r.Context().Value(principalKey).(auth.Principal)
	return p
}
