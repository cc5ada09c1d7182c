package web

import (
	"encoding/json"
	"net/http"

	"code-redemption/internal/infra/api"
	"code-redemption/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Server is the operator-facing admin API.
type Server struct {
	codeUC    usecase.CodeUseCase
	attemptUC usecase.AttemptUseCase
	auth      *AuthManager
	keys      *KeyVerifier
	log       *zerolog.Logger
}

func NewServer(
	codeUC usecase.CodeUseCase,
	attemptUC usecase.AttemptUseCase,
	auth *AuthManager,
	keys *KeyVerifier,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		codeUC:    codeUC,
		attemptUC: attemptUC,
		auth:      auth,
		keys:      keys,
		log:       logger,
	}
}

// Router builds the admin routes under /admin/api.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(api.Recover(s.log))
	r.Use(api.TraceID())
	r.Use(api.RequestLog(s.log))

	r.Route("/admin/api", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/stats", s.stats)

			r.Get("/codes", s.listCodes)
			r.Post("/codes/import", s.importCodes)
			r.Get("/codes/export", s.exportCodes)
			r.Get("/codes/{value}/status", s.codeStatus)
			r.Delete("/codes/{id}", s.deleteCode)
			r.Delete("/codes", s.deleteAllCodes)

			r.Get("/attempts", s.listAttempts)
			r.Get("/attempts/export", s.exportAttempts)
			r.Delete("/attempts/{id}", s.deleteAttempt)
			r.Delete("/attempts", s.deleteAllAttempts)
		})
	})
	return r
}

// authMiddleware accepts a session JWT (bearer or cookie) or the raw API key
// as a bearer token for scripted access.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.keys.Configured() {
			s.log.Error().Msg("admin API key is not configured")
			writeError(w, http.StatusForbidden, "admin access is disabled")
			return
		}
		if _, err := s.auth.ParseFromRequest(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}
		if tok, ok := bearer(r); ok && s.keys.Verify(tok) {
			next.ServeHTTP(w, r)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

type loginRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if !s.keys.Configured() {
		writeError(w, http.StatusForbidden, "admin access is disabled")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !s.keys.Verify(req.APIKey) {
		s.log.Warn().Str("remote", api.ResolveClientIP(r, false)).Msg("admin login rejected")
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint admin session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
