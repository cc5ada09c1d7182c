package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"code-redemption/internal/domain/model"
	"code-redemption/internal/infra/logging"
	"code-redemption/internal/infra/metrics"
	"code-redemption/internal/usecase"

	"github.com/rs/zerolog"
)

const maxRedeemBody = 16 << 10

// Server is the public front end: the redeem endpoint plus health and metrics.
type Server struct {
	redeemUC   usecase.RedemptionUseCase
	trustProxy bool
	timeout    time.Duration
	log        *zerolog.Logger
	health     func(ctx context.Context) error
}

func NewServer(redeemUC usecase.RedemptionUseCase, trustProxy bool, timeout time.Duration, health func(ctx context.Context) error, logger *zerolog.Logger) *Server {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Server{redeemUC: redeemUC, trustProxy: trustProxy, timeout: timeout, health: health, log: logger}
}

// Register attaches handlers to the provided mux.
func (s *Server) Register(mux *http.ServeMux) {
	redeem := Chain(http.HandlerFunc(s.handleRedeem),
		Recover(s.log),
		TraceID(),
		ClientIP(s.trustProxy),
		RequestLog(s.log),
		Timeout(s.timeout),
	)
	mux.Handle("/api/v1/redeem", redeem)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
}

// redeemRequest accepts both JSON and form field names.
type redeemRequest struct {
	AuthCode         string `json:"auth_code"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	PurchaseLocation string `json:"purchase_location"`
}

type redeemResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, redeemResponse{Message: "Method not allowed"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRedeemBody)

	in, err := decodeRedeem(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, redeemResponse{Message: "Invalid request body"})
		return
	}

	out, err := s.redeemUC.Authenticate(r.Context(), model.RedemptionRequest{
		Code: in.AuthCode,
		Contact: model.Contact{
			Name:             in.Name,
			Email:            in.Email,
			Phone:            in.Phone,
			PurchaseLocation: in.PurchaseLocation,
		},
		Client: model.ClientInfo{
			IP:        clientIPFrom(r, s.trustProxy),
			UserAgent: r.UserAgent(),
		},
	})
	status := http.StatusOK
	switch {
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("redemption failed")
		status = http.StatusServiceUnavailable
	case out.InternalReason == model.ReasonRateLimited:
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, redeemResponse{Success: out.Success, Message: out.PublicMessage})
}

func decodeRedeem(r *http.Request) (redeemRequest, error) {
	var in redeemRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, fmt.Errorf("decode json: %w", err)
		}
		return in, nil
	}
	if err := r.ParseForm(); err != nil {
		return in, fmt.Errorf("parse form: %w", err)
	}
	in.AuthCode = r.PostForm.Get("auth_code")
	in.Name = r.PostForm.Get("name")
	in.Email = r.PostForm.Get("email")
	in.Phone = r.PostForm.Get("phone")
	in.PurchaseLocation = r.PostForm.Get("purchase_location")
	return in, nil
}

func clientIPFrom(r *http.Request, trustProxy bool) string {
	if ip := logging.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return ResolveClientIP(r, trustProxy)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("health check failed")
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs srv until ctx is cancelled, then shuts it down gracefully.
func ListenAndServe(ctx context.Context, srv *http.Server, logger *zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
