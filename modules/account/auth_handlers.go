package account

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/svc/auth"
)

// envelope is the response shape shared by every account endpoint.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type identityResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      auth.Role `json:"role"`
}

func newIdentityResponse(i *auth.Identity) identityResponse {
	return identityResponse{
		ID:        i.ID,
		Email:     i.Email,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Role:      i.Role,
	}
}

type verifyEmailRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	OTP       string `json:"otp"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type authHandlers struct {
	accounts *auth.AccountService
	log      *slog.Logger
}

func (h *authHandlers) verifyEmail(r *http.Request, req verifyEmailRequest) (int, any, error) {
	if err := h.accounts.RequestEmailVerification(r.Context(), req.Email, req.FirstName); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, envelope{Message: "OTP sent successfully"}, nil
}

func (h *authHandlers) verifyOTP(r *http.Request, req verifyOTPRequest) (int, any, error) {
	if err := h.accounts.ConfirmEmail(r.Context(), req.Email, req.OTP); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, envelope{Message: "Email verified successfully"}, nil
}

func (h *authHandlers) register(r *http.Request, req registerRequest) (int, any, error) {
	identity, err := h.accounts.Register(r.Context(), auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Code:      req.OTP,
	})
	if err != nil {
		return 0, nil, err
	}
	h.log.InfoContext(r.Context(), "identity registered",
		logger.Component("http"),
		logger.IdentityID(identity.ID),
	)
	return http.StatusCreated, envelope{Message: "User registered successfully", Data: newIdentityResponse(identity)}, nil
}

func (h *authHandlers) login(r *http.Request, req loginRequest) (int, any, error) {
	pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, envelope{Message: "User logged in successfully", Data: pair}, nil
}

// token serves the OAuth2 password grant for clients that expect a bare
// token response.
func (h *authHandlers) token(r *http.Request, req loginRequest) (int, any, error) {
	pair, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, pair, nil
}

func (h *authHandlers) refresh(r *http.Request, req refreshRequest) (int, any, error) {
	pair, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, envelope{Message: "Token refreshed successfully", Data: pair}, nil
}

func (h *authHandlers) me(r *http.Request, _ struct{}) (int, any, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return 0, nil, auth.ErrIdentityNotFound
	}
	return http.StatusOK, envelope{Message: "ok", Data: newIdentityResponse(identity)}, nil
}

// bindPasswordGrant reads username and password from an
// application/x-www-form-urlencoded body.
func bindPasswordGrant(r *http.Request, req *loginRequest) error {
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidForm, err)
	}
	if grant := r.PostForm.Get("grant_type"); grant != "" && grant != "password" {
		return auth.ErrInvalidCredentials
	}
	req.Email = strings.TrimSpace(r.PostForm.Get("username"))
	req.Password = r.PostForm.Get("password")
	return nil
}
