package account

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/authcore/pkg/validator"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

type authorizationResponse struct {
	AuthorizationURL string    `json:"authorization_url"`
	State            string    `json:"state"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type callbackRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type callbackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  int64  `json:"user_id,omitempty"`
}

type statusResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        int64  `json:"user_id"`
	Message       string `json:"message"`
}

type createNoteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type noteResponse struct {
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	CreateTime time.Time `json:"create_time"`
}

type keepHandlers struct {
	coordinator *integration.Coordinator
	vault       *integration.Vault
	keep        *integration.KeepClient
}

func (h *keepHandlers) begin(r *http.Request, _ struct{}) (int, any, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return 0, nil, err
	}
	a, err := h.coordinator.Begin(r.Context(), identity.ID)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, authorizationResponse{
		AuthorizationURL: a.URL,
		State:            a.State,
		ExpiresAt:        a.ExpiresAt,
	}, nil
}

// callback is unauthenticated: the state token identifies the user. A denial
// from the provider is reported in the body, not as a transport error.
func (h *keepHandlers) callback(r *http.Request, req callbackRequest) (int, any, error) {
	out, err := h.coordinator.Complete(r.Context(), integration.Callback{
		Code:  req.Code,
		State: req.State,
		Error: req.Error,
	})
	if errors.Is(err, integration.ErrProviderDenied) {
		return http.StatusOK, callbackResponse{
			Success: false,
			Message: "Authorization failed: " + req.Error,
			UserID:  out.IdentityID,
		}, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, callbackResponse{
		Success: true,
		Message: "Google Keep connected successfully",
		UserID:  out.IdentityID,
	}, nil
}

func (h *keepHandlers) status(r *http.Request, _ struct{}) (int, any, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return 0, nil, err
	}
	connected, err := h.vault.IsConnected(r.Context(), identity.ID)
	if err != nil {
		return 0, nil, err
	}
	msg := "User needs to authenticate"
	if connected {
		msg = "User is connected to Google Keep"
	}
	return http.StatusOK, statusResponse{Authenticated: connected, UserID: identity.ID, Message: msg}, nil
}

func (h *keepHandlers) disconnect(r *http.Request, _ struct{}) (int, any, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return 0, nil, err
	}
	revoked, err := h.vault.Revoke(r.Context(), identity.ID)
	if err != nil {
		return 0, nil, err
	}
	if !revoked {
		return 0, nil, integration.ErrNotConnected
	}
	return http.StatusNoContent, nil, nil
}

func (h *keepHandlers) createNote(r *http.Request, req createNoteRequest) (int, any, error) {
	identity, err := currentIdentity(r)
	if err != nil {
		return 0, nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := validator.Apply(
		validator.MaxLenString("title", req.Title, 1000),
		validator.RequiredString("body", req.Body),
		validator.MaxBytesString("body", req.Body, 20000),
	); err != nil {
		return 0, nil, err
	}

	note, err := h.keep.CreateNote(r.Context(), identity.ID, req.Title, req.Body)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, noteResponse{
		Name:       note.Name,
		Title:      note.Title,
		Body:       note.Body.Text.Text,
		CreateTime: note.CreateTime,
	}, nil
}

func currentIdentity(r *http.Request) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return identity, nil
}
