package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/validator"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

var (
	ErrUnsupportedMediaType = errors.New("expected application/json")
	ErrInvalidJSON          = errors.New("invalid JSON body")
	ErrInvalidForm          = errors.New("invalid form body")
)

// handlerFunc receives a bound request and returns a status with a body to
// encode as JSON. A nil body writes no content.
type handlerFunc[R any] func(r *http.Request, req R) (int, any, error)

// bindFunc fills req from the request.
type bindFunc[R any] func(r *http.Request, req *R) error

func wrap[R any](log *slog.Logger, bind bindFunc[R], fn handlerFunc[R]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req R
		if bind != nil {
			if err := bind(r, &req); err != nil {
				writeError(w, r, log, err)
				return
			}
		}

		status, body, err := fn(r, req)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, status, body)
	}
}

// bindJSON decodes a strict JSON body: unknown fields and trailing data are
// rejected.
func bindJSON[R any](r *http.Request, req *R) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return ErrUnsupportedMediaType
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidJSON)
		}
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrInvalidJSON),
		errors.Is(err, ErrInvalidForm),
		errors.Is(err, integration.ErrStateNotFound),
		errors.Is(err, integration.ErrProviderDenied),
		errors.Is(err, integration.ErrMissingCode):
		return http.StatusBadRequest
	case errors.Is(err, integration.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, integration.ErrProviderExchangeFailed):
		return http.StatusUnauthorized
	case errors.Is(err, integration.ErrKeepRequestFailed):
		return http.StatusBadGateway
	default:
		return auth.HTTPStatus(err)
	}
}

// writeError hides internal failures behind a generic message and logs them.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Error: publicMessage(status, err)}

	if verrs := validator.ExtractValidationErrors(err); len(verrs) > 0 {
		body.Fields = make(map[string][]string, len(verrs))
		for _, field := range verrs.Fields() {
			body.Fields[field] = verrs.Get(field)
		}
	}

	switch {
	case status >= http.StatusInternalServerError:
		log.ErrorContext(r.Context(), "request failed",
			logger.Component("http"),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	case errors.Is(err, integration.ErrProviderExchangeFailed):
		log.WarnContext(r.Context(), "provider code exchange rejected",
			logger.Component("http"),
			slog.String("path", r.URL.Path),
			logger.Error(err),
		)
	case status == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	writeJSON(w, status, body)
}

func publicMessage(status int, err error) string {
	switch status {
	case http.StatusInternalServerError:
		return "internal server error"
	case http.StatusBadGateway:
		return "upstream provider error"
	case http.StatusUnauthorized:
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			return auth.ErrInvalidCredentials.Error()
		case errors.Is(err, integration.ErrProviderExchangeFailed):
			return integration.ErrProviderExchangeFailed.Error()
		}
		return "invalid or expired token"
	default:
		return rootMessage(err)
	}
}

// rootMessage returns the first sentinel in err's chain that callers may see.
func rootMessage(err error) string {
	for _, known := range []error{
		ErrUnsupportedMediaType,
		ErrInvalidJSON,
		ErrInvalidForm,
		validator.ErrValidationFailed,
		auth.ErrAccountAlreadyExists,
		auth.ErrAccountInactive,
		auth.ErrForbidden,
		auth.ErrChallengeNotFound,
		auth.ErrChallengeExpired,
		auth.ErrChallengeMismatch,
		integration.ErrStateNotFound,
		integration.ErrProviderDenied,
		integration.ErrMissingCode,
		integration.ErrNotConnected,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}
