package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/petmarket/internal/common"
)

// errorBody is the envelope of every failed response. Error carries the
// underlying error text in development only.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto its HTTP status and client-facing message.
func statusFor(err error) (int, string) {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrEmailTaken),
		errors.Is(err, common.ErrExpiredOrInvalid):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired),
		errors.Is(err, common.ErrAlreadyAuthenticated):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, common.ErrForbidden.Error()
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, common.ErrorNotFound.Error()
	default:
		return http.StatusInternalServerError, common.ErrorInternal.Error()
	}
}

// rootMessage returns the text of the first sentinel err matches, so
// wrapping context never reaches the client.
func rootMessage(err error) string {
	for _, s := range []error{
		common.ErrInvalidCredentials,
		common.ErrTokenExpired,
		common.ErrInvalidToken,
		common.ErrAlreadyAuthenticated,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return common.ErrorUnauthorized.Error()
}

// fail writes the error envelope and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}

	body := errorBody{Message: msg}
	if s.development {
		body.Error = err.Error()
	}
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON object body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return common.NewValidationError("", "request body must be a valid JSON object")
	}
	return nil
}
