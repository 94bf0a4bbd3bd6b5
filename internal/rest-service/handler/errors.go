package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/konorlevich/cloud_cabinet/internal/rest-service/auth"
	"github.com/konorlevich/cloud_cabinet/internal/rest-service/storage"
)

var (
	errCantParseBody = errors.New("can't parse request body")
	errNoFile        = errors.New("file has not been provided")
	errBadID         = errors.New("invalid id")
	errNoPrincipal   = errors.New("no principal in request")
)

// APIError is the body of every failed response.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func statusOf(err error) int {
	var ve validator.ValidationErrors
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ve),
		errors.Is(err, errCantParseBody),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadID),
		errors.Is(err, storage.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errNoPrincipal),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, storage.ErrQuotaExceeded):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, storage.ErrInconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, storage.ErrRemoteStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newAPIError(err error) *APIError {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "something went wrong, please try later"
	}
	return &APIError{Status: status, Message: msg}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(rw).Encode(v)
}

// writeError logs server side failures and answers with the mapped status.
func writeError(rw http.ResponseWriter, l *log.Entry, err error) {
	apiErr := newAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		l.WithError(err).Error("request failed")
	} else {
		l.WithError(err).Debug("request rejected")
	}
	writeJSON(rw, apiErr.Status, apiErr)
}
