package http

import (
	"errors"
	"net/http"

	"bluegreen-server/internal/adapters/http/request"
	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/domain"
)

// statusFor maps orchestrator errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, request.ErrInvalidBody):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrApplicationNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStateInconsistency):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrOperationInProgress), errors.Is(err, domain.ErrStateConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrHealthGate):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRemoteExecution):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(res response.ResponseWriter, w http.ResponseWriter, err error, data any) {
	res.Write(w, statusFor(err), &response.Response{
		Message: err.Error(),
		Error:   domain.ErrorKind(err),
		Data:    data,
	})
}
