package http

import (
	"net/http"

	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/domain"
)

type ApplicationHandler struct {
	svc domain.StatusService
	res response.ResponseWriter
}

func NewApplicationHandler(svc domain.StatusService, res response.ResponseWriter) *ApplicationHandler {
	return &ApplicationHandler{
		svc: svc,
		res: res,
	}
}

func (h *ApplicationHandler) Index(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.svc.List(r.Context())
	if err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    statuses,
	})
}

func (h *ApplicationHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context(), r.PathValue("app"))
	if err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    status,
	})
}
