package http

import (
	"fmt"
	"net/http"

	"bluegreen-server/internal/adapters/http/middleware"
	"bluegreen-server/internal/adapters/http/request"
	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/domain"
)

type SwitchRequest struct {
	RequireApproval *bool `json:"require_approval"`
	Emergency       *bool `json:"emergency"`
}

func (req SwitchRequest) Options() domain.SwitchOptions {
	opts := domain.DefaultSwitchOptions()
	if req.RequireApproval != nil {
		opts.RequireApproval = *req.RequireApproval
	}
	if req.Emergency != nil {
		opts.Emergency = *req.Emergency
	}
	return opts
}

type TrafficHandler struct {
	ctrl domain.TrafficController
	dec  request.RequestDecoder
	res  response.ResponseWriter
}

func NewTrafficHandler(ctrl domain.TrafficController, dec request.RequestDecoder, res response.ResponseWriter) *TrafficHandler {
	return &TrafficHandler{
		ctrl: ctrl,
		dec:  dec,
		res:  res,
	}
}

func (h *TrafficHandler) Switch(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := h.dec.Decode(r, &req); err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	actor, _ := middleware.GetActor(r.Context())

	result, err := h.ctrl.Switch(r.Context(), r.PathValue("app"), req.Options(), actor)
	if err != nil {
		var data any
		if result != nil {
			data = result
		}
		writeError(h.res, w, err, data)
		return
	}

	if result.Status == domain.SwitchApprovalRequired {
		h.res.Write(w, http.StatusAccepted, &response.Response{
			Message: fmt.Sprintf("Approval required to switch %s from %s to %s. Repeat with require_approval=false to execute.",
				result.App, result.Live.Slot, result.Standby.Slot),
			Data: result,
		})
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: fmt.Sprintf("Traffic switched to %s (%s)", result.Live.Slot, result.Live.Address),
		Data:    result,
	})
}
