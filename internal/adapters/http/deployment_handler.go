package http

import (
	"fmt"
	"net/http"

	"bluegreen-server/internal/adapters/http/middleware"
	"bluegreen-server/internal/adapters/http/request"
	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/domain"
	"bluegreen-server/internal/logger"
)

type DeployRequest struct {
	PullGithub    *bool `json:"pull_github"`
	RunMigrations *bool `json:"run_migrations"`
	CreateBackup  *bool `json:"create_backup"`
}

func (req DeployRequest) Options() domain.DeployOptions {
	opts := domain.DefaultDeployOptions()
	if req.PullGithub != nil {
		opts.PullLatest = *req.PullGithub
	}
	if req.RunMigrations != nil {
		opts.RunMigrations = *req.RunMigrations
	}
	if req.CreateBackup != nil {
		opts.CreateBackup = *req.CreateBackup
	}
	return opts
}

type DeploymentHandler struct {
	svc domain.DeploymentService
	dec request.RequestDecoder
	res response.ResponseWriter
	log logger.Logger
}

func NewDeploymentHandler(svc domain.DeploymentService, dec request.RequestDecoder, res response.ResponseWriter, log logger.Logger) *DeploymentHandler {
	return &DeploymentHandler{
		svc: svc,
		dec: dec,
		res: res,
		log: log,
	}
}

func (h *DeploymentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := h.dec.Decode(r, &req); err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	actor, _ := middleware.GetActor(r.Context())

	run, err := h.svc.Deploy(r.Context(), r.PathValue("app"), req.Options(), actor)
	if err != nil {
		var data any
		if run != nil {
			data = run
		}
		writeError(h.res, w, err, data)
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: fmt.Sprintf("Standby %s is ready. Verify it at %s before switching traffic.", run.Target, run.AccessURL),
		Data:    run,
	})
}
