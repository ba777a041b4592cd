package http

import (
	"net/http"

	"bluegreen-server/internal/adapters/http/response"
	"bluegreen-server/internal/adapters/http/validator"
	"bluegreen-server/internal/domain"
)

type HistoryQuery struct {
	Page  int    `json:"page" validate:"gte=0"`
	Limit int    `json:"limit" validate:"gte=0,max=1000"`
	Kind  string `json:"kind" validate:"omitempty,oneof=deploy switch"`
}

type HistoryHandler struct {
	svc       domain.HistoryService
	registry  domain.ApplicationRegistry
	validator validator.Validator
	res       response.ResponseWriter
}

func NewHistoryHandler(svc domain.HistoryService, registry domain.ApplicationRegistry, v validator.Validator, res response.ResponseWriter) *HistoryHandler {
	return &HistoryHandler{
		svc:       svc,
		registry:  registry,
		validator: v,
		res:       res,
	}
}

func (h *HistoryHandler) Index(w http.ResponseWriter, r *http.Request) {
	app, err := h.registry.Lookup(r.PathValue("app"))
	if err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	q := r.URL.Query()
	query := HistoryQuery{
		Page:  GetInt(q, "page", 0),
		Limit: GetInt(q, "limit", 0),
		Kind:  GetString(q, "kind", ""),
	}
	if errs := h.validator.Validate(&query); len(errs) > 0 {
		h.res.WriteValidationError(w, errs)
		return
	}

	result, err := h.svc.List(r.Context(), domain.OperationListOptions{
		ListOptions: domain.ListOptions{
			Page:       query.Page,
			Limit:      query.Limit,
			Search:     GetString(q, "search", ""),
			IsPaginate: GetBool(q, "paginate"),
		},
		App:  app.Name,
		Kind: domain.OperationKind(query.Kind),
	})
	if err != nil {
		writeError(h.res, w, err, nil)
		return
	}

	h.res.Write(w, http.StatusOK, &response.Response{
		Message: "OK",
		Data:    result.Data,
		Meta:    result.Meta,
	})
}
