package handler

import (
	"net/http"
	"strings"

	"roombook/internal/reservations/service"
	apperrors "roombook/pkg/errors"
	httputil "roombook/pkg/http"
	"roombook/pkg/logger"
	"roombook/pkg/middleware"
	"roombook/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// Identity headers are set by the gateway after authentication.
const (
	OrganizationIDHeader = "X-Organization-ID"
	AuthorityHeader      = "X-Authority"
)

type ReservationHandler struct {
	service service.ReservationService
	log     *logger.Logger
}

func NewReservationHandler(service service.ReservationService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: service,
		log:     log,
	}
}

func actorFrom(r *http.Request) (model.Actor, error) {
	actor := model.Actor{
		ID:             strings.TrimSpace(r.Header.Get(middleware.ActorIDHeader)),
		OrganizationID: strings.TrimSpace(r.Header.Get(OrganizationIDHeader)),
		Authority:      model.Authority(strings.ToLower(strings.TrimSpace(r.Header.Get(AuthorityHeader)))),
	}
	if actor.ID == "" {
		return model.Actor{}, apperrors.Unauthorized("Missing " + middleware.ActorIDHeader + " header")
	}
	switch actor.Authority {
	case "":
		actor.Authority = model.AuthorityMember
	case model.AuthorityMember, model.AuthorityOrgAdmin, model.AuthoritySuperAdmin:
	default:
		return model.Actor{}, apperrors.InvalidInput("unknown authority: " + string(actor.Authority))
	}
	return actor, nil
}

func (h *ReservationHandler) writeError(w http.ResponseWriter, r *http.Request, handler string, err error) {
	appErr := apperrors.AsAppError(err)
	if appErr.Code == apperrors.CodeInternal {
		h.log.Error("request failed",
			"handler", handler,
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	var req model.ReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "Create", err)
		return
	}

	reservation, err := h.service.Create(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, r, "Create", err)
		return
	}
	httputil.WriteCreated(w, reservation)
}

func (h *ReservationHandler) CreateRecurring(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "CreateRecurring", err)
		return
	}

	var req model.RecurringRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "CreateRecurring", err)
		return
	}

	result, err := h.service.CreateRecurring(r.Context(), actor, &req)
	if err != nil {
		h.writeError(w, r, "CreateRecurring", err)
		return
	}
	httputil.WriteCreated(w, result)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}

	reservation, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "GetByID", err)
		return
	}
	httputil.WriteSuccess(w, reservation)
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "ListMine", err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, r, "ListMine", err)
		return
	}

	reservations, total, err := h.service.ListMine(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, r, "ListMine", err)
		return
	}
	httputil.WritePaginated(w, reservations, total, limit, offset)
}

func (h *ReservationHandler) ListPendingApprovals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "ListPendingApprovals", err)
		return
	}
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, r, "ListPendingApprovals", err)
		return
	}

	reservations, total, err := h.service.ListPendingForOrganization(r.Context(), actor, limit, offset)
	if err != nil {
		h.writeError(w, r, "ListPendingApprovals", err)
		return
	}
	httputil.WritePaginated(w, reservations, total, limit, offset)
}

func (h *ReservationHandler) Approve(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "Approve", err)
		return
	}

	reservation, err := h.service.Approve(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Approve", err)
		return
	}
	httputil.WriteSuccess(w, reservation)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "Reject", err)
		return
	}

	var req rejectRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			h.writeError(w, r, "Reject", err)
			return
		}
	}

	reservation, err := h.service.Reject(r.Context(), actor, ps.ByName("id"), req.Reason)
	if err != nil {
		h.writeError(w, r, "Reject", err)
		return
	}
	httputil.WriteSuccess(w, reservation)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "Cancel", err)
		return
	}

	reservation, err := h.service.Cancel(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "Cancel", err)
		return
	}
	httputil.WriteSuccess(w, reservation)
}

func (h *ReservationHandler) AdminCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "AdminCancel", err)
		return
	}

	reservation, err := h.service.AdminCancel(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, r, "AdminCancel", err)
		return
	}
	httputil.WriteSuccess(w, reservation)
}

func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}
	start, err := httputil.ExtractTime(r, "start")
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}
	end, err := httputil.ExtractTime(r, "end")
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}

	resources, err := h.service.Availability(r.Context(), actor, start, end)
	if err != nil {
		h.writeError(w, r, "Availability", err)
		return
	}
	httputil.WriteSuccess(w, resources)
}

// ReplaceVisibility replaces the gate of the organization named by the
// organization_id query parameter, defaulting to the caller's own.
func (h *ReservationHandler) ReplaceVisibility(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, r, "ReplaceVisibility", err)
		return
	}

	var req model.VisibilityReplaceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "ReplaceVisibility", err)
		return
	}

	orgID := r.URL.Query().Get("organization_id")
	if orgID == "" {
		orgID = actor.OrganizationID
	}

	if err := h.service.ReplaceVisibility(r.Context(), actor, orgID, ps.ByName("date"), &req); err != nil {
		h.writeError(w, r, "ReplaceVisibility", err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Create)
	router.GET("/api/v1/reservations", h.ListMine)
	router.GET("/api/v1/reservations/:id", h.GetByID)
	router.POST("/api/v1/reservations/:id/approve", h.Approve)
	router.POST("/api/v1/reservations/:id/reject", h.Reject)
	router.POST("/api/v1/reservations/:id/cancel", h.Cancel)
	router.POST("/api/v1/reservations/:id/admin-cancel", h.AdminCancel)
	router.POST("/api/v1/recurring-reservations", h.CreateRecurring)
	router.GET("/api/v1/approvals", h.ListPendingApprovals)
	router.GET("/api/v1/availability", h.Availability)
	router.PUT("/api/v1/visibility/:date", h.ReplaceVisibility)
}
