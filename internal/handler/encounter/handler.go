package encounter

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/service/allocator"
	"github.com/clinicflow/encounter-api/internal/service/encounter"
	"github.com/clinicflow/encounter-api/internal/service/routing"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/httputil"
	"github.com/clinicflow/encounter-api/pkg/validator"
)

type Handler struct {
	service   *encounter.Service
	allocator *allocator.Service
	routing   *routing.Service
	validator validator.Validator
}

func NewHandler(service *encounter.Service, alloc *allocator.Service, routingSvc *routing.Service) *Handler {
	return &Handler{
		service:   service,
		allocator: alloc,
		routing:   routingSvc,
		validator: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	encounters := r.Group("/encounters")
	{
		encounters.POST("", h.CheckIn)
		encounters.GET("", h.ListEncounters)
		encounters.GET("/:id", h.GetEncounter)
		encounters.PATCH("/:id/staff", h.AssignStaff)
		encounters.POST("/:id/transition", h.Transition)
		encounters.POST("/:id/room", h.AcquireRoom)
		encounters.PUT("/:id/room", h.ReassignRoom)
		encounters.DELETE("/:id/room", h.ReleaseRoom)
		encounters.POST("/:id/bed", h.AcquireBed)
		encounters.PUT("/:id/bed", h.ReassignBed)
		encounters.DELETE("/:id/bed", h.ReleaseBed)
		encounters.POST("/:id/route", h.RouteToDepartment)
		encounters.POST("/:id/return", h.ReturnFromDepartment)
	}
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req model.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	enc, err := h.service.CheckIn(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, enc)
}

func (h *Handler) GetEncounter(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	enc, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) ListEncounters(c *gin.Context) {
	filters := &model.EncounterFilters{}

	if status := c.Query("status"); status != "" {
		filters.Status = model.EncounterStatus(status)
	}
	if id := c.Query("nurse_id"); id != "" {
		nurseID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid nurse ID", err))
			return
		}
		filters.AssignedNurseID = &nurseID
	}
	if id := c.Query("doctor_id"); id != "" {
		doctorID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid doctor ID", err))
			return
		}
		filters.AssignedDoctorID = &doctorID
	}
	if id := c.Query("patient_id"); id != "" {
		patientID, err := uuid.Parse(id)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid patient ID", err))
			return
		}
		filters.PatientID = &patientID
	}

	encounters, err := h.service.List(c.Request.Context(), filters)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, encounters)
}

func (h *Handler) AssignStaff(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	var req model.AssignStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if req.NurseID == nil && req.DoctorID == nil {
		httputil.RespondWithError(c, apperrors.BadRequest("nurse_id or doctor_id is required", nil))
		return
	}

	enc, err := h.service.AssignStaff(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	var req model.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	enc, err := h.service.Transition(c.Request.Context(), id, req.Target, req.ActorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

type resourceRequest struct {
	ResourceID uuid.UUID `json:"resource_id" validate:"required"`
}

func (h *Handler) acquire(c *gin.Context, kind model.ResourceKind) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	enc, err := h.allocator.Acquire(c.Request.Context(), id, req.ResourceID, kind)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) reassign(c *gin.Context, kind model.ResourceKind) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	var req resourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	enc, err := h.allocator.Reassign(c.Request.Context(), id, req.ResourceID, kind)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) release(c *gin.Context, kind model.ResourceKind) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	enc, err := h.allocator.Release(c.Request.Context(), id, kind)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) AcquireRoom(c *gin.Context)  { h.acquire(c, model.ResourceKindRoom) }
func (h *Handler) ReassignRoom(c *gin.Context) { h.reassign(c, model.ResourceKindRoom) }
func (h *Handler) ReleaseRoom(c *gin.Context)  { h.release(c, model.ResourceKindRoom) }
func (h *Handler) AcquireBed(c *gin.Context)   { h.acquire(c, model.ResourceKindBed) }
func (h *Handler) ReassignBed(c *gin.Context)  { h.reassign(c, model.ResourceKindBed) }
func (h *Handler) ReleaseBed(c *gin.Context)   { h.release(c, model.ResourceKindBed) }

func (h *Handler) RouteToDepartment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	var req model.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	enc, err := h.routing.RouteTo(c.Request.Context(), id, req.Department, req.ActorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}

func (h *Handler) ReturnFromDepartment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	enc, err := h.routing.ReturnFromDepartment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, enc)
}
