package notes

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/service/notes"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/httputil"
	"github.com/clinicflow/encounter-api/pkg/validator"
)

type Handler struct {
	coordinator *notes.Coordinator
	debouncer   *notes.Debouncer
	validator   validator.Validator
}

func NewHandler(coordinator *notes.Coordinator, debouncer *notes.Debouncer) *Handler {
	return &Handler{
		coordinator: coordinator,
		debouncer:   debouncer,
		validator:   validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	encounters := r.Group("/encounters")
	{
		encounters.GET("/:id/sections", h.GetSections)
		encounters.PUT("/:id/sections/:sectionId", h.SaveSection)
		encounters.PUT("/:id/sections/:sectionId/draft", h.SaveDraft)
		encounters.POST("/:id/sections/flush", h.FlushDrafts)
	}
}

// SaveSection applies an already-coalesced save immediately. A stale edit
// version yields accepted=false, not an error.
func (h *Handler) SaveSection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}
	sectionID := c.Param("sectionId")

	var req model.SaveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	result, err := h.coordinator.SaveSection(c.Request.Context(), id, sectionID, req.Content, req.EditVersion, req.ActorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, result)
}

// SaveDraft schedules a debounced save; the write lands after the quiescence
// window unless a newer draft replaces it first.
func (h *Handler) SaveDraft(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}
	sectionID := c.Param("sectionId")

	var req model.SaveSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	h.debouncer.Schedule(id, sectionID, req.Content, req.EditVersion, req.ActorID)
	httputil.RespondWithSuccess(c, gin.H{"scheduled": true})
}

// FlushDrafts forces pending drafts through before the editor navigates away.
func (h *Handler) FlushDrafts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	flushed := h.debouncer.Flush(c.Request.Context(), id)
	httputil.RespondWithSuccess(c, gin.H{"flushed": flushed})
}

func (h *Handler) GetSections(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid encounter ID", err))
		return
	}

	sections, err := h.coordinator.GetSections(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, sections)
}
