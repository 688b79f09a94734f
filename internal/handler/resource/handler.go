package resource

import (
	"github.com/gin-gonic/gin"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/service/allocator"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/httputil"
	"github.com/clinicflow/encounter-api/pkg/validator"
)

type Handler struct {
	allocator *allocator.Service
	validator validator.Validator
}

func NewHandler(alloc *allocator.Service) *Handler {
	return &Handler{
		allocator: alloc,
		validator: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	resources := r.Group("/resources")
	{
		resources.POST("", h.SeedResource)
		resources.GET("", h.ListResources)
	}
}

func (h *Handler) SeedResource(c *gin.Context) {
	var req model.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	resource, err := h.allocator.SeedResource(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, resource)
}

func (h *Handler) ListResources(c *gin.Context) {
	kind := model.ResourceKind(c.Query("kind"))
	if kind != model.ResourceKindRoom && kind != model.ResourceKindBed {
		httputil.RespondWithError(c, apperrors.BadRequest("kind must be room or bed", nil))
		return
	}
	availableOnly := c.Query("available") == "true"

	resources, err := h.allocator.ListResources(c.Request.Context(), kind, availableOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, resources)
}
