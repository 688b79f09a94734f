package alert

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clinicflow/encounter-api/internal/model"
	"github.com/clinicflow/encounter-api/internal/service/alert"
	apperrors "github.com/clinicflow/encounter-api/pkg/errors"
	"github.com/clinicflow/encounter-api/pkg/httputil"
	"github.com/clinicflow/encounter-api/pkg/validator"
)

type Handler struct {
	service      *alert.Service
	validator    validator.Validator
	pollInterval time.Duration
}

func NewHandler(service *alert.Service, pollInterval time.Duration) *Handler {
	return &Handler{
		service:      service,
		validator:    validator.New(),
		pollInterval: pollInterval,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	alerts := r.Group("/alerts")
	{
		alerts.POST("", h.SendAlert)
		alerts.GET("", h.ListAlerts)
		alerts.POST("/:id/read", h.MarkRead)
	}
}

func (h *Handler) SendAlert(c *gin.Context) {
	var req model.SendAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	a, err := h.service.Send(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithCreated(c, a)
}

// ListAlerts returns the recipient's alerts along with the suggested polling
// interval. Visibility is eventual; clients poll rather than receive pushes.
func (h *Handler) ListAlerts(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid user ID", err))
		return
	}
	unreadOnly := c.Query("unread_only") == "true"

	alerts, err := h.service.List(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"alerts":           alerts,
		"poll_interval_ms": h.pollInterval.Milliseconds(),
	})
}

func (h *Handler) MarkRead(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid alert ID", err))
		return
	}

	var req struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request body", err))
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	if err := h.service.MarkRead(c.Request.Context(), id, req.UserID); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, gin.H{"read": true})
}
