package medication

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mediflow/scheduler-api/internal/handler"
	"github.com/mediflow/scheduler-api/internal/model"
	"github.com/mediflow/scheduler-api/internal/service/medication"
)

type Handler struct {
	service *medication.Service
}

func NewHandler(service *medication.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	medications := r.Group("/medications")
	{
		medications.POST("", h.CreateMedication)
		medications.GET("", h.ListMedications)
		medications.GET("/:id", h.GetMedication)
		medications.PUT("/:id", h.UpdateMedication)
		medications.DELETE("/:id", h.DeleteMedication)
	}
}

func (h *Handler) CreateMedication(c *gin.Context) {
	var req model.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m := &model.Medication{
		Name:         req.Name,
		GenericName:  req.GenericName,
		Manufacturer: req.Manufacturer,
		Form:         req.Form,
		Strength:     req.Strength,
	}

	if err := h.service.CreateMedication(c.Request.Context(), m); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(m))
}

func (h *Handler) GetMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	m, err := h.service.GetMedication(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	var req model.CreateMedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	m, err := h.service.GetMedication(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	m.Name = req.Name
	m.GenericName = req.GenericName
	m.Manufacturer = req.Manufacturer
	m.Form = req.Form
	m.Strength = req.Strength

	if err := h.service.UpdateMedication(c.Request.Context(), m); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(m))
}

func (h *Handler) DeleteMedication(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid medication ID"))
		return
	}

	if err := h.service.DeleteMedication(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) ListMedications(c *gin.Context) {
	medications, err := h.service.ListMedications(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(medications))
}
