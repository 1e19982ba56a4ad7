package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"goride/internal/domain"
	"goride/internal/service"
)

// AdminHandler handles driver approval decisions.
type AdminHandler struct {
	driverService *service.DriverService
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(driverService *service.DriverService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{driverService: driverService, logger: logger}
}

// ApproveDriver handles POST /v1/admin/drivers/:userId/approve
func (h *AdminHandler) ApproveDriver(c *gin.Context) {
	h.decide(c, h.driverService.Approve)
}

// SuspendDriver handles POST /v1/admin/drivers/:userId/suspend
func (h *AdminHandler) SuspendDriver(c *gin.Context) {
	h.decide(c, h.driverService.Suspend)
}

// BlockDriver handles POST /v1/admin/drivers/:userId/block
func (h *AdminHandler) BlockDriver(c *gin.Context) {
	h.decide(c, h.driverService.Block)
}

func (h *AdminHandler) decide(c *gin.Context, fn func(context.Context, string) (*domain.Driver, error)) {
	driver, err := fn(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondJSON(c, http.StatusOK, driverResponse(driver))
}
