package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/pkg/response"
)

type sweepRunner interface {
	Run(ctx context.Context, now time.Time) (models.SweepReport, error)
}

// SweepHandler lets operators trigger the overdue sweep on demand.
type SweepHandler struct {
	sweeper sweepRunner
	now     func() time.Time
}

// NewSweepHandler constructs the handler.
func NewSweepHandler(sweeper sweepRunner) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, now: time.Now}
}

// Run godoc
// @Summary Ejecutar la revisión de vencimientos
// @Tags Administracion
// @Produce json
// @Success 200 {object} map[string]models.SweepReport
// @Failure 409 {object} map[string]string
// @Router /admin/sweeps [post]
func (h *SweepHandler) Run(c *gin.Context) {
	// A client hanging up must not cut the pass short.
	report, err := h.sweeper.Run(context.WithoutCancel(c.Request.Context()), h.now().UTC())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "sweep", report)
}
