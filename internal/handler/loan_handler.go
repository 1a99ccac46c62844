package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/library-loans-api/internal/dto"
	"github.com/noah-isme/library-loans-api/internal/models"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
	"github.com/noah-isme/library-loans-api/pkg/response"
)

type loanService interface {
	Create(ctx context.Context, loan models.Loan, actorID string) (*models.Loan, error)
	List(ctx context.Context, status string) ([]models.Loan, error)
	Get(ctx context.Context, id string) (*models.Loan, error)
	ListByBook(ctx context.Context, bookID string) ([]models.Loan, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Loan, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) (*models.Loan, error)
	Delete(ctx context.Context, id string) (*models.Loan, error)
	MarkReturned(ctx context.Context, id, note string) (*models.Loan, error)
}

type loanExporter interface {
	ExportLoans(ctx context.Context, query dto.LoanExportQuery) (*dto.ExportFile, error)
}

// LoanHandler exposes the loan REST endpoints.
type LoanHandler struct {
	loans   loanService
	exports loanExporter
}

// NewLoanHandler constructs the handler.
func NewLoanHandler(loans loanService, exports loanExporter) *LoanHandler {
	return &LoanHandler{loans: loans, exports: exports}
}

// Register mounts the loan routes on rg.
func (h *LoanHandler) Register(rg *gin.RouterGroup) {
	loans := rg.Group("/prestamos")
	loans.POST("", h.Create)
	loans.GET("", h.List)
	loans.GET("/export", h.Export)
	loans.GET("/por-libro/:bookId", h.ListByBook)
	loans.GET("/por-estudiante/:studentId", h.ListByStudent)
	loans.GET("/:id", h.Get)
	loans.PATCH("/:id", h.Update)
	loans.DELETE("/:id", h.Delete)
	loans.POST("/:id/devolucion", h.Return)
}

// Create godoc
// @Summary Registrar un préstamo
// @Tags Prestamos
// @Accept json
// @Produce json
// @Param payload body dto.CreateLoanRequest true "Préstamo"
// @Success 201 {object} map[string]models.Loan
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /prestamos [post]
func (h *LoanHandler) Create(c *gin.Context) {
	var req dto.CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Cuerpo de la solicitud inválido"))
		return
	}
	draft, err := req.ToLoan()
	if err != nil {
		response.Error(c, err)
		return
	}
	loan, err := h.loans.Create(c.Request.Context(), draft, claimsFromContext(c).Actor())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, response.KeyLoan, loan)
}

// List godoc
// @Summary Listar préstamos
// @Tags Prestamos
// @Produce json
// @Param estado query string false "Prestado, Vencido o Devuelto"
// @Success 200 {object} map[string][]models.Loan
// @Failure 400 {object} map[string]string
// @Router /prestamos [get]
func (h *LoanHandler) List(c *gin.Context) {
	loans, err := h.loans.List(c.Request.Context(), c.Query("estado"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoans, loans)
}

// Get godoc
// @Summary Obtener un préstamo
// @Tags Prestamos
// @Produce json
// @Param id path string true "ID del préstamo"
// @Success 200 {object} map[string]models.Loan
// @Failure 404 {object} map[string]string
// @Router /prestamos/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoan, loan)
}

// ListByBook godoc
// @Summary Préstamos de un libro
// @Tags Prestamos
// @Produce json
// @Param bookId path string true "ID del libro"
// @Success 200 {object} map[string][]models.Loan
// @Failure 404 {object} map[string]string
// @Router /prestamos/por-libro/{bookId} [get]
func (h *LoanHandler) ListByBook(c *gin.Context) {
	loans, err := h.loans.ListByBook(c.Request.Context(), c.Param("bookId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoans, loans)
}

// ListByStudent godoc
// @Summary Préstamos de un estudiante
// @Tags Prestamos
// @Produce json
// @Param studentId path string true "ID del estudiante"
// @Success 200 {object} map[string][]models.Loan
// @Failure 404 {object} map[string]string
// @Router /prestamos/por-estudiante/{studentId} [get]
func (h *LoanHandler) ListByStudent(c *gin.Context) {
	loans, err := h.loans.ListByStudent(c.Request.Context(), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoans, loans)
}

// Update godoc
// @Summary Actualizar atributos de un préstamo
// @Description Solo admite observaciones, estado, fechaDevolucion e historialEstado.
// @Tags Prestamos
// @Accept json
// @Produce json
// @Param id path string true "ID del préstamo"
// @Param payload body map[string]string true "Atributos"
// @Success 200 {object} map[string]models.Loan
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /prestamos/{id} [patch]
func (h *LoanHandler) Update(c *gin.Context) {
	var patch map[string]interface{}
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Cuerpo de la solicitud inválido"))
		return
	}
	loan, err := h.loans.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoan, loan)
}

// Delete godoc
// @Summary Eliminar un préstamo
// @Description Solo se eliminan préstamos en estado Prestado.
// @Tags Prestamos
// @Produce json
// @Param id path string true "ID del préstamo"
// @Success 200 {object} map[string]models.Loan
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /prestamos/{id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	loan, err := h.loans.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoan, loan)
}

// Return godoc
// @Summary Registrar la devolución de un préstamo
// @Tags Prestamos
// @Accept json
// @Produce json
// @Param id path string true "ID del préstamo"
// @Param payload body dto.ReturnLoanRequest true "Estado del libro"
// @Success 200 {object} map[string]models.Loan
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /prestamos/{id}/devolucion [post]
func (h *LoanHandler) Return(c *gin.Context) {
	var req dto.ReturnLoanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Cuerpo de la solicitud inválido"))
			return
		}
	}
	loan, err := h.loans.MarkReturned(c.Request.Context(), c.Param("id"), req.StatusHistory)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, response.KeyLoan, loan)
}

// Export godoc
// @Summary Exportar préstamos
// @Tags Prestamos
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv o pdf"
// @Param estado query string false "Filtro de estado"
// @Success 200 {file} file
// @Failure 400 {object} map[string]string
// @Router /prestamos/export [get]
func (h *LoanHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export service not configured"))
		return
	}
	var query dto.LoanExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Parámetros de exportación inválidos"))
		return
	}
	file, err := h.exports.ExportLoans(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
