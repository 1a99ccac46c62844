package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/library-loans-api/internal/dto"
	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/pkg/dates"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
	"github.com/noah-isme/library-loans-api/pkg/export"
)

// Supported export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var loanExportHeaders = []string{"ID", "Estudiante", "Libro", "Fecha préstamo", "Fecha devolución", "Estado", "Observaciones", "Historial", "Creado por"}

type loanLister interface {
	List(ctx context.Context, status string) ([]models.Loan, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportService renders loan listings as downloadable reports.
type ExportService struct {
	loans     loanLister
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService with CSV and PDF renderers.
func NewExportService(loans loanLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		loans: loans,
		renderers: map[string]datasetRenderer{
			ExportFormatCSV: export.NewCSVExporter(),
			ExportFormatPDF: export.NewPDFExporter(),
		},
		logger: logger,
		now:    time.Now,
	}
}

// ExportLoans renders the loans matching the optional status filter.
func (s *ExportService) ExportLoans(ctx context.Context, query dto.LoanExportQuery) (*dto.ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Formato de exportación no soportado: %s", format))
	}

	loans, err := s.loans.List(ctx, query.Status)
	if err != nil {
		return nil, err
	}

	generatedAt := s.now().UTC()
	payload, err := renderer.Render(buildLoanDataset(loans, query.Status))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("loan export generated", zap.String("format", format), zap.Int("rows", len(loans)))
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("prestamos-%s.%s", generatedAt.Format("20060102-150405"), format),
		ContentType: renderer.ContentType(),
		Data:        payload,
		GeneratedAt: generatedAt,
	}, nil
}

func buildLoanDataset(loans []models.Loan, status string) export.Dataset {
	title := "Préstamos"
	if status != "" {
		title = fmt.Sprintf("Préstamos (%s)", status)
	}
	rows := lo.Map(loans, func(loan models.Loan, _ int) map[string]string {
		returnDate := ""
		if loan.ReturnDate != nil {
			returnDate = loan.ReturnDate.Format(dates.DayLayout)
		}
		return map[string]string{
			"ID":               loan.ID,
			"Estudiante":       loan.StudentID,
			"Libro":            loan.BookID,
			"Fecha préstamo":   loan.LoanDate.Format(dates.DayLayout),
			"Fecha devolución": returnDate,
			"Estado":           string(loan.Status),
			"Observaciones":    loan.Notes,
			"Historial":        loan.StatusHistory,
			"Creado por":       loan.CreatedBy,
		}
	})
	return export.Dataset{Title: title, Headers: loanExportHeaders, Rows: rows}
}
