package dto

import (
	"strings"
	"time"

	"github.com/noah-isme/library-loans-api/internal/models"
	"github.com/noah-isme/library-loans-api/pkg/dates"
	appErrors "github.com/noah-isme/library-loans-api/pkg/errors"
)

// CreateLoanRequest payload for lending a book. The loan date is always
// assigned by the server, so any fechaPrestamo in the body is ignored.
type CreateLoanRequest struct {
	StudentID     string  `json:"idEstudiante"`
	BookID        string  `json:"idLibro"`
	ReturnDate    *string `json:"fechaDevolucion"`
	Status        string  `json:"estado"`
	Notes         string  `json:"observaciones"`
	StatusHistory string  `json:"historialEstado"`
	CreatedBy     string  `json:"creadoPor"`
}

// ToLoan converts the payload into a loan draft.
func (r CreateLoanRequest) ToLoan() (models.Loan, error) {
	loan := models.Loan{
		StudentID:     strings.TrimSpace(r.StudentID),
		BookID:        strings.TrimSpace(r.BookID),
		Status:        models.LoanStatus(strings.TrimSpace(r.Status)),
		Notes:         strings.TrimSpace(r.Notes),
		StatusHistory: strings.TrimSpace(r.StatusHistory),
		CreatedBy:     strings.TrimSpace(r.CreatedBy),
	}
	if r.ReturnDate != nil && strings.TrimSpace(*r.ReturnDate) != "" {
		parsed, err := dates.Parse(*r.ReturnDate)
		if err != nil {
			return models.Loan{}, appErrors.Wrap(err, appErrors.ErrInvalidDateFormat.Code, appErrors.ErrInvalidDateFormat.Status, appErrors.ErrInvalidDateFormat.Message)
		}
		due := dates.Day(parsed)
		loan.ReturnDate = &due
	}
	return loan, nil
}

// ReturnLoanRequest carries the free-text note recorded on return.
type ReturnLoanRequest struct {
	StatusHistory string `json:"historialEstado"`
}

// LoanExportQuery mirrors the export endpoint query string.
type LoanExportQuery struct {
	Format string `form:"format"`
	Status string `form:"estado"`
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
	GeneratedAt time.Time
}
